package snapraid

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/hochfrequenz/snapraid-orch/internal/domain"
)

// Classify extracts the change counters from diff or sync output.
//
// The tool ends a diff with summary lines such as "      4 removed". Only
// lines consisting of exactly a count and one of the known labels are used;
// labels are matched case-sensitively. A missing or malformed counter leaves
// that field at zero.
func Classify(raw string) domain.DiffResult {
	result := domain.DiffResult{Raw: raw}

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		field := counterFor(&result, fields[1])
		if field == nil {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil || n < 0 {
			n = 0
		}
		*field = n
	}

	return result
}

func counterFor(d *domain.DiffResult, label string) *int {
	switch label {
	case "added":
		return &d.Added
	case "removed":
		return &d.Removed
	case "updated":
		return &d.Updated
	case "moved":
		return &d.Moved
	case "copied":
		return &d.Copied
	}
	return nil
}
