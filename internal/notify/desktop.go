package notify

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
)

// desktopMaxLines caps the body shown in a desktop popup
const desktopMaxLines = 6

// DesktopNotifier shows a local desktop notification
type DesktopNotifier struct {
	goos string
}

// NewDesktopNotifier creates a notifier for the current platform
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{goos: runtime.GOOS}
}

// Send shows the notification. Platforms without a supported notifier are
// silently skipped.
func (d *DesktopNotifier) Send(ctx context.Context, n Notification) error {
	name, args := desktopCommand(d.goos, n)
	if name == "" {
		return nil
	}
	return exec.CommandContext(ctx, name, args...).Run()
}

func desktopCommand(goos string, n Notification) (string, []string) {
	body := firstLines(n.Message, desktopMaxLines)

	switch goos {
	case "darwin":
		script := `display notification "` + escapeAppleScript(body) + `" with title "` + escapeAppleScript(n.Title) + `"`
		return "osascript", []string{"-e", script}
	case "linux":
		args := []string{"-i", IconForType(n.Type)}
		if n.Type == NotifyError {
			args = append(args, "-u", "critical")
		}
		return "notify-send", append(args, n.Title, body)
	default:
		return "", nil
	}
}

func firstLines(s string, max int) string {
	lines := strings.SplitN(s, "\n", max+1)
	if len(lines) > max {
		lines = append(lines[:max], "...")
	}
	return strings.Join(lines, "\n")
}

func escapeAppleScript(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// IconForType returns a freedesktop icon name for the notification type
func IconForType(t NotificationType) string {
	switch t {
	case NotifySuccess:
		return "dialog-positive"
	case NotifyWarning:
		return "dialog-warning"
	case NotifyError:
		return "dialog-error"
	default:
		return "dialog-information"
	}
}
