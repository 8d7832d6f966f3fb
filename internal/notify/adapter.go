package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hochfrequenz/snapraid-orch/internal/domain"
)

// Options controls when and how run reports are sent
type Options struct {
	SendOn    []string
	AttachLog bool
	Short     bool
}

// Adapter turns finalized run reports into notifications. Transport errors
// are logged and never returned.
type Adapter struct {
	notifier   Notifier
	sendOn     map[domain.RunStatus]bool
	opts       Options
	attachment string
	logger     *slog.Logger
}

// NewAdapter creates an adapter around a notifier. send-on entries are
// expected to be validated already; unknown names are ignored.
func NewAdapter(n Notifier, opts Options, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if n == nil {
		n = NoopNotifier{}
	}

	sendOn := make(map[domain.RunStatus]bool)
	for _, s := range opts.SendOn {
		if st, ok := domain.ParseRunStatus(strings.TrimSpace(s)); ok {
			sendOn[st] = true
		}
	}

	return &Adapter{
		notifier: n,
		sendOn:   sendOn,
		opts:     opts,
		logger:   logger,
	}
}

// WithAttachment returns a copy of the adapter that attaches the given log
// file when AttachLog is enabled
func (a *Adapter) WithAttachment(path string) *Adapter {
	c := *a
	c.attachment = path
	return &c
}

// WithLogger returns a copy of the adapter logging to logger
func (a *Adapter) WithLogger(logger *slog.Logger) *Adapter {
	c := *a
	c.logger = logger
	return &c
}

// ShouldSend reports whether a run with the given status triggers a
// notification. warning and aborted each count as error unless the send-on
// set names that status itself.
func (a *Adapter) ShouldSend(status domain.RunStatus) bool {
	if a.sendOn[status] {
		return true
	}
	if status == domain.RunWarning || status == domain.RunAborted {
		return a.sendOn[domain.RunError]
	}
	return false
}

// Report sends the notification for a finalized run
func (a *Adapter) Report(ctx context.Context, report *domain.RunReport) {
	if !a.ShouldSend(report.Status) {
		a.logger.Debug("notification skipped", "status", report.Status)
		return
	}

	n := BuildNotification(report, a.opts.Short)
	if a.opts.AttachLog {
		n.Attachment = a.attachment
	}

	if err := a.notifier.Send(ctx, n); err != nil {
		a.logger.Error("Failed to send notification", "error", err)
		return
	}
	a.logger.Info("Notification sent", "status", report.Status)
}

// BuildNotification renders a run report. Short messages carry only the
// headline and the diff counters.
func BuildNotification(report *domain.RunReport, short bool) Notification {
	n := Notification{
		Title: report.Headline(),
		Type:  TypeForStatus(report.Status),
		RunID: report.ID,
	}
	if short {
		var b strings.Builder
		fmt.Fprintf(&b, "Status: %s", report.Status)
		if report.Diff != nil {
			fmt.Fprintf(&b, "\nDiff: %s", report.Diff)
		}
		n.Message = b.String()
	} else {
		n.Message = report.Summary
	}
	return n
}

// TypeForStatus maps a run status to a notification severity
func TypeForStatus(s domain.RunStatus) NotificationType {
	switch s {
	case domain.RunSuccess:
		return NotifySuccess
	case domain.RunWarning:
		return NotifyWarning
	default:
		return NotifyError
	}
}

// FromURLs builds a notifier for a list of destination URIs:
// slack://host/path posts to a Slack webhook over https, http(s):// posts
// a JSON document, desktop:// shows a local desktop notification.
func FromURLs(urls []string) (*MultiNotifier, error) {
	var notifiers []Notifier
	for _, raw := range urls {
		n, err := fromURL(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	return NewMultiNotifier(notifiers...), nil
}

func fromURL(raw string) (Notifier, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid notification url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "slack":
		if u.Host == "" {
			return nil, fmt.Errorf("slack url %q has no host", raw)
		}
		u.Scheme = "https"
		return NewSlackNotifier(u.String()), nil
	case "http", "https":
		return NewWebhookNotifier(u.String()), nil
	case "desktop":
		return NewDesktopNotifier(), nil
	default:
		return nil, fmt.Errorf("unsupported notification url scheme %q", u.Scheme)
	}
}
