package machine

import (
	"fmt"
	"log/slog"
	"time"

	"ambimix/mixer"
)

// NotificationType represents the kind of mixer activity being reported
type NotificationType string

const (
	NotificationTypeAdded   NotificationType = "added"
	NotificationTypeRemoved NotificationType = "removed"
	NotificationTypeStarted NotificationType = "started"
	NotificationTypeStopped NotificationType = "stopped"
)

// Notification is one reportable change between two mixer snapshots.
type Notification struct {
	Type   NotificationType
	Track  mixer.Track
	Volume float64
	Time   time.Time
}

// Message renders the notification as a single line.
func (n Notification) Message() string {
	switch n.Type {
	case NotificationTypeAdded:
		return fmt.Sprintf("Track **%s** was added to the catalog", n.Track.Name)
	case NotificationTypeRemoved:
		return fmt.Sprintf("Track **%s** was removed from the catalog", n.Track.Name)
	case NotificationTypeStarted:
		return fmt.Sprintf("**%s** is now playing at %d%%", n.Track.Name, percentOf(n.Volume))
	case NotificationTypeStopped:
		return fmt.Sprintf("**%s** was stopped", n.Track.Name)
	default:
		return n.Track.Name
	}
}

// Sender delivers notifications to one destination.
type Sender interface {
	Notify(n Notification) error
}

// Notifier turns successive mixer snapshots into notifications.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
}

// NewNotifier creates a notifier. Nil senders are skipped.
func NewNotifier(senders ...Sender) *Notifier {
	n := &Notifier{logger: slog.With("component", "notifier")}
	for _, s := range senders {
		if s != nil {
			n.senders = append(n.senders, s)
		}
	}
	return n
}

// Enabled reports whether any destination is configured.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

// Handle reports every change from prev to next.
func (n *Notifier) Handle(prev, next mixer.Snapshot) {
	for _, note := range diffSnapshots(prev, next, time.Now()) {
		for _, s := range n.senders {
			if err := s.Notify(note); err != nil {
				n.logger.Error("Failed to send notification",
					slog.String("type", string(note.Type)),
					slog.String("track", note.Track.ID),
					slog.Any("error", err))
			}
		}
	}
}

// diffSnapshots lists catalog additions and removals, then tracks that
// started or stopped. Volume changes are not reported.
func diffSnapshots(prev, next mixer.Snapshot, now time.Time) []Notification {
	var out []Notification

	for _, t := range next.Tracks {
		if _, ok := prev.Track(t.ID); !ok {
			out = append(out, Notification{Type: NotificationTypeAdded, Track: t, Time: now})
		}
	}
	for _, t := range prev.Tracks {
		if _, ok := next.Track(t.ID); !ok {
			out = append(out, Notification{Type: NotificationTypeRemoved, Track: t, Time: now})
		}
	}

	for _, id := range next.Active {
		if !prev.IsActive(id) {
			t, _ := next.Track(id)
			out = append(out, Notification{Type: NotificationTypeStarted, Track: t, Volume: next.Volume(id), Time: now})
		}
	}
	for _, id := range prev.Active {
		if next.IsActive(id) {
			continue
		}
		// A removed track already produced a removal.
		if t, ok := next.Track(id); ok {
			out = append(out, Notification{Type: NotificationTypeStopped, Track: t, Time: now})
		}
	}
	return out
}

func percentOf(v float64) int {
	return int(v*100 + 0.5)
}
