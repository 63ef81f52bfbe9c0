package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"secureshare/internal/server/database"
)

// Notification types, matching what clients render.
const (
	TypeFileUploaded   = "FILE_UPLOADED"
	TypeFileShared     = "FILE_SHARED"
	TypeScanCompleted  = "SCAN_COMPLETED"
	TypeThreatDetected = "THREAT_DETECTED"
	TypeSecurityAlert  = "SECURITY_ALERT"
)

// subjects maps notification types to event subjects.
var subjects = map[string]string{
	TypeFileUploaded:   "files.uploaded",
	TypeFileShared:     "shares.created",
	TypeScanCompleted:  "security.scans",
	TypeThreatDetected: "security.threats",
	TypeSecurityAlert:  "security.alerts",
}

// notificationStore is the slice of the repository the notifier needs.
type notificationStore interface {
	CreateNotification(ctx context.Context, n *database.Notification) error
}

// Notifier records user-visible notifications and mirrors them as events.
type Notifier struct {
	store  notificationStore
	events *EventPublisher
}

// New creates a Notifier. events may be nil when NATS is disabled.
func New(store notificationStore, events *EventPublisher) *Notifier {
	return &Notifier{store: store, events: events}
}

// Notify writes exactly one notification row for the user and publishes
// a matching event. The row is authoritative; a failed publish is
// logged, not surfaced.
func (n *Notifier) Notify(ctx context.Context, userID, typ, title, message string, data map[string]any) error {
	row := &database.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if len(data) > 0 {
		encoded, err := json.Marshal(data)
		if err != nil {
			slog.Warn("failed to encode notification data", "type", typ, "error", err)
		} else {
			s := string(encoded)
			row.Data = &s
		}
	}

	if err := n.store.CreateNotification(ctx, row); err != nil {
		return err
	}

	subject, ok := subjects[typ]
	if !ok {
		subject = "files.events"
	}
	payload := map[string]any{
		"user_id": userID,
		"type":    typ,
		"title":   title,
	}
	for k, v := range data {
		payload[k] = v
	}
	if err := n.events.Publish(subject, payload); err != nil {
		slog.Warn("failed to publish notification event", "subject", subject, "error", err)
	}
	return nil
}
