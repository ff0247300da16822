package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// NotificationType identifies the domain event a notification was produced
// for. It drives the routing target and the icon shown in the inbox.
type NotificationType string

const (
	NotificationTypeAnnouncement                 NotificationType = "announcement"
	NotificationTypeJob                          NotificationType = "job"
	NotificationTypeComment                      NotificationType = "comment"
	NotificationTypeApplicationSubmitted         NotificationType = "application_submitted"
	NotificationTypeApplicationAdvisorAction     NotificationType = "application_advisor_action"
	NotificationTypeApplicationCoordinatorAction NotificationType = "application_coordinator_action"
	NotificationTypeOther                        NotificationType = "other"
)

// ParseNotificationType maps a wire value to a known NotificationType.
// Unknown or empty values degrade to NotificationTypeOther.
func ParseNotificationType(s string) NotificationType {
	switch t := NotificationType(s); t {
	case NotificationTypeAnnouncement,
		NotificationTypeJob,
		NotificationTypeComment,
		NotificationTypeApplicationSubmitted,
		NotificationTypeApplicationAdvisorAction,
		NotificationTypeApplicationCoordinatorAction:
		return t
	default:
		return NotificationTypeOther
	}
}

// UnmarshalJSON decodes a type tag without ever failing on unknown values.
func (t *NotificationType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Non-string tags (numbers, objects) are treated as unknown.
		*t = NotificationTypeOther
		return nil
	}
	*t = ParseNotificationType(s)
	return nil
}

// Sender is the denormalized summary of the actor that triggered a
// notification. System-generated notifications carry no sender.
type Sender struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Notification is a single delivered event in a recipient's mailbox.
type Notification struct {
	// ID is the server-assigned identifier, stable across refetch and
	// realtime delivery of the same event.
	ID string `json:"id" validate:"required"`

	// Type selects routing and iconography.
	Type NotificationType `json:"type"`

	// RelatedID references the domain entity (announcement, job,
	// application) this notification is about. Empty for "other".
	RelatedID string `json:"relatedId,omitempty"`

	// Sender is the optional actor summary.
	Sender *Sender `json:"sender,omitempty"`

	// Title and Message are display strings.
	Title   string `json:"title"`
	Message string `json:"message"`

	// Read is flipped by this client or by a confirmed server mutation.
	Read bool `json:"read"`

	// CreatedAt is immutable and used for ordering.
	CreatedAt time.Time `json:"createdAt"`
}

// notificationWire mirrors Notification with the aliases the portal emits.
type notificationWire struct {
	ID        string           `json:"id"`
	MongoID   string           `json:"_id"`
	Type      NotificationType `json:"type"`
	RelatedID string           `json:"relatedId"`
	Sender    *Sender          `json:"sender"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	IsRead    *bool            `json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
}

// UnmarshalJSON accepts both the canonical field names and the document
// store aliases (_id, isRead).
func (n *Notification) UnmarshalJSON(data []byte) error {
	var w notificationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding notification: %w", err)
	}

	id := w.ID
	if id == "" {
		id = w.MongoID
	}
	read := w.Read
	if w.IsRead != nil {
		read = *w.IsRead
	}
	typ := w.Type
	if typ == "" {
		typ = NotificationTypeOther
	}

	*n = Notification{
		ID:        id,
		Type:      typ,
		RelatedID: w.RelatedID,
		Sender:    w.Sender,
		Title:     w.Title,
		Message:   w.Message,
		Read:      read,
		CreatedAt: w.CreatedAt,
	}
	return nil
}

// Target returns the portal route the notification links to, or an empty
// string when there is nothing to open.
func (n Notification) Target() string {
	if n.RelatedID == "" {
		return ""
	}

	switch n.Type {
	case NotificationTypeAnnouncement:
		return "/announcements/" + n.RelatedID
	case NotificationTypeComment:
		return "/announcements/" + n.RelatedID + "#comments"
	case NotificationTypeJob:
		return "/jobs/" + n.RelatedID
	case NotificationTypeApplicationSubmitted,
		NotificationTypeApplicationAdvisorAction,
		NotificationTypeApplicationCoordinatorAction:
		return "/applications/" + n.RelatedID
	default:
		return ""
	}
}

// SenderName returns the sender's display name, or "system" when absent.
func (n Notification) SenderName() string {
	if n.Sender == nil || n.Sender.Name == "" {
		return "system"
	}
	return n.Sender.Name
}

// SortNewestFirst orders notifications by CreatedAt, most recent first.
// Equal timestamps keep their relative order.
func SortNewestFirst(items []Notification) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

// CountUnread returns how many notifications have Read == false.
func CountUnread(items []Notification) int {
	count := 0
	for _, n := range items {
		if !n.Read {
			count++
		}
	}
	return count
}
