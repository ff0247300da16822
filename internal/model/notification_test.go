package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseNotificationType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want NotificationType
	}{
		{"announcement", NotificationTypeAnnouncement},
		{"job", NotificationTypeJob},
		{"comment", NotificationTypeComment},
		{"application_submitted", NotificationTypeApplicationSubmitted},
		{"application_advisor_action", NotificationTypeApplicationAdvisorAction},
		{"application_coordinator_action", NotificationTypeApplicationCoordinatorAction},
		{"other", NotificationTypeOther},
		{"", NotificationTypeOther},
		{"webinar", NotificationTypeOther},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := ParseNotificationType(tt.in); got != tt.want {
				t.Errorf("ParseNotificationType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNotificationUnmarshalAliases(t *testing.T) {
	t.Parallel()

	t.Run("canonical fields", func(t *testing.T) {
		t.Parallel()

		raw := `{"id":"n1","type":"job","relatedId":"j9","sender":{"id":"u2","name":"Dr. Reyes"},
			"title":"New job","message":"A job was posted","read":true,"createdAt":"2024-03-01T10:00:00Z"}`

		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if n.ID != "n1" || n.Type != NotificationTypeJob || n.RelatedID != "j9" {
			t.Errorf("unexpected notification: %+v", n)
		}
		if !n.Read {
			t.Error("Read = false, want true")
		}
		if n.Sender == nil || n.Sender.Name != "Dr. Reyes" {
			t.Errorf("Sender = %+v, want Dr. Reyes", n.Sender)
		}
		want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		if !n.CreatedAt.Equal(want) {
			t.Errorf("CreatedAt = %v, want %v", n.CreatedAt, want)
		}
	})

	t.Run("document store aliases", func(t *testing.T) {
		t.Parallel()

		raw := `{"_id":"65f0","type":"comment","isRead":true,"read":false,"title":"t","message":"m","createdAt":"2024-03-01T10:00:00Z"}`

		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if n.ID != "65f0" {
			t.Errorf("ID = %q, want 65f0", n.ID)
		}
		if !n.Read {
			t.Error("isRead should take precedence over read")
		}
	})

	t.Run("unknown and missing types degrade to other", func(t *testing.T) {
		t.Parallel()

		for _, raw := range []string{
			`{"id":"a","type":"webinar","createdAt":"2024-03-01T10:00:00Z"}`,
			`{"id":"b","type":7,"createdAt":"2024-03-01T10:00:00Z"}`,
			`{"id":"c","createdAt":"2024-03-01T10:00:00Z"}`,
		} {
			var n Notification
			if err := json.Unmarshal([]byte(raw), &n); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", raw, err)
			}
			if n.Type != NotificationTypeOther {
				t.Errorf("Unmarshal(%s).Type = %q, want other", raw, n.Type)
			}
		}
	})

	t.Run("malformed json fails", func(t *testing.T) {
		t.Parallel()

		var n Notification
		if err := json.Unmarshal([]byte(`{"id":`), &n); err == nil {
			t.Error("expected error for truncated payload")
		}
	})
}

func TestNotificationTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		n    Notification
		want string
	}{
		{"announcement", Notification{Type: NotificationTypeAnnouncement, RelatedID: "a1"}, "/announcements/a1"},
		{"comment", Notification{Type: NotificationTypeComment, RelatedID: "a1"}, "/announcements/a1#comments"},
		{"job", Notification{Type: NotificationTypeJob, RelatedID: "j1"}, "/jobs/j1"},
		{"submitted", Notification{Type: NotificationTypeApplicationSubmitted, RelatedID: "p1"}, "/applications/p1"},
		{"advisor", Notification{Type: NotificationTypeApplicationAdvisorAction, RelatedID: "p1"}, "/applications/p1"},
		{"coordinator", Notification{Type: NotificationTypeApplicationCoordinatorAction, RelatedID: "p1"}, "/applications/p1"},
		{"other", Notification{Type: NotificationTypeOther, RelatedID: "x"}, ""},
		{"no related id", Notification{Type: NotificationTypeJob}, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.n.Target(); got != tt.want {
				t.Errorf("Target() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSenderName(t *testing.T) {
	t.Parallel()

	if got := (Notification{}).SenderName(); got != "system" {
		t.Errorf("SenderName() = %q, want system", got)
	}
	n := Notification{Sender: &Sender{Name: "Coordinator"}}
	if got := n.SenderName(); got != "Coordinator" {
		t.Errorf("SenderName() = %q, want Coordinator", got)
	}
}

func TestSortNewestFirstAndCountUnread(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []Notification{
		{ID: "old", CreatedAt: base, Read: true},
		{ID: "new", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "mid", CreatedAt: base.Add(time.Hour)},
	}

	SortNewestFirst(items)

	got := []string{items[0].ID, items[1].ID, items[2].ID}
	want := []string{"new", "mid", "old"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if c := CountUnread(items); c != 2 {
		t.Errorf("CountUnread() = %d, want 2", c)
	}
}
