package notiflist

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/portal-inbox/internal/api"
	"github.com/nhle/portal-inbox/internal/inbox"
	"github.com/nhle/portal-inbox/internal/keys"
	"github.com/nhle/portal-inbox/internal/model"
)

type fakeSource struct {
	mu      sync.Mutex
	pages   []int
	read    []string
	deleted []string
	readAll int
}

func (f *fakeSource) LoadPage(_ context.Context, page, _ int) (*api.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, page)
	return &api.Page{Page: page}, nil
}

func (f *fakeSource) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read = append(f.read, id)
	return nil
}

func (f *fakeSource) MarkAllRead(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readAll++
	return nil
}

func (f *fakeSource) DeleteNotification(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func snapshotOf(ids ...string) inbox.Snapshot {
	s := inbox.Snapshot{Page: 1}
	for i, id := range ids {
		s.Notifications = append(s.Notifications, model.Notification{
			ID:        id,
			Title:     "title " + id,
			CreatedAt: time.Now().Add(-time.Duration(i) * time.Minute),
		})
	}
	s.Unread = len(ids)
	s.Total = len(ids)
	return s
}

func newModel(t *testing.T) (Model, *fakeSource) {
	t.Helper()
	src := &fakeSource{}
	return New(src, keys.DefaultKeyMap(), 20, 80, 24), src
}

func TestSetSnapshotKeepsSelection(t *testing.T) {
	t.Parallel()

	m, _ := newModel(t)
	m.SetSnapshot(snapshotOf("a", "b"))
	m.list.Select(1)

	m.SetSnapshot(snapshotOf("new", "a", "b"))
	n, ok := m.Selected()
	if !ok || n.ID != "b" {
		t.Errorf("Selected() = %q, want b", n.ID)
	}
	if m.Snapshot().Total != 3 {
		t.Errorf("Snapshot().Total = %d, want 3", m.Snapshot().Total)
	}
}

func TestDeleteKey(t *testing.T) {
	t.Parallel()

	m, src := newModel(t)
	m.SetSnapshot(snapshotOf("a", "b"))

	_, cmd := m.Update(runes("d"))
	if cmd == nil {
		t.Fatal("delete produced no command")
	}
	msg, ok := cmd().(MutationDoneMsg)
	if !ok || msg.Op != "delete" || msg.Err != nil {
		t.Errorf("msg = %+v", msg)
	}
	if len(src.deleted) != 1 || src.deleted[0] != "a" {
		t.Errorf("deleted = %v, want [a]", src.deleted)
	}
}

func TestMarkAllReadKey(t *testing.T) {
	t.Parallel()

	m, src := newModel(t)
	_, cmd := m.Update(runes("a"))
	if cmd == nil {
		t.Fatal("mark all produced no command")
	}
	cmd()
	if src.readAll != 1 {
		t.Errorf("readAll = %d, want 1", src.readAll)
	}
}

func TestLoadMore(t *testing.T) {
	t.Parallel()

	m, src := newModel(t)

	snap := snapshotOf("a")
	m.SetSnapshot(snap)
	if _, cmd := m.Update(runes("m")); cmd != nil {
		t.Error("load more without HasMore produced a command")
	}

	snap.HasMore = true
	m.SetSnapshot(snap)
	_, cmd := m.Update(runes("m"))
	if cmd == nil {
		t.Fatal("load more produced no command")
	}
	msg, ok := cmd().(PageLoadedMsg)
	if !ok || msg.Page != 2 {
		t.Errorf("msg = %+v, want page 2", msg)
	}
	if len(src.pages) != 1 || src.pages[0] != 2 {
		t.Errorf("pages = %v", src.pages)
	}
}

func TestActionsOnEmptyList(t *testing.T) {
	t.Parallel()

	m, src := newModel(t)
	if _, cmd := m.Update(runes("d")); cmd != nil {
		t.Error("delete on an empty list produced a command")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("mark read on an empty list produced a command")
	}
	if len(src.deleted)+len(src.read) != 0 {
		t.Error("source called with nothing selected")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 6, "hello…"},
		{"héllo", 3, "hé…"},
		{"x", 1, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestRelativeTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5*time.Minute + time.Second, "5m ago"},
		{3*time.Hour + time.Minute, "3h ago"},
		{49 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := relativeTime(time.Now().Add(-tt.ago)); got != tt.want {
			t.Errorf("relativeTime(-%s) = %q, want %q", tt.ago, got, tt.want)
		}
	}
	if relativeTime(time.Time{}) != "" {
		t.Error("zero time should render empty")
	}
}
