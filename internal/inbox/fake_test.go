package inbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nhle/portal-inbox/internal/api"
	"github.com/nhle/portal-inbox/internal/model"
	"github.com/nhle/portal-inbox/internal/store"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// note builds a notification created `age` minutes before t0.
func note(id string, age int, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		Type:      model.NotificationTypeAnnouncement,
		Title:     "title " + id,
		Message:   "message " + id,
		Read:      read,
		CreatedAt: t0.Add(-time.Duration(age) * time.Minute),
	}
}

// fakeBackend is a server mailbox with injectable failures and gates that
// hold a call until the test releases it.
type fakeBackend struct {
	mu    sync.Mutex
	items []model.Notification

	listErr    error
	markErr    error
	markAllErr error
	deleteErr  error

	listGate    chan struct{}
	listEntered chan struct{}
	markGate    chan struct{}
	deleteGate  chan struct{}

	markCalls    int
	markAllCalls int
	deleteCalls  int
}

func newFakeBackend(items ...model.Notification) *fakeBackend {
	return &fakeBackend{items: items}
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *fakeBackend) ListNotifications(ctx context.Context, page, limit int) (*api.Page, error) {
	// The answer is computed when the request arrives; the gate only
	// delays its delivery.
	b.mu.Lock()
	gate, entered := b.listGate, b.listEntered
	listErr := b.listErr
	res := &api.Page{
		Unread: model.CountUnread(b.items),
		Total:  len(b.items),
		Page:   page,
		Limit:  limit,
	}
	start := (page - 1) * limit
	if start < len(b.items) {
		end := min(start+limit, len(b.items))
		res.Notifications = append([]model.Notification{}, b.items[start:end]...)
	}
	b.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if err := wait(ctx, gate); err != nil {
		return nil, err
	}
	if listErr != nil {
		return nil, listErr
	}
	return res, nil
}

func (b *fakeBackend) MarkRead(ctx context.Context, id string) error {
	b.mu.Lock()
	gate := b.markGate
	b.markCalls++
	b.mu.Unlock()
	if err := wait(ctx, gate); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.markErr != nil {
		return b.markErr
	}
	for i := range b.items {
		if b.items[i].ID == id {
			b.items[i].Read = true
			return nil
		}
	}
	return &api.StatusError{Code: 404, Method: "PUT", Path: "/" + id + "/read"}
}

func (b *fakeBackend) MarkAllRead(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markAllCalls++
	if b.markAllErr != nil {
		return b.markAllErr
	}
	for i := range b.items {
		b.items[i].Read = true
	}
	return nil
}

func (b *fakeBackend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	gate := b.deleteGate
	b.deleteCalls++
	b.mu.Unlock()
	if err := wait(ctx, gate); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	for i := range b.items {
		if b.items[i].ID == id {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return nil
		}
	}
	return &api.StatusError{Code: 404, Method: "DELETE", Path: "/" + id}
}

// push adds a notification server side, newest first.
func (b *fakeBackend) push(n model.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append([]model.Notification{n}, b.items...)
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

// recordingStore captures persisted snapshots.
type recordingStore struct {
	mu    sync.Mutex
	saved []int
	err   error
}

func (r *recordingStore) SaveSnapshot(_ context.Context, snap store.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, len(snap.Notifications))
	return r.err
}

func (r *recordingStore) saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

func ids(s Snapshot) string {
	out := ""
	for i, n := range s.Notifications {
		if i > 0 {
			out += ","
		}
		out += n.ID
		if n.Read {
			out += "*"
		}
	}
	return fmt.Sprintf("[%s]", out)
}
