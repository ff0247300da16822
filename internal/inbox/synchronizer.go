package inbox

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/nhle/portal-inbox/internal/api"
	"github.com/nhle/portal-inbox/internal/model"
	"github.com/nhle/portal-inbox/internal/store"
)

// Backend is the server side of the inbox. *api.Client satisfies it.
type Backend interface {
	ListNotifications(ctx context.Context, page, limit int) (*api.Page, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
}

// Alerter shows a transient alert for a freshly delivered notification.
type Alerter interface {
	Alert(n model.Notification)
}

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(n model.Notification)

// Alert calls f(n).
func (f AlerterFunc) Alert(n model.Notification) { f(n) }

// SnapshotStore persists the inbox between runs. *store.SQLiteStore
// satisfies it.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap store.Snapshot) error
}

// Snapshot is an immutable copy of the inbox state.
type Snapshot struct {
	Notifications []model.Notification
	Unread        int
	Total         int
	Page          int
	HasMore       bool
	Loading       bool
	Err           error
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithAlerter sets the alert sink for realtime inserts.
func WithAlerter(a Alerter) Option {
	return func(s *Synchronizer) { s.alerter = a }
}

// WithStore enables best-effort persistence of settled snapshots.
func WithStore(st SnapshotStore) Option {
	return func(s *Synchronizer) { s.store = st }
}

// WithClock overrides time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// entry is a cached notification plus the revision of the last local
// change that touched it. Revision 0 means the server copy is current.
type entry struct {
	n        model.Notification
	rev      uint64
	realtime bool
}

// tombstone marks a locally deleted id. present and unread describe the
// cached item at the time of the delete.
type tombstone struct {
	rev     uint64
	settled uint64
	present bool
	unread  bool
}

// Synchronizer owns the client-side notification list and unread counter.
// Local changes are applied optimistically and rolled back when the server
// rejects them.
type Synchronizer struct {
	backend Backend
	alerter Alerter
	store   SnapshotStore
	now     func() time.Time

	mu          sync.Mutex
	items       []entry
	unread      int
	total       int
	page        int
	hasMore     bool
	loading     int
	fetchErr    error
	rev         uint64
	readAllRev  uint64
	readAllAt   time.Time
	deleted     map[string]tombstone
	marks       map[string]uint64
	fetchSeq    uint64
	appliedSeq  uint64
	closed      bool
	subscribers []func(Snapshot)
	saveSeq     uint64

	persistMu sync.Mutex
	savedSeq  uint64
}

// New creates a Synchronizer backed by b.
func New(b Backend, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		backend: b,
		now:     time.Now,
		deleted: make(map[string]tombstone),
		marks:   make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed fills an empty inbox from a persisted snapshot so something is on
// screen before the first fetch resolves. It is ignored once any fetch has
// been applied or anything was inserted.
func (s *Synchronizer) Seed(snap store.Snapshot) {
	s.mu.Lock()
	if s.closed || s.appliedSeq > 0 || len(s.items) > 0 {
		s.mu.Unlock()
		return
	}
	s.items = make([]entry, 0, len(snap.Notifications))
	for _, n := range snap.Notifications {
		s.items = append(s.items, entry{n: n})
	}
	s.sortLocked()
	s.unread = max(snap.Unread, 0)
	s.total = max(snap.Total, len(s.items))
	s.mu.Unlock()

	s.notify()
}

// Subscribe registers fn to receive a snapshot after every change. fn is
// called outside the lock and must not block.
func (s *Synchronizer) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.subscribers = append(s.subscribers, fn)
}

// Snapshot returns a copy of the current state.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close detaches subscribers. Anything that resolves afterwards leaves the
// state untouched.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subscribers = nil
}

// LoadPage fetches one page from the backend and merges it. Page 1
// replaces the list; later pages append.
func (s *Synchronizer) LoadPage(ctx context.Context, page, limit int) (*api.Page, error) {
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.fetchSeq++
	seq := s.fetchSeq
	startRev := s.rev
	s.loading++
	s.mu.Unlock()
	s.notify()

	res, err := s.backend.ListNotifications(ctx, page, limit)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return res, err
	}
	s.loading--

	if err != nil {
		s.fetchErr = &FetchError{Page: page, Err: err}
		ferr := s.fetchErr
		s.mu.Unlock()
		log.Printf("inbox: %v", ferr)
		s.notify()
		return nil, ferr
	}

	if seq < s.appliedSeq && page == 1 {
		s.mu.Unlock()
		log.Printf("inbox: discarding stale page 1 (fetch %d, applied %d)", seq, s.appliedSeq)
		s.notify()
		return res, nil
	}
	if page == 1 {
		s.appliedSeq = seq
	}

	s.mergeLocked(res, page, startRev)
	s.fetchErr = nil
	snap, saveSeq := s.snapshotLocked(), s.nextSaveLocked()
	s.mu.Unlock()

	s.notify()
	s.persist(snap, saveSeq)
	return res, nil
}

// ApplyRealtimeInsert puts a pushed notification at the head of the list,
// counts it unread and raises an alert. Redelivered and locally deleted
// ids are ignored.
func (s *Synchronizer) ApplyRealtimeInsert(n model.Notification) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, gone := s.deleted[n.ID]; gone {
		s.mu.Unlock()
		return
	}
	if s.indexLocked(n.ID) >= 0 {
		s.mu.Unlock()
		log.Printf("inbox: duplicate delivery of %s ignored", n.ID)
		return
	}

	n.Read = false
	s.rev++
	s.items = slices.Insert(s.items, 0, entry{n: n, rev: s.rev, realtime: true})
	s.unread++
	s.total++
	snap, seq := s.snapshotLocked(), s.nextSaveLocked()
	s.mu.Unlock()

	if s.alerter != nil {
		s.alerter.Alert(n)
	}
	s.notify()
	s.persist(snap, seq)
}

// MarkRead marks one notification read. The local counter only moves when
// the item was unread; the server call is issued regardless.
func (s *Synchronizer) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	var rev uint64
	if i := s.indexLocked(id); i >= 0 && !s.items[i].n.Read {
		s.rev++
		rev = s.rev
		s.items[i].n.Read = true
		s.items[i].rev = rev
		s.unread = max(s.unread-1, 0)
		s.marks[id] = rev
	}
	s.mu.Unlock()
	if rev != 0 {
		s.notify()
	}

	err := s.backend.MarkRead(ctx, id)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return err
	}
	if err == nil {
		snap, seq := s.snapshotLocked(), s.nextSaveLocked()
		s.mu.Unlock()
		s.persist(snap, seq)
		return nil
	}

	if s.marks[id] == rev {
		delete(s.marks, id)
	}
	// A mark-all issued after this call also covers the item.
	if rev != 0 && s.readAllRev < rev {
		if i := s.indexLocked(id); i >= 0 && s.items[i].rev == rev {
			s.rev++
			s.items[i].n.Read = false
			s.items[i].rev = s.rev
			s.unread++
		}
	}
	s.mu.Unlock()

	merr := &MutationError{Op: "mark read", ID: id, Err: err}
	log.Printf("inbox: %v", merr)
	s.notify()
	return merr
}

// MarkAllRead marks every notification read with one server call.
func (s *Synchronizer) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.rev++
	rev := s.rev
	prevUnread := s.unread
	prevAllRev, prevAllAt := s.readAllRev, s.readAllAt

	var touched []string
	for i := range s.items {
		if !s.items[i].n.Read {
			s.items[i].n.Read = true
			s.items[i].rev = rev
			touched = append(touched, s.items[i].n.ID)
		}
	}
	s.unread = 0
	s.readAllRev = rev
	s.readAllAt = s.now()
	s.mu.Unlock()
	s.notify()

	err := s.backend.MarkAllRead(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return err
	}
	if err == nil {
		snap, seq := s.snapshotLocked(), s.nextSaveLocked()
		s.mu.Unlock()
		s.persist(snap, seq)
		return nil
	}

	// Unread items outside the loaded pages come back too.
	restored := max(prevUnread-len(touched), 0)
	s.rev++
	for _, id := range touched {
		if i := s.indexLocked(id); i >= 0 && s.items[i].rev == rev {
			s.items[i].n.Read = false
			s.items[i].rev = s.rev
			restored++
		}
	}
	s.unread += restored
	if s.readAllRev == rev {
		s.readAllRev, s.readAllAt = prevAllRev, prevAllAt
	}
	s.mu.Unlock()

	merr := &MutationError{Op: "mark all read", Err: err}
	log.Printf("inbox: %v", merr)
	s.notify()
	return merr
}

// DeleteNotification removes a notification. Removing an unread item
// decrements the counter. A 404 from the server means it is already gone
// and counts as success.
func (s *Synchronizer) DeleteNotification(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	var removed *entry
	if i := s.indexLocked(id); i >= 0 {
		e := s.items[i]
		removed = &e
		s.items = slices.Delete(s.items, i, i+1)
		if !e.n.Read {
			s.unread = max(s.unread-1, 0)
		}
		s.total = max(s.total-1, 0)
	}
	s.rev++
	s.deleted[id] = tombstone{
		rev:     s.rev,
		present: removed != nil,
		unread:  removed != nil && !removed.n.Read,
	}
	s.mu.Unlock()
	s.notify()

	err := s.backend.Delete(ctx, id)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return err
	}
	if err == nil || api.IsNotFound(err) {
		s.rev++
		t := s.deleted[id]
		t.settled = s.rev
		s.deleted[id] = t
		snap, seq := s.snapshotLocked(), s.nextSaveLocked()
		s.mu.Unlock()
		s.persist(snap, seq)
		return nil
	}

	delete(s.deleted, id)
	if removed != nil && s.indexLocked(id) < 0 {
		s.rev++
		removed.rev = s.rev
		s.items = append(s.items, *removed)
		s.sortLocked()
		if !removed.n.Read {
			s.unread++
		}
		s.total++
	}
	s.mu.Unlock()

	merr := &MutationError{Op: "delete", ID: id, Err: err}
	log.Printf("inbox: %v", merr)
	s.notify()
	return merr
}

func (s *Synchronizer) indexLocked(id string) int {
	return slices.IndexFunc(s.items, func(e entry) bool { return e.n.ID == id })
}

func (s *Synchronizer) sortLocked() {
	slices.SortStableFunc(s.items, func(a, b entry) int {
		return b.n.CreatedAt.Compare(a.n.CreatedAt)
	})
}

func (s *Synchronizer) notificationsLocked() []model.Notification {
	out := make([]model.Notification, len(s.items))
	for i, e := range s.items {
		out[i] = e.n
	}
	return out
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	return Snapshot{
		Notifications: s.notificationsLocked(),
		Unread:        s.unread,
		Total:         s.total,
		Page:          s.page,
		HasMore:       s.hasMore,
		Loading:       s.loading > 0,
		Err:           s.fetchErr,
	}
}

func (s *Synchronizer) notify() {
	s.mu.Lock()
	if s.closed || len(s.subscribers) == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	subs := slices.Clone(s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (s *Synchronizer) nextSaveLocked() uint64 {
	s.saveSeq++
	return s.saveSeq
}

// persist writes snap unless a newer snapshot was already written. seq
// orders snapshots by when they were taken, not when they reach the store.
func (s *Synchronizer) persist(snap Snapshot, seq uint64) {
	if s.store == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if seq <= s.savedSeq {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.store.SaveSnapshot(ctx, store.Snapshot{
		Notifications: snap.Notifications,
		Unread:        snap.Unread,
		Total:         snap.Total,
	})
	if err != nil {
		log.Printf("inbox: saving snapshot: %v", err)
		return
	}
	s.savedSeq = seq
}
