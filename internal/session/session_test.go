package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/portal-inbox/internal/devbroker"
	"github.com/nhle/portal-inbox/internal/inbox"
	"github.com/nhle/portal-inbox/internal/model"
	"github.com/nhle/portal-inbox/internal/store"
	appsync "github.com/nhle/portal-inbox/internal/sync"
	"github.com/nhle/portal-inbox/tests/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const secret = "session-test-secret"

type alerts struct {
	mu  sync.Mutex
	ids []string
}

func (a *alerts) Alert(n model.Notification) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, n.ID)
}

func (a *alerts) seen(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Contains(a.ids, id)
}

func startBroker(t *testing.T) (*devbroker.Server, *model.AppConfig) {
	t.Helper()
	srv := devbroker.NewServer(devbroker.Config{Secret: secret})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Hub().DropAll)

	cfg := &model.AppConfig{
		Server:    model.ServerConfig{BaseURL: ts.URL, WSPath: "/ws", RequestTimeoutSec: 5},
		Reconnect: model.ReconnectConfig{InitialIntervalMS: 10, MaxIntervalSec: 1, MaxAttempts: 3},
		Inbox:     model.InboxConfig{PageSize: 20},
	}
	return srv, cfg
}

func mint(t *testing.T, key, user string) string {
	t.Helper()
	tok, err := devbroker.GenerateToken(key, user, "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func contains(snap inbox.Snapshot, id string) bool {
	return slices.ContainsFunc(snap.Notifications, func(n model.Notification) bool { return n.ID == id })
}

func newSession(t *testing.T, cfg *model.AppConfig, token string, deps Deps) *Session {
	t.Helper()
	s, err := New(cfg, token, deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSessionReceivesPush(t *testing.T) {
	t.Parallel()

	srv, cfg := startBroker(t)
	al := &alerts{}
	s := newSession(t, cfg, mint(t, secret, "alice"), Deps{Alerter: al})

	if s.Recipient() != "alice" || !s.Authenticated() {
		t.Fatalf("recipient = %q, authenticated = %v", s.Recipient(), s.Authenticated())
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	eventually(t, "room join", func() bool { return srv.Hub().RoomSize("alice") == 1 })
	if st := s.Manager().State(); st.Status != model.StatusConnected {
		t.Errorf("Status = %q, want connected", st.Status)
	}

	n, err := srv.Send(devbroker.SendRequest{UserID: "alice", Type: "job", RelatedID: "j1", Title: "Job", Message: "m"})
	if err != nil {
		t.Fatal(err)
	}
	eventually(t, "push delivery", func() bool { return contains(s.Inbox().Snapshot(), n.ID) })

	snap := s.Inbox().Snapshot()
	if snap.Unread != 1 || snap.Total != 1 {
		t.Errorf("counters = %d/%d, want 1/1", snap.Unread, snap.Total)
	}
	if !al.seen(n.ID) {
		t.Error("no alert raised for the push")
	}

	// Another user's push never reaches alice.
	other, _ := srv.Send(devbroker.SendRequest{UserID: "bob", Title: "Hi", Message: "m"})
	time.Sleep(50 * time.Millisecond)
	if contains(s.Inbox().Snapshot(), other.ID) {
		t.Error("received bob's notification")
	}
}

func TestSessionReconnectsAndBackfills(t *testing.T) {
	t.Parallel()

	srv, cfg := startBroker(t)
	s := newSession(t, cfg, mint(t, secret, "alice"), Deps{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "first join", func() bool { return srv.Hub().RoomSize("alice") == 1 })
	firstChannel := s.Manager().State().ChannelID

	srv.Hub().DropAll()

	// Sent while the room is empty, so only the backfill can find it.
	missed, err := srv.Send(devbroker.SendRequest{UserID: "alice", Title: "While offline", Message: "m"})
	if err != nil {
		t.Fatal(err)
	}

	eventually(t, "rejoin", func() bool { return srv.Hub().Joins() >= 2 && srv.Hub().RoomSize("alice") == 1 })
	eventually(t, "backfill", func() bool { return contains(s.Inbox().Snapshot(), missed.ID) })

	st := s.Manager().State()
	if st.Status != model.StatusConnected || st.ChannelID == firstChannel {
		t.Errorf("state = %+v, want connected on a new channel", st)
	}
	if sup := s.Supervisor().Status(); sup.State != appsync.StateIdle {
		t.Errorf("supervisor = %v, want idle", sup.State)
	}
}

func TestSessionRejectedCredentialGivesUp(t *testing.T) {
	t.Parallel()

	_, cfg := startBroker(t)
	s := newSession(t, cfg, mint(t, "wrong-secret", "alice"), Deps{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	eventually(t, "give up", func() bool { return s.Supervisor().Status().State == appsync.StateGaveUp })
	if got := s.Supervisor().Status().Attempts; got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestSessionWithoutCredential(t *testing.T) {
	t.Parallel()

	_, cfg := startBroker(t)
	s := newSession(t, cfg, "", Deps{})

	if s.Authenticated() {
		t.Error("Authenticated() = true without a token")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if st := s.Manager().State(); st.Status != model.StatusNotInitialized {
		t.Errorf("Status = %q, want not_initialized", st.Status)
	}
}

func TestSessionBadToken(t *testing.T) {
	t.Parallel()

	_, cfg := startBroker(t)
	if _, err := New(cfg, "not-a-jwt", Deps{}); err == nil {
		t.Error("New() accepted an unparsable token")
	}
}

func TestSessionSeedsFromStore(t *testing.T) {
	t.Parallel()

	_, cfg := startBroker(t)
	st := testutil.NewTestStore(t)
	cached := model.Notification{
		ID:        "cached-1",
		Type:      model.NotificationTypeAnnouncement,
		Title:     "From last run",
		CreatedAt: time.Now().Add(-time.Hour).UTC(),
	}
	if err := st.SaveSnapshot(context.Background(), store.Snapshot{
		Notifications: []model.Notification{cached},
		Unread:        1,
		Total:         4,
	}); err != nil {
		t.Fatal(err)
	}

	s := newSession(t, cfg, mint(t, secret, "alice"), Deps{Store: st})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := s.Inbox().Snapshot()
	if !contains(snap, "cached-1") || snap.Total != 4 {
		t.Errorf("snapshot = %+v, want seeded cache", snap)
	}
}

func TestSessionClose(t *testing.T) {
	t.Parallel()

	srv, cfg := startBroker(t)
	s, err := New(cfg, mint(t, secret, "alice"), Deps{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "join", func() bool { return srv.Hub().RoomSize("alice") == 1 })

	s.Close()
	s.Close()

	eventually(t, "socket release", func() bool { return srv.Hub().Clients() == 0 })
	if st := s.Manager().State(); st.Status != model.StatusDisconnected {
		t.Errorf("Status = %q, want disconnected", st.Status)
	}

	// Nothing reconnects after Close.
	time.Sleep(100 * time.Millisecond)
	if srv.Hub().Clients() != 0 {
		t.Error("session reconnected after Close")
	}

	if _, err := s.Inbox().LoadPage(context.Background(), 1, 20); !errors.Is(err, inbox.ErrClosed) {
		t.Errorf("LoadPage() after Close error = %v, want ErrClosed", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("Start() after Close should fail")
	}
}
