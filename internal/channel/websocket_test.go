package channel_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/portal-inbox/internal/channel"
	"github.com/nhle/portal-inbox/internal/devbroker"
	"github.com/nhle/portal-inbox/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const secret = "test-secret"

func startBroker(t *testing.T) (*devbroker.Server, string) {
	t.Helper()
	srv := devbroker.NewServer(devbroker.Config{Secret: secret})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	// Socket handlers block until their connection ends.
	t.Cleanup(srv.Hub().DropAll)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func token(t *testing.T, user string) string {
	t.Helper()
	tok, err := devbroker.GenerateToken(secret, user, "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebsocketDeliversToJoinedRoom(t *testing.T) {
	t.Parallel()

	srv, url := startBroker(t)
	m := channel.NewManager(&channel.WebsocketDialer{URL: url})
	t.Cleanup(m.Disconnect)

	if _, err := m.Connect(context.Background(), token(t, "alice")); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	got := make(chan model.Notification, 4)
	reg := channel.NewRegistry(m)
	if !reg.Attach(func(n model.Notification) { got <- n }) {
		t.Fatal("Attach() = false")
	}
	if err := channel.NewRegistrar(m).JoinRoom("alice"); err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}
	waitFor(t, "room join", func() bool { return srv.Hub().RoomSize("alice") == 1 })

	sent, err := srv.Send(devbroker.SendRequest{
		UserID:  "alice",
		Type:    "announcement",
		Title:   "Welcome",
		Message: "Hello",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case n := <-got:
		if n.ID != sent.ID || n.Type != model.NotificationTypeAnnouncement {
			t.Errorf("received %+v, want %s", n, sent.ID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestWebsocketRejectedCredential(t *testing.T) {
	t.Parallel()

	_, url := startBroker(t)
	m := channel.NewManager(&channel.WebsocketDialer{URL: url})

	_, err := m.Connect(context.Background(), "bogus")
	if !errors.Is(err, channel.ErrUnauthorized) {
		t.Fatalf("Connect() error = %v, want ErrUnauthorized", err)
	}
	if !channel.IsTransportError(err) {
		t.Error("error should be a TransportError")
	}
}

func TestWebsocketServerDropMarksDisconnected(t *testing.T) {
	t.Parallel()

	srv, url := startBroker(t)
	m := channel.NewManager(&channel.WebsocketDialer{URL: url})
	t.Cleanup(m.Disconnect)

	h, err := m.Connect(context.Background(), token(t, "bob"))
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "socket registration", func() bool { return srv.Hub().Clients() == 1 })

	srv.Hub().DropAll()

	waitFor(t, "disconnect", func() bool {
		return m.State().Status == model.StatusDisconnected
	})
	if h.Connected() {
		t.Error("handle still reports connected")
	}

	h2, err := m.Connect(context.Background(), token(t, "bob"))
	if err != nil {
		t.Fatalf("reconnect error = %v", err)
	}
	if h2.ID() == h.ID() {
		t.Error("reconnect reused the dead handle")
	}
}

func TestWebsocketEmitAfterClose(t *testing.T) {
	t.Parallel()

	_, url := startBroker(t)
	m := channel.NewManager(&channel.WebsocketDialer{URL: url})

	h, err := m.Connect(context.Background(), token(t, "carol"))
	if err != nil {
		t.Fatal(err)
	}
	m.Disconnect()

	if err := h.Emit(channel.EventJoinRoom, channel.JoinRoomPayload{UserID: "carol"}); !channel.IsTransportError(err) {
		t.Errorf("Emit() after close error = %v, want TransportError", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
