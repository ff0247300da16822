package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/nhle/portal-inbox/internal/api"
	"github.com/nhle/portal-inbox/internal/channel"
	"github.com/nhle/portal-inbox/internal/credential"
	"github.com/nhle/portal-inbox/internal/inbox"
	"github.com/nhle/portal-inbox/internal/model"
	"github.com/nhle/portal-inbox/internal/store"
	appsync "github.com/nhle/portal-inbox/internal/sync"
)

// errNotAttached is returned by an attempt whose channel died before the
// listener could be installed.
var errNotAttached = errors.New("notification listener not attached")

// Deps are the collaborators a Session can be given. Nil fields get
// defaults built from the config.
type Deps struct {
	Dialer  channel.Dialer
	Backend inbox.Backend
	Store   store.Store
	Alerter inbox.Alerter
}

// Session owns the realtime channel, its supervisor and the inbox for one
// authenticated identity. It is created at login and closed at logout or
// exit; nothing outlives it.
type Session struct {
	cfg        *model.AppConfig
	credential string
	recipient  string
	store      store.Store

	manager    *channel.Manager
	registrar  *channel.Registrar
	registry   *channel.Registry
	supervisor *appsync.Supervisor
	inbox      *inbox.Synchronizer

	mu          sync.Mutex
	started     bool
	closed      bool
	lastChannel string
}

// New wires a session for the given credential. An empty credential
// yields a session that never connects.
func New(cfg *model.AppConfig, token string, deps Deps) (*Session, error) {
	s := &Session{
		cfg:        cfg,
		credential: token,
		store:      deps.Store,
	}

	if token != "" {
		recipient, err := credential.RecipientID(token)
		if err != nil {
			return nil, fmt.Errorf("reading session token: %w", err)
		}
		s.recipient = recipient
	}

	dialer := deps.Dialer
	if dialer == nil {
		dialer = &channel.WebsocketDialer{
			URL:          cfg.Server.WebsocketURL(),
			PingInterval: cfg.Channel.PingInterval(),
		}
	}
	backend := deps.Backend
	if backend == nil {
		backend = api.NewClient(cfg.Server.BaseURL, token, cfg.Server.RequestTimeout())
	}

	opts := []inbox.Option{}
	if deps.Alerter != nil {
		opts = append(opts, inbox.WithAlerter(deps.Alerter))
	}
	if deps.Store != nil {
		opts = append(opts, inbox.WithStore(deps.Store))
	}

	s.manager = channel.NewManager(dialer)
	s.registrar = channel.NewRegistrar(s.manager)
	s.registry = channel.NewRegistry(s.manager)
	s.inbox = inbox.New(backend, opts...)
	s.supervisor = appsync.New(s.attempt, appsync.Backoff{
		Initial:     cfg.Reconnect.InitialInterval(),
		Max:         cfg.Reconnect.MaxInterval(),
		Multiplier:  2,
		MaxAttempts: cfg.Reconnect.MaxAttempts,
	})

	s.manager.Watch(s.onConnectionState)
	return s, nil
}

// Start seeds the inbox from the local cache and starts the supervisor,
// which connects immediately. Without a credential it does nothing.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session closed")
	}
	if s.started || s.credential == "" {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if s.store != nil {
		snap, err := s.store.LoadSnapshot(ctx)
		if err != nil {
			log.Printf("session: loading cached inbox: %v", err)
		} else if len(snap.Notifications) > 0 {
			s.inbox.Seed(snap)
		}
	}

	s.supervisor.Start(ctx)
	return nil
}

// Close stops reconnection, drops the channel and freezes the inbox. It is
// safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// The supervisor goes first so the disconnect below cannot kick it.
	s.supervisor.Stop()
	s.registry.Detach()
	s.manager.Disconnect()
	s.registrar.Reset()
	s.inbox.Close()
}

// Recipient is the id whose room this session joins.
func (s *Session) Recipient() string { return s.recipient }

// Authenticated reports whether the session has a credential.
func (s *Session) Authenticated() bool { return s.credential != "" }

// Manager exposes the channel manager for status observation.
func (s *Session) Manager() *channel.Manager { return s.manager }

// Supervisor exposes the reconnection supervisor.
func (s *Session) Supervisor() *appsync.Supervisor { return s.supervisor }

// Inbox exposes the notification cache.
func (s *Session) Inbox() *inbox.Synchronizer { return s.inbox }

// PageSize is the configured page length for inbox fetches.
func (s *Session) PageSize() int { return s.cfg.Inbox.PageSize }

// attempt is one combined connect, join and attach. A channel instance
// seen for the first time after an earlier one triggers a backfill of
// page 1, since pushes sent while offline are not redelivered.
func (s *Session) attempt(ctx context.Context) error {
	h, err := s.manager.Connect(ctx, s.credential)
	switch {
	case errors.Is(err, channel.ErrCredentialMissing):
		return fmt.Errorf("%w: %v", appsync.ErrSkipped, err)
	case errors.Is(err, channel.ErrUnauthorized):
		return appsync.Permanent(err)
	case err != nil:
		return err
	}

	if err := s.registrar.JoinRoom(s.recipient); err != nil {
		return err
	}
	if !s.registry.Attach(s.inbox.ApplyRealtimeInsert) {
		return errNotAttached
	}

	s.mu.Lock()
	reconnected := s.lastChannel != "" && s.lastChannel != h.ID()
	s.lastChannel = h.ID()
	s.mu.Unlock()

	if reconnected {
		if _, err := s.inbox.LoadPage(ctx, 1, s.PageSize()); err != nil {
			log.Printf("session: backfill after reconnect: %v", err)
		}
	}
	return nil
}

// onConnectionState kicks the supervisor when the channel drops.
func (s *Session) onConnectionState(st model.ConnectionState) {
	if st.Status != model.StatusDisconnected {
		return
	}
	s.mu.Lock()
	active := s.started && !s.closed
	s.mu.Unlock()
	if active {
		s.supervisor.Kick()
	}
}
