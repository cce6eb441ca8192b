// Package devserver is an authoritative inventory service for development
// and tests. It serves the HTTP API the remote client speaks, backed by
// its own store and the same inventory rules as the client.
package devserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/clock"
	"github.com/erazemk/izposoja/internal/inventory"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// Server is the development service.
type Server struct {
	store   *store.Store
	machine *inventory.Machine
	clock   clock.Clock
	log     *slog.Logger
	secret  string
	handler http.Handler

	failStatus atomic.Int32
	hits       atomic.Int64

	gateMu sync.Mutex
	gate   chan struct{} // non-nil while paused
}

// Options configures a Server. Zero values select defaults.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
	// Secret signs tokens. When empty the secret stored in the database is used.
	Secret string
}

// New creates a Server over s.
func New(ctx context.Context, s *store.Store, opts Options) (*Server, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Secret == "" {
		secret, err := s.JWTSecret(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading JWT secret: %w", err)
		}
		opts.Secret = secret
	}

	srv := &Server{
		store:   s,
		machine: inventory.NewMachine(s, opts.Clock, opts.Logger),
		clock:   opts.Clock,
		log:     opts.Logger,
		secret:  opts.Secret,
	}
	srv.handler = srv.routes()
	return srv, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	if !s.wait(r.Context()) {
		return
	}
	if status := s.failStatus.Load(); status != 0 {
		jsonError(w, int(status), "injected failure")
		return
	}
	s.handler.ServeHTTP(w, r)
}

// FailWith makes every request fail with status. Zero restores normal
// operation.
func (s *Server) FailWith(status int) {
	s.failStatus.Store(int32(status))
}

// Pause holds incoming requests until Resume is called or the request is
// canceled.
func (s *Server) Pause() {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	if s.gate == nil {
		s.gate = make(chan struct{})
	}
}

// Resume releases held requests.
func (s *Server) Resume() {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

func (s *Server) wait(ctx context.Context) bool {
	s.gateMu.Lock()
	gate := s.gate
	s.gateMu.Unlock()
	if gate == nil {
		return true
	}
	select {
	case <-gate:
		return true
	case <-ctx.Done():
		return false
	}
}

// Hits returns the number of requests received.
func (s *Server) Hits() int64 { return s.hits.Load() }

// Store returns the authoritative store.
func (s *Server) Store() *store.Store { return s.store }

// Secret returns the token signing secret.
func (s *Server) Secret() string { return s.secret }

// CreateUser adds an account with a plaintext password. It is used to
// bootstrap the first administrator.
func (s *Server) CreateUser(ctx context.Context, u model.User, password string) (model.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return model.User{}, err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = model.UserStatusNormal
	}
	u.Password = hash
	if err := s.store.Update(ctx, func(tx *store.Tx) error { return tx.PutUser(ctx, u) }); err != nil {
		return model.User{}, fmt.Errorf("creating user: %w", err)
	}
	u.Password = ""
	return u, nil
}

// Put stores records directly, bypassing the API. Tests use it to seed state.
func (s *Server) Put(ctx context.Context, fn func(tx *store.Tx) error) error {
	return s.store.Update(ctx, fn)
}
