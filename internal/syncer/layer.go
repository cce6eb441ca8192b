// Package syncer reconciles the local store with the remote service.
//
// There is one unit per entity family. Reads go through Sync, which
// refreshes a scope from the remote service (or the local store in
// local-only mode) and replaces it atomically. Writes go through Mutate,
// which consults the policy table to decide whether a failed remote write
// may be replaced by an equivalent local one.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/erazemk/izposoja/internal/clock"
	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/inventory"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/remote"
	"github.com/erazemk/izposoja/internal/session"
	"github.com/erazemk/izposoja/internal/store"
)

// DefaultSyncTimeout bounds a shared sync call.
const DefaultSyncTimeout = time.Minute

// Options configures a Layer. Zero values select defaults.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
	NewID  func() string
	// SyncTimeout bounds a remote refresh shared by concurrent callers.
	SyncTimeout time.Duration
}

// Layer is the sync layer. It owns all writes to the local store.
type Layer struct {
	store   *store.Store
	remote  remote.Client
	session *session.Context
	machine *inventory.Machine
	clock   clock.Clock
	log     *slog.Logger
	newID   func() string

	syncTimeout time.Duration

	flight singleflight.Group
	locks  familyLocks
}

// New creates a Layer.
func New(s *store.Store, rc remote.Client, sess *session.Context, m *inventory.Machine, opts Options) *Layer {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = DefaultSyncTimeout
	}
	return &Layer{
		store:       s,
		remote:      rc,
		session:     sess,
		machine:     m,
		clock:       opts.Clock,
		log:         opts.Logger,
		newID:       opts.NewID,
		syncTimeout: opts.SyncTimeout,
	}
}

// Store returns the local store for reads and live queries.
func (l *Layer) Store() *store.Store { return l.store }

// Remote returns the remote client.
func (l *Layer) Remote() remote.Client { return l.remote }

// Session returns the session.
func (l *Layer) Session() *session.Context { return l.session }

// Machine returns the inventory state machine.
func (l *Layer) Machine() *inventory.Machine { return l.machine }

// Logger returns the layer's logger.
func (l *Layer) Logger() *slog.Logger { return l.log }

// NewID returns a new entity ID for locally synthesized records.
func (l *Layer) NewID() string { return l.newID() }

// Now returns the layer's current time.
func (l *Layer) Now() time.Time { return l.clock.Now() }

// familyLocks serializes writes and scope replacements per family.
type familyLocks struct {
	mu    sync.Mutex
	locks map[model.Family]*sync.Mutex
}

func (f *familyLocks) lock(family model.Family) (unlock func()) {
	f.mu.Lock()
	if f.locks == nil {
		f.locks = map[model.Family]*sync.Mutex{}
	}
	m, ok := f.locks[family]
	if !ok {
		m = &sync.Mutex{}
		f.locks[family] = m
	}
	f.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// actor returns the signed-in principal as an inventory actor.
func actor(t session.Ticket) (inventory.Actor, error) {
	p, ok := t.Principal()
	if !ok {
		return inventory.Actor{}, errs.Unauthorized("sign in required")
	}
	return inventory.Actor{Operator: p.Operator(), Role: p.Role}, nil
}

// logFailure logs a remote failure at the level its class calls for.
func (l *Layer) logFailure(msg string, family model.Family, err error, attrs ...any) {
	attrs = append(attrs, "family", family, "error", err)
	switch errs.KindOf(err) {
	case errs.KindServer:
		l.log.Error(msg, append(attrs, "class", "server")...)
	case errs.KindConnectivity:
		l.log.Warn(msg, append(attrs, "class", "connectivity")...)
	case errs.KindSuperseded:
		l.log.Info(msg, append(attrs, "class", "superseded")...)
	default:
		l.log.Debug(msg, attrs...)
	}
}

// scopeSync describes how to refresh one scope of a family.
type scopeSync[W, T any] struct {
	family  model.Family
	scope   string
	fetch   func(ctx context.Context) ([]W, error)
	convert func(w W) (T, bool)
	local   func(ctx context.Context) ([]T, error)
	replace func(ctx context.Context, tx *store.Tx, rows []T) error
}

// run performs a read-through sync and reports it on the returned channel.
func run[W, T any](ctx context.Context, l *Layer, s scopeSync[W, T]) <-chan Result[[]T] {
	out := make(chan Result[[]T], 2)
	out <- Result[[]T]{Status: Loading}

	go func() {
		defer close(out)
		rows, err := syncOnce(ctx, l, s)
		if err != nil {
			out <- Result[[]T]{Status: Failure, Err: err}
			return
		}
		out <- Result[[]T]{Status: Success, Data: rows}
	}()
	return out
}

func syncOnce[W, T any](ctx context.Context, l *Layer, s scopeSync[W, T]) ([]T, error) {
	ctx, ticket, stop := l.session.Begin(ctx)
	defer stop()

	if ticket.LocalOnly() {
		rows, err := s.local(ctx)
		return rows, session.Superseded(ctx, err)
	}

	// Identical syncs started under the same session state share one
	// remote call. The shared call is detached from any single caller's
	// cancellation and deadline, so it runs under syncTimeout instead. It
	// still ends on a session change.
	key := fmt.Sprintf("%s|%s|%d", s.family, s.scope, ticket.Generation())
	ch := l.flight.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.syncTimeout)
		defer cancel()
		return refresh(ctx, l, ticket.Generation(), s)
	})

	select {
	case <-ctx.Done():
		return nil, session.Superseded(ctx, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]T), nil
	}
}

func refresh[W, T any](ctx context.Context, l *Layer, gen uint64, s scopeSync[W, T]) ([]T, error) {
	ctx, ticket, stop := l.session.Begin(ctx)
	defer stop()
	if ticket.Generation() != gen {
		return nil, session.ErrSuperseded
	}

	payload, err := s.fetch(ctx)
	if err != nil {
		err = session.Superseded(ctx, err)
		l.logFailure("sync failed", s.family, err, "scope", s.scope)
		return nil, err
	}
	rows := sanitizeAll(l.log, s.family, payload, s.convert)

	unlock := l.locks.lock(s.family)
	defer unlock()
	if !ticket.Valid() {
		l.log.Info("discarding superseded sync", "family", s.family, "scope", s.scope)
		return nil, session.ErrSuperseded
	}
	err = l.store.Update(ctx, func(tx *store.Tx) error {
		return s.replace(ctx, tx, rows)
	})
	if err != nil {
		return nil, session.Superseded(ctx, err)
	}
	l.log.Debug("synced scope", "family", s.family, "scope", s.scope, "count", len(rows))
	return rows, nil
}
