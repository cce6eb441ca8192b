package store

import (
	"context"
	"sync"

	"github.com/erazemk/izposoja/internal/model"
)

type subscriber struct {
	dirty chan struct{}
}

// hub fans change signals out to live queries, keyed by family.
type hub struct {
	mu   sync.Mutex
	subs map[model.Family]map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: map[model.Family]map[*subscriber]struct{}{}}
}

func (h *hub) subscribe(f model.Family) *subscriber {
	sub := &subscriber{dirty: make(chan struct{}, 1)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[f] == nil {
		h.subs[f] = map[*subscriber]struct{}{}
	}
	h.subs[f][sub] = struct{}{}
	return sub
}

func (h *hub) unsubscribe(f model.Family, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[f], sub)
}

// publish marks subscribers dirty without blocking. A subscriber that is
// already dirty reloads once for any number of signals.
func (h *hub) publish(families ...model.Family) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, f := range families {
		for sub := range h.subs[f] {
			select {
			case sub.dirty <- struct{}{}:
			default:
			}
		}
	}
}

// Live is a subscription to a collection query. It delivers an initial
// snapshot and a new snapshot after every committed change to the family.
// A slow reader only ever sees the newest snapshot.
type Live[T any] struct {
	out    chan []T
	cancel context.CancelFunc
	done   chan struct{}
}

// C returns the snapshot channel. It is closed when the subscription ends.
func (l *Live[T]) C() <-chan []T { return l.out }

// Close ends the subscription and waits for its goroutine to exit.
func (l *Live[T]) Close() {
	l.cancel()
	<-l.done
}

func watch[T any](ctx context.Context, s *Store, f model.Family, load func(ctx context.Context, tx *Tx) ([]T, error)) (*Live[T], error) {
	ctx, cancel := context.WithCancel(ctx)

	// Subscribe before the first load so no commit between them is missed.
	sub := s.hub.subscribe(f)

	first, err := view(ctx, s, func(tx *Tx) ([]T, error) { return load(ctx, tx) })
	if err != nil {
		s.hub.unsubscribe(f, sub)
		cancel()
		return nil, err
	}

	l := &Live[T]{
		out:    make(chan []T, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	l.out <- first

	go func() {
		defer close(l.done)
		defer close(l.out)
		defer s.hub.unsubscribe(f, sub)

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.dirty:
			}

			snap, err := view(ctx, s, func(tx *Tx) ([]T, error) { return load(ctx, tx) })
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.Warn("live query reload failed", "family", f, "error", err)
				continue
			}
			l.offer(snap)
		}
	}()

	return l, nil
}

// offer replaces any undelivered snapshot with snap. Only the watch
// goroutine sends, so the send after draining cannot block.
func (l *Live[T]) offer(snap []T) {
	select {
	case l.out <- snap:
		return
	default:
	}
	select {
	case <-l.out:
	default:
	}
	l.out <- snap
}

// WatchItems subscribes to equipment items of a department ("" for all).
func (s *Store) WatchItems(ctx context.Context, departmentID string) (*Live[model.EquipmentItem], error) {
	return watch(ctx, s, model.FamilyEquipment, func(ctx context.Context, tx *Tx) ([]model.EquipmentItem, error) {
		return tx.ListItems(ctx, departmentID)
	})
}

// WatchCategories subscribes to all categories.
func (s *Store) WatchCategories(ctx context.Context) (*Live[model.Category], error) {
	return watch(ctx, s, model.FamilyCategories, func(ctx context.Context, tx *Tx) ([]model.Category, error) {
		return tx.ListCategories(ctx)
	})
}

// WatchDepartments subscribes to all departments.
func (s *Store) WatchDepartments(ctx context.Context) (*Live[model.Department], error) {
	return watch(ctx, s, model.FamilyDepartments, func(ctx context.Context, tx *Tx) ([]model.Department, error) {
		return tx.ListDepartments(ctx)
	})
}

// WatchUsers subscribes to users of a department ("" for all).
func (s *Store) WatchUsers(ctx context.Context, departmentID string) (*Live[model.User], error) {
	return watch(ctx, s, model.FamilyUsers, func(ctx context.Context, tx *Tx) ([]model.User, error) {
		return tx.ListUsers(ctx, departmentID)
	})
}

// WatchHistory subscribes to borrow history of a department ("" for all).
func (s *Store) WatchHistory(ctx context.Context, departmentID string) (*Live[model.BorrowHistoryEntry], error) {
	return watch(ctx, s, model.FamilyBorrowHistory, func(ctx context.Context, tx *Tx) ([]model.BorrowHistoryEntry, error) {
		return tx.ListHistory(ctx, departmentID)
	})
}

// WatchBorrowRequests subscribes to borrow requests of a department ("" for all).
func (s *Store) WatchBorrowRequests(ctx context.Context, departmentID string) (*Live[model.BorrowRequest], error) {
	return watch(ctx, s, model.FamilyBorrowRequests, func(ctx context.Context, tx *Tx) ([]model.BorrowRequest, error) {
		return tx.ListBorrowRequests(ctx, departmentID)
	})
}

// WatchRegistrations subscribes to pending registrations of a department ("" for all).
func (s *Store) WatchRegistrations(ctx context.Context, departmentID string) (*Live[model.RegistrationRequest], error) {
	return watch(ctx, s, model.FamilyRegistrations, func(ctx context.Context, tx *Tx) ([]model.RegistrationRequest, error) {
		return tx.ListRegistrations(ctx, departmentID)
	})
}
