// Package session holds the process-wide operating mode and authenticated
// principal. It is passed explicitly to every sync unit.
//
// Every change of mode or principal starts a new generation. Operations
// started under an older generation have their context canceled and their
// Ticket invalidated, so results that arrive late are discarded instead of
// being applied to the local store.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/model"
)

// Mode selects whether the remote service is used.
type Mode string

// Modes.
const (
	Connected Mode = "connected"
	LocalOnly Mode = "local"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Connected, LocalOnly:
		return Mode(s), nil
	case "":
		return Connected, nil
	}
	return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, Connected, LocalOnly)
}

// Principal is the authenticated user.
type Principal struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Contact      string     `json:"contact"`
	DepartmentID string     `json:"department_id"`
	Role         model.Role `json:"role"`
}

// Operator returns the principal as a recorded operator.
func (p Principal) Operator() model.Operator {
	return model.Operator{ID: p.ID, Name: p.Name, Contact: p.Contact}
}

// ErrSuperseded is the cause attached to contexts canceled by a session change.
var ErrSuperseded error = errs.New(errs.KindSuperseded, "superseded by a session change")

// State is the persistable part of a session.
type State struct {
	Mode      Mode       `json:"mode"`
	Principal *Principal `json:"principal,omitempty"`
	Token     string     `json:"token,omitempty"`
}

// Context is the session. The zero value is not usable; call New.
type Context struct {
	mu        sync.Mutex
	mode      Mode
	principal *Principal
	token     string

	gen    uint64
	epoch  context.Context
	cancel context.CancelCauseFunc

	refs   int
	closed bool
}

// New creates a session in mode with one reference held by the caller.
func New(mode Mode) *Context {
	if mode == "" {
		mode = Connected
	}
	c := &Context{mode: mode, refs: 1}
	c.epoch, c.cancel = context.WithCancelCause(context.Background())
	return c
}

// Acquire adds a reference.
func (c *Context) Acquire() *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs++
	return c
}

// Release drops a reference. The last release cancels every operation in
// flight and makes later operations fail as superseded.
func (c *Context) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refs == 0 {
		return
	}
	c.refs--
	if c.refs == 0 {
		c.closed = true
		c.cancel(ErrSuperseded)
	}
}

// bump starts a new generation. Callers hold c.mu.
func (c *Context) bump() {
	c.cancel(ErrSuperseded)
	c.gen++
	if c.closed {
		return
	}
	c.epoch, c.cancel = context.WithCancelCause(context.Background())
}

// Mode returns the current mode.
func (c *Context) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// LocalOnly reports whether the remote service is bypassed.
func (c *Context) LocalOnly() bool {
	return c.Mode() == LocalOnly
}

// SetMode switches mode. Switching to the current mode is a no-op.
func (c *Context) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == m {
		return
	}
	c.mode = m
	c.bump()
}

// SignIn sets the authenticated principal and its token.
func (c *Context) SignIn(p Principal, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.principal = &p
	c.token = token
	c.bump()
}

// SignOut clears the principal.
func (c *Context) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.principal = nil
	c.token = ""
	c.bump()
}

// Principal returns the authenticated principal, if any.
func (c *Context) Principal() (Principal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.principal == nil {
		return Principal{}, false
	}
	return *c.principal, true
}

// Token returns the bearer token for the remote service.
func (c *Context) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Snapshot returns the persistable state.
func (c *Context) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{Mode: c.mode, Token: c.token}
	if c.principal != nil {
		p := *c.principal
		st.Principal = &p
	}
	return st
}

// Restore replaces the session state with st.
func (c *Context) Restore(st State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st.Mode != "" {
		c.mode = st.Mode
	}
	c.principal = nil
	if st.Principal != nil {
		p := *st.Principal
		c.principal = &p
	}
	c.token = st.Token
	c.bump()
}

// Ticket captures the session as seen when an operation began.
type Ticket struct {
	c         *Context
	gen       uint64
	mode      Mode
	principal *Principal
}

// Begin starts an operation. The returned context is canceled with
// ErrSuperseded when the session changes; call stop when the operation ends.
func (c *Context) Begin(ctx context.Context) (context.Context, Ticket, context.CancelFunc) {
	c.mu.Lock()
	epoch := c.epoch
	t := Ticket{c: c, gen: c.gen, mode: c.mode, principal: c.principal}
	if c.closed {
		epoch = nil
	}
	c.mu.Unlock()

	ctx, cancel := context.WithCancelCause(ctx)
	if epoch == nil {
		cancel(ErrSuperseded)
		return ctx, t, func() {}
	}
	unhook := context.AfterFunc(epoch, func() { cancel(ErrSuperseded) })
	return ctx, t, func() {
		unhook()
		cancel(context.Canceled)
	}
}

// Valid reports whether the session is unchanged since the ticket was issued.
func (t Ticket) Valid() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return !t.c.closed && t.c.gen == t.gen
}

// Generation identifies the session state the ticket was issued under.
func (t Ticket) Generation() uint64 { return t.gen }

// Mode returns the mode the operation started in.
func (t Ticket) Mode() Mode { return t.mode }

// LocalOnly reports whether the operation started in local-only mode.
func (t Ticket) LocalOnly() bool { return t.mode == LocalOnly }

// Principal returns the principal the operation started with.
func (t Ticket) Principal() (Principal, bool) {
	if t.principal == nil {
		return Principal{}, false
	}
	return *t.principal, true
}

// Superseded converts a context failure caused by a session change into a
// superseded error. Other errors are returned unchanged.
func Superseded(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if context.Cause(ctx) == ErrSuperseded {
		return ErrSuperseded
	}
	return err
}
