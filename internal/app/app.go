// Package app wires the client components together.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/erazemk/izposoja/internal/approval"
	"github.com/erazemk/izposoja/internal/clock"
	"github.com/erazemk/izposoja/internal/config"
	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/inventory"
	"github.com/erazemk/izposoja/internal/jobs"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/remote"
	"github.com/erazemk/izposoja/internal/session"
	"github.com/erazemk/izposoja/internal/store"
	"github.com/erazemk/izposoja/internal/syncer"
)

// App is the running client.
type App struct {
	Config    *config.Config
	Store     *store.Store
	Session   *session.Context
	Remote    *remote.HTTPClient
	Machine   *inventory.Machine
	Sync      *syncer.Layer
	Approvals *approval.Workflow
	Sweeper   *jobs.Sweeper

	db  *sql.DB
	log *slog.Logger
}

// Options overrides parts of the wiring. Zero values select defaults.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
	// DB is used instead of opening cfg.Database.Path. It must be migrated
	// by the caller and is not closed by Close.
	DB *sql.DB
}

// Open opens the local store, restores the saved session and builds the
// sync layer.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}

	database := opts.DB
	owned := false
	if database == nil {
		var err error
		database, err = db.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		owned = true
		if err := db.Migrate(database); err != nil {
			database.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
	}

	a, err := build(ctx, cfg, database, opts)
	if err != nil {
		if owned {
			database.Close()
		}
		return nil, err
	}
	if owned {
		a.db = database
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, database *sql.DB, opts Options) (*App, error) {
	log := opts.Logger
	st := store.New(database, log)

	mode, err := session.ParseMode(cfg.Session.Mode)
	if err != nil {
		return nil, err
	}
	sess := session.New(mode)
	if err := restoreSession(ctx, st, sess); err != nil {
		log.Warn("ignoring saved session", "error", err)
	}

	rc := remote.NewHTTPClient(cfg.Remote.BaseURL, cfg.Remote.Timeout, sess)
	machine := inventory.NewMachine(st, opts.Clock, log)
	layer := syncer.New(st, rc, sess, machine, syncer.Options{Clock: opts.Clock, Logger: log})

	sweeper, err := jobs.NewSweeper(machine, cfg.Jobs.SweepSchedule, log)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		Store:     st,
		Session:   sess,
		Remote:    rc,
		Machine:   machine,
		Sync:      layer,
		Approvals: approval.New(layer),
		Sweeper:   sweeper,
		log:       log,
	}, nil
}

func restoreSession(ctx context.Context, st *store.Store, sess *session.Context) error {
	raw, err := st.GetSetting(ctx, store.SettingSession)
	if err != nil || raw == "" {
		return err
	}
	var state session.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return fmt.Errorf("decoding saved session: %w", err)
	}
	if state.Mode != "" {
		if _, err := session.ParseMode(string(state.Mode)); err != nil {
			return err
		}
	}
	sess.Restore(state)
	return nil
}

// SaveSession persists mode, token and principal so the next run resumes
// them.
func (a *App) SaveSession(ctx context.Context) error {
	data, err := json.Marshal(a.Session.Snapshot())
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return a.Store.SetSetting(ctx, store.SettingSession, string(data))
}

// SetMode switches between connected and local-only mode and saves the
// session. Operations started before the switch are superseded.
func (a *App) SetMode(ctx context.Context, mode session.Mode) error {
	a.Session.SetMode(mode)
	a.log.Info("mode changed", "mode", mode)
	return a.SaveSession(ctx)
}

// SetEndpoint points the remote client at a new base URL.
func (a *App) SetEndpoint(baseURL string) {
	a.Remote.SetBaseURL(baseURL)
	a.Config.Remote.BaseURL = baseURL
}

// Login signs in and saves the session.
func (a *App) Login(ctx context.Context, contact, password string) (session.Principal, error) {
	p, err := a.Sync.Auth().Login(ctx, contact, password)
	if err != nil {
		return session.Principal{}, err
	}
	return p, a.SaveSession(ctx)
}

// Logout signs out and saves the session.
func (a *App) Logout(ctx context.Context) error {
	a.Sync.Auth().Logout()
	return a.SaveSession(ctx)
}

// SyncAll refreshes every family the signed-in user may read,
// concurrently. Department-scoped families use departmentID ("" for all).
// The first failure is returned after all syncs finish.
func (a *App) SyncAll(ctx context.Context, departmentID string) error {
	var g errgroup.Group
	l := a.Sync
	p, _ := a.Session.Principal()
	admin := model.RoleAtLeast(p.Role, model.RoleAdmin)

	g.Go(func() error {
		_, err := syncer.Await(ctx, l.Categories().Sync(ctx))
		return wrapSync("categories", err)
	})
	g.Go(func() error {
		_, err := syncer.Await(ctx, l.Departments().Sync(ctx))
		return wrapSync("departments", err)
	})
	g.Go(func() error {
		_, err := syncer.Await(ctx, l.Equipment().Sync(ctx, departmentID))
		return wrapSync("equipment", err)
	})
	if admin {
		g.Go(func() error {
			_, err := syncer.Await(ctx, l.Users().Sync(ctx, departmentID))
			return wrapSync("users", err)
		})
		g.Go(func() error {
			_, err := syncer.Await(ctx, l.Registrations().Sync(ctx, departmentID))
			return wrapSync("registrations", err)
		})
	}
	g.Go(func() error {
		_, err := syncer.Await(ctx, l.Borrows().SyncHistory(ctx, departmentID))
		return wrapSync("borrow history", err)
	})
	g.Go(func() error {
		_, err := syncer.Await(ctx, l.Borrows().SyncRequests(ctx, departmentID))
		return wrapSync("borrow requests", err)
	})

	return g.Wait()
}

func wrapSync(family string, err error) error {
	if err != nil {
		return fmt.Errorf("syncing %s: %w", family, err)
	}
	return nil
}

// Foreground runs the work due when the application comes to the
// foreground: an overdue sweep.
func (a *App) Foreground(ctx context.Context) error {
	ids, err := a.Sweeper.Foreground(ctx)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		a.log.Info("foreground sweep marked borrows overdue", "count", len(ids))
	}
	return nil
}

// Close stops background jobs, cancels in-flight operations and closes
// the database if Open opened it.
func (a *App) Close() error {
	a.Sweeper.Stop()
	a.Session.Release()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
