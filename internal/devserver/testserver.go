package devserver

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/erazemk/izposoja/internal/clock"
	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// TestPassword is the password of accounts created by NewTestServer.
const TestPassword = "correct-horse"

// Test accounts created by NewTestServer.
var (
	TestAdmin = model.User{
		ID: "u-admin", Name: "Ana Admin", Contact: "ana@example.com",
		DepartmentID: "d-1", Role: model.RoleAdmin,
	}
	TestAdvanced = model.User{
		ID: "u-adv", Name: "Bor Advanced", Contact: "bor@example.com",
		DepartmentID: "d-1", Role: model.RoleAdvancedUser,
	}
	TestNormal = model.User{
		ID: "u-normal", Name: "Cene Normal", Contact: "cene@example.com",
		DepartmentID: "d-1", Role: model.RoleNormalUser,
	}
)

// NewTestServer starts a Server on an in-memory database with the test
// accounts and department d-1. It is closed when the test ends.
func NewTestServer(t testing.TB, clk clock.Clock) (*Server, *httptest.Server) {
	t.Helper()

	ctx := context.Background()
	st := store.New(db.NewTestDB(t), nil)
	srv, err := New(ctx, st, Options{
		Clock:  clk,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Secret: "test-secret",
	})
	if err != nil {
		t.Fatalf("creating dev server: %v", err)
	}

	err = srv.Put(ctx, func(tx *store.Tx) error {
		return tx.PutDepartment(ctx, model.Department{ID: "d-1", Name: "Physics"})
	})
	if err != nil {
		t.Fatalf("seeding department: %v", err)
	}
	for _, u := range []model.User{TestAdmin, TestAdvanced, TestNormal} {
		if _, err := srv.CreateUser(ctx, u, TestPassword); err != nil {
			t.Fatalf("seeding user %s: %v", u.ID, err)
		}
	}

	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Resume()
		ts.Close()
	})
	return srv, ts
}
