// Package remote is the transport to the authoritative service. Each call
// performs one remote operation and returns either a payload or a
// classified *errs.Error; it keeps no state between calls.
package remote

import "context"

// Client is the remote service boundary. Implementations must classify
// every failure with internal/errs.
type Client interface {
	Login(ctx context.Context, contact, password string) (*LoginResult, error)

	ListItems(ctx context.Context, departmentID string) ([]Item, error)
	CreateItem(ctx context.Context, in ItemInput) (*Item, error)
	UpdateItem(ctx context.Context, id string, in ItemInput) (*Item, error)
	DeleteItem(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, in NamedInput) (*Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListDepartments(ctx context.Context) ([]Department, error)
	CreateDepartment(ctx context.Context, in NamedInput) (*Department, error)
	UpdateDepartment(ctx context.Context, id string, in NamedInput) (*Department, error)
	DeleteDepartment(ctx context.Context, id string) error

	ListUsers(ctx context.Context, departmentID string) ([]User, error)
	CreateUser(ctx context.Context, in UserInput) (*User, error)
	UpdateUser(ctx context.Context, id string, in UserInput) (*User, error)
	DeleteUser(ctx context.Context, id string) error

	ListHistory(ctx context.Context, departmentID string) ([]HistoryEntry, error)
	Borrow(ctx context.Context, in BorrowInput) (*Outcome, error)
	Return(ctx context.Context, historyID string, in ReturnInput) (*Outcome, error)
	ListBorrowRequests(ctx context.Context, departmentID string) ([]BorrowRequest, error)
	ApproveBorrow(ctx context.Context, requestID string) (*Outcome, error)
	RejectBorrow(ctx context.Context, requestID string) (*Outcome, error)

	ListRegistrations(ctx context.Context, departmentID string) ([]Registration, error)
	CreateRegistration(ctx context.Context, in RegistrationInput) (*Registration, error)
	ApproveRegistration(ctx context.Context, id string) (*User, error)
	RejectRegistration(ctx context.Context, id string) error
}

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
}
