package remote

import (
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

// Wire types. The service does not guarantee that any field is present,
// so every field is a pointer and callers sanitize before use.

type Item struct {
	ID                *string    `json:"id"`
	Name              *string    `json:"name"`
	Description       *string    `json:"description"`
	CategoryID        *string    `json:"category_id"`
	DepartmentID      *string    `json:"department_id"`
	TotalQuantity     *int       `json:"total_quantity"`
	AvailableQuantity *int       `json:"available_quantity"`
	RequiresApproval  *bool      `json:"requires_approval"`
	ImageRef          *string    `json:"image_ref"`
	UpdatedAt         *time.Time `json:"updated_at"`
}

type Category struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

type Department struct {
	ID       *string `json:"id"`
	Name     *string `json:"name"`
	ParentID *string `json:"parent_id"`
}

type User struct {
	ID             *string `json:"id"`
	Name           *string `json:"name"`
	Contact        *string `json:"contact"`
	DepartmentID   *string `json:"department_id"`
	Role           *string `json:"role"`
	Status         *string `json:"status"`
	InvitationCode *string `json:"invitation_code"`
}

type Contact struct {
	Name    *string `json:"name"`
	Contact *string `json:"contact"`
}

type Operator struct {
	ID      *string `json:"id"`
	Name    *string `json:"name"`
	Contact *string `json:"contact"`
}

type HistoryEntry struct {
	ID                 *string    `json:"id"`
	RequestID          *string    `json:"request_id"`
	ItemID             *string    `json:"item_id"`
	ItemName           *string    `json:"item_name"`
	DepartmentID       *string    `json:"department_id"`
	Quantity           *int       `json:"quantity"`
	Borrower           *Contact   `json:"borrower"`
	Operator           *Operator  `json:"operator"`
	BorrowDate         *time.Time `json:"borrow_date"`
	ExpectedReturnDate *time.Time `json:"expected_return_date"`
	ReturnDate         *time.Time `json:"return_date"`
	Status             *string    `json:"status"`
	BorrowPhotos       []*string  `json:"borrow_photos"`
	ReturnPhotos       []*string  `json:"return_photos"`
	ForcedReturnBy     *string    `json:"forced_return_by"`
}

type BorrowRequest struct {
	ID                 *string    `json:"id"`
	ItemID             *string    `json:"item_id"`
	ItemName           *string    `json:"item_name"`
	DepartmentID       *string    `json:"department_id"`
	Quantity           *int       `json:"quantity"`
	Borrower           *Contact   `json:"borrower"`
	Operator           *Operator  `json:"operator"`
	RequestedAt        *time.Time `json:"requested_at"`
	ExpectedReturnDate *time.Time `json:"expected_return_date"`
	Photos             []*string  `json:"photos"`
	Status             *string    `json:"status"`
	ReviewedBy         *string    `json:"reviewed_by"`
	ReviewedAt         *time.Time `json:"reviewed_at"`
	HistoryID          *string    `json:"history_id"`
}

type Registration struct {
	ID             *string    `json:"id"`
	Name           *string    `json:"name"`
	Contact        *string    `json:"contact"`
	DepartmentID   *string    `json:"department_id"`
	InviterID      *string    `json:"inviter_id"`
	InvitationCode *string    `json:"invitation_code"`
	CreatedAt      *time.Time `json:"created_at"`
	// PasswordHash is the bcrypt hash of the signup password, so an
	// approval applied offline still yields an account that can sign in.
	PasswordHash *string `json:"password_hash"`
}

// Outcome is the result of a borrow-lifecycle call. Fields the operation
// did not touch are nil.
type Outcome struct {
	Item    *Item          `json:"item"`
	History *HistoryEntry  `json:"history"`
	Request *BorrowRequest `json:"request"`
}

// LoginResult is returned by a successful sign-in.
type LoginResult struct {
	Token *string `json:"token"`
	User  *User   `json:"user"`
}

// Request bodies. These are sent by the client and are never nil-valued.

type LoginRequest struct {
	Contact  string `json:"contact"`
	Password string `json:"password"`
}

type BorrowInput struct {
	ItemID             string        `json:"item_id"`
	Quantity           int           `json:"quantity"`
	Borrower           model.Contact `json:"borrower"`
	ExpectedReturnDate time.Time     `json:"expected_return_date"`
	Photos             []string      `json:"photos,omitempty"`
}

type ReturnInput struct {
	ItemID string   `json:"item_id,omitempty"`
	Forced bool     `json:"forced"`
	Photos []string `json:"photos,omitempty"`
}

type RegistrationInput struct {
	Name           string `json:"name"`
	Contact        string `json:"contact"`
	DepartmentID   string `json:"department_id"`
	Password       string `json:"password"`
	InviterID      string `json:"inviter_id,omitempty"`
	InvitationCode string `json:"invitation_code,omitempty"`
}

// UserInput creates or updates a user. An empty Password leaves it unchanged.
type UserInput struct {
	Name           string `json:"name"`
	Contact        string `json:"contact"`
	DepartmentID   string `json:"department_id"`
	Role           string `json:"role"`
	Status         string `json:"status"`
	Password       string `json:"password,omitempty"`
	InvitationCode string `json:"invitation_code,omitempty"`
}

// ItemInput creates or updates an item. AvailableQuantity is only sent on
// create; on update the service shifts it with the total.
type ItemInput struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	CategoryID        string `json:"category_id"`
	DepartmentID      string `json:"department_id"`
	TotalQuantity     int    `json:"total_quantity"`
	AvailableQuantity *int   `json:"available_quantity,omitempty"`
	RequiresApproval  bool   `json:"requires_approval"`
	ImageRef          string `json:"image_ref,omitempty"`
}

// NamedInput creates or updates a category or department.
type NamedInput struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}
