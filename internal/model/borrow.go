package model

import "time"

// BorrowStatus is the lifecycle state of a borrow request or history entry.
type BorrowStatus string

// Request statuses.
const (
	StatusPending  BorrowStatus = "PENDING"
	StatusApproved BorrowStatus = "APPROVED"
	StatusRejected BorrowStatus = "REJECTED"
)

// History entry statuses.
const (
	StatusBorrowing          BorrowStatus = "BORROWING"
	StatusReturned           BorrowStatus = "RETURNED"
	StatusOverdueNotReturned BorrowStatus = "OVERDUE_NOT_RETURNED"
	StatusOverdueReturned    BorrowStatus = "OVERDUE_RETURNED"
)

// Valid reports whether s is a known status.
func (s BorrowStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected,
		StatusBorrowing, StatusReturned, StatusOverdueNotReturned, StatusOverdueReturned:
		return true
	}
	return false
}

// IsRequestStatus reports whether s applies to requests awaiting review.
func (s BorrowStatus) IsRequestStatus() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Contact identifies the person an item was lent to.
type Contact struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// Operator is the user who recorded an operation.
type Operator struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// BorrowHistoryEntry records one materialized borrow. ItemName is a
// snapshot so history stays readable after the item is deleted.
type BorrowHistoryEntry struct {
	ID                 string       `json:"id"`
	RequestID          string       `json:"request_id,omitempty"`
	ItemID             string       `json:"item_id"`
	ItemName           string       `json:"item_name"`
	DepartmentID       string       `json:"department_id"`
	Quantity           int          `json:"quantity"`
	Borrower           Contact      `json:"borrower"`
	Operator           Operator     `json:"operator"`
	BorrowDate         time.Time    `json:"borrow_date"`
	ExpectedReturnDate time.Time    `json:"expected_return_date"`
	ReturnDate         *time.Time   `json:"return_date,omitempty"`
	Status             BorrowStatus `json:"status"`
	BorrowPhotos       []string     `json:"borrow_photos,omitempty"`
	ReturnPhotos       []string     `json:"return_photos,omitempty"`
	ForcedReturnBy     string       `json:"forced_return_by,omitempty"`
}

// BorrowRequest is a borrow awaiting review. The item is
// unchanged until the request is approved.
type BorrowRequest struct {
	ID                 string       `json:"id"`
	ItemID             string       `json:"item_id"`
	ItemName           string       `json:"item_name"`
	DepartmentID       string       `json:"department_id"`
	Quantity           int          `json:"quantity"`
	Borrower           Contact      `json:"borrower"`
	Operator           Operator     `json:"operator"`
	RequestedAt        time.Time    `json:"requested_at"`
	ExpectedReturnDate time.Time    `json:"expected_return_date"`
	Photos             []string     `json:"photos,omitempty"`
	Status             BorrowStatus `json:"status"`
	ReviewedBy         string       `json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time   `json:"reviewed_at,omitempty"`
	HistoryID          string       `json:"history_id,omitempty"`
}

// RegistrationRequest is a self-service signup awaiting approval.
type RegistrationRequest struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Contact        string    `json:"contact"`
	DepartmentID   string    `json:"department_id"`
	Password       string    `json:"password,omitempty"`
	InviterID      string    `json:"inviter_id,omitempty"`
	InvitationCode string    `json:"invitation_code,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
