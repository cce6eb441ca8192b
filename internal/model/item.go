package model

import "time"

// EquipmentItem is a kind of equipment tracked by quantity.
// 0 <= AvailableQuantity <= TotalQuantity always holds.
type EquipmentItem struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	CategoryID        string    `json:"category_id"`
	DepartmentID      string    `json:"department_id"`
	TotalQuantity     int       `json:"total_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	RequiresApproval  bool      `json:"requires_approval"`
	ImageRef          string    `json:"image_ref,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Borrowed returns the quantity currently out on loan.
func (i EquipmentItem) Borrowed() int {
	return i.TotalQuantity - i.AvailableQuantity
}

// Category groups equipment items.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Department owns equipment and users. ParentID forms a tree; cycles are
// not checked.
type Department struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}
