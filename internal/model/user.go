package model

import (
	"fmt"
	"strings"
)

// Role is a user's privilege level.
type Role string

// Roles, most privileged first.
const (
	RoleSuperAdmin   Role = "SUPER_ADMIN"
	RoleAdmin        Role = "ADMIN"
	RoleAdvancedUser Role = "ADVANCED_USER"
	RoleNormalUser   Role = "NORMAL_USER"
)

var roleLevels = map[Role]int{
	RoleSuperAdmin:   4,
	RoleAdmin:        3,
	RoleAdvancedUser: 2,
	RoleNormalUser:   1,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
// Unknown roles fail closed.
func RoleAtLeast(role, minimum Role) bool {
	have, ok := roleLevels[role]
	if !ok {
		return false
	}
	want, ok := roleLevels[minimum]
	if !ok {
		return false
	}
	return have >= want
}

// UserStatus marks whether a user may sign in.
type UserStatus string

// User statuses.
const (
	UserStatusNormal UserStatus = "NORMAL"
	UserStatusBanned UserStatus = "BANNED"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	return s == UserStatusNormal || s == UserStatusBanned
}

// User is an account. Contact is unique across users.
type User struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Contact        string     `json:"contact"`
	DepartmentID   string     `json:"department_id"`
	Role           Role       `json:"role"`
	Status         UserStatus `json:"status"`
	Password       string     `json:"password,omitempty"`
	InvitationCode string     `json:"invitation_code,omitempty"`
}

// MinPasswordLength is the shortest password accepted on signup.
const MinPasswordLength = 8

// ValidatePassword checks password requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidateContact checks that a contact is usable as a login.
func ValidateContact(contact string) error {
	if strings.TrimSpace(contact) == "" {
		return fmt.Errorf("contact required")
	}
	return nil
}
