package model

// Family names an entity family. It is the unit of change notification in
// the local store and of write policy in the sync layer.
type Family string

// Entity families.
const (
	FamilyEquipment      Family = "equipment"
	FamilyCategories     Family = "categories"
	FamilyDepartments    Family = "departments"
	FamilyUsers          Family = "users"
	FamilyBorrowHistory  Family = "borrow_history"
	FamilyBorrowRequests Family = "borrow_requests"
	FamilyRegistrations  Family = "registrations"
)

// Families lists every entity family.
var Families = []Family{
	FamilyEquipment,
	FamilyCategories,
	FamilyDepartments,
	FamilyUsers,
	FamilyBorrowHistory,
	FamilyBorrowRequests,
	FamilyRegistrations,
}
