package devserver

import (
	"net/http"

	"github.com/erazemk/izposoja/internal/model"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	authMW := s.authMiddleware
	requireAdmin := RequireRole(model.RoleAdmin)
	requireReviewer := RequireRole(model.RoleAdvancedUser)

	// Public: login and signup.
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/registrations", s.createRegistration)

	// Items: read (all roles), write (admin+).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(s.listItems)))
	mux.Handle("POST /api/items", authMW(requireAdmin(http.HandlerFunc(s.createItem))))
	mux.Handle("PUT /api/items/{id}", authMW(requireAdmin(http.HandlerFunc(s.updateItem))))
	mux.Handle("DELETE /api/items/{id}", authMW(requireAdmin(http.HandlerFunc(s.deleteItem))))

	// Categories and departments: read (all roles), write (admin+).
	mux.Handle("GET /api/categories", authMW(http.HandlerFunc(s.listCategories)))
	mux.Handle("POST /api/categories", authMW(requireAdmin(http.HandlerFunc(s.createCategory))))
	mux.Handle("DELETE /api/categories/{id}", authMW(requireAdmin(http.HandlerFunc(s.deleteCategory))))
	mux.Handle("GET /api/departments", authMW(http.HandlerFunc(s.listDepartments)))
	mux.Handle("POST /api/departments", authMW(requireAdmin(http.HandlerFunc(s.createDepartment))))
	mux.Handle("PUT /api/departments/{id}", authMW(requireAdmin(http.HandlerFunc(s.updateDepartment))))
	mux.Handle("DELETE /api/departments/{id}", authMW(requireAdmin(http.HandlerFunc(s.deleteDepartment))))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(s.listUsers))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(s.createUser))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(s.updateUser))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(s.deleteUser))))

	// Borrowing (all roles); reviewing requests needs advanced+.
	mux.Handle("GET /api/borrows", authMW(http.HandlerFunc(s.listHistory)))
	mux.Handle("POST /api/borrows", authMW(http.HandlerFunc(s.borrow)))
	mux.Handle("POST /api/borrows/{id}/return", authMW(http.HandlerFunc(s.returnItem)))
	mux.Handle("GET /api/borrow-requests", authMW(http.HandlerFunc(s.listBorrowRequests)))
	mux.Handle("POST /api/borrow-requests/{id}/approve", authMW(requireReviewer(http.HandlerFunc(s.approveBorrow))))
	mux.Handle("POST /api/borrow-requests/{id}/reject", authMW(requireReviewer(http.HandlerFunc(s.rejectBorrow))))

	// Registrations (admin only, except signup above).
	mux.Handle("GET /api/registrations", authMW(requireAdmin(http.HandlerFunc(s.listRegistrations))))
	mux.Handle("POST /api/registrations/{id}/approve", authMW(requireAdmin(http.HandlerFunc(s.approveRegistration))))
	mux.Handle("POST /api/registrations/{id}/reject", authMW(requireAdmin(http.HandlerFunc(s.rejectRegistration))))

	return mux
}
