package service

import (
	"context"
	"strings"

	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stemsi/exproctor-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// AdminService handles admin accounts.
type AdminService struct {
	adminRepo  *repository.AdminRepository
	bcryptCost int
}

// NewAdminService creates a new AdminService.
func NewAdminService(adminRepo *repository.AdminRepository, bcryptCost int) *AdminService {
	return &AdminService{adminRepo: adminRepo, bcryptCost: bcryptCost}
}

// GetByID retrieves an admin by ID.
func (s *AdminService) GetByID(ctx context.Context, id int) (*model.Admin, error) {
	return s.adminRepo.GetByID(ctx, id)
}

// Create hashes the password and inserts a new admin. Unknown permission
// codes are dropped.
func (s *AdminService) Create(ctx context.Context, email, name, password string, permissions []string) (*model.Admin, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	admin := &model.Admin{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hashed),
		Permissions:  KnownPermissions(permissions),
	}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// GrantAll gives the admin every permission code the server knows about.
func (s *AdminService) GrantAll(ctx context.Context, email string) (int, error) {
	return s.adminRepo.SetPermissions(ctx, email, model.PermissionCodes())
}

// KnownPermissions filters codes down to the ones the server recognises,
// dropping duplicates and keeping order.
func KnownPermissions(codes []string) []string {
	known := make(map[string]bool)
	for _, p := range model.PermissionCodes() {
		known[p] = true
	}
	granted := make([]string, 0, len(codes))
	for _, p := range codes {
		p = strings.TrimSpace(p)
		if known[p] {
			granted = append(granted, p)
			known[p] = false
		}
	}
	return granted
}
