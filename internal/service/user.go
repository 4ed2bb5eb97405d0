package service

import (
	"context"
	"strings"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/apperr"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/auth"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

var userSorts = map[string]bool{"": true, "created_at": true, "name": true, "email": true}

// UserService serves the admin user directory.
type UserService struct {
	users UserDirectory
}

// NewUserService constructs a UserService.
func NewUserService(users UserDirectory) *UserService {
	return &UserService{users: users}
}

// List pages through users. Admin only.
func (s *UserService) List(ctx context.Context, id auth.Identity, f model.UserFilter) (*model.UserPage, error) {
	if id.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("only admins can list users")
	}
	f.Search = strings.TrimSpace(f.Search)
	if !userSorts[f.SortBy] {
		return nil, apperr.Validation("sort_by must be created_at, name or email")
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	users, total, err := s.users.List(ctx, f)
	if err != nil {
		return nil, storeErr("user", "list users", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return &model.UserPage{Users: users, Total: total, Page: f.Page, Limit: f.Limit}, nil
}
