package services

import (
	"context"

	"loyaltyhub/internal/adapters/persistence/repositories"
	"loyaltyhub/internal/config"
	"loyaltyhub/internal/core/domain"
	"loyaltyhub/internal/pkg/jwt"
	"loyaltyhub/internal/pkg/password"
)

// AuthService handles staff authentication
type AuthService struct {
	staffRepo repositories.StaffUserRepository
	cfg       *config.Config
}

// NewAuthService creates a new auth service
func NewAuthService(staffRepo repositories.StaffUserRepository, cfg *config.Config) *AuthService {
	return &AuthService{staffRepo: staffRepo, cfg: cfg}
}

// LoginInput represents login input
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Username    string `json:"username"`
	Role        string `json:"role"`
	TenantID    uint   `json:"tenant_id"`
	AccessToken string `json:"access_token"`
}

// Login authenticates a staff user and issues an access token
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	user, err := s.staffRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}
	if !password.Verify(input.Password, user.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := jwt.GenerateAccessToken(user.ID, user.TenantID, user.Username, string(user.Role),
		s.cfg.JWT.Secret, s.cfg.JWT.AccessTokenMins)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Username:    user.Username,
		Role:        string(user.Role),
		TenantID:    user.TenantID,
		AccessToken: token,
	}, nil
}
