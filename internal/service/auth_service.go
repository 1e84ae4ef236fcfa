package service

import (
	"context"
	"fmt"
	"strings"

	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"
	"merchant-wallet/pkg/apperror"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo     ports.UserRepository
	merchantRepo ports.MerchantRepository
	hashSvc      ports.HashService
	tokenSvc     ports.TokenService
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	merchantRepo ports.MerchantRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:     userRepo,
		merchantRepo: merchantRepo,
		hashSvc:      hashSvc,
		tokenSvc:     tokenSvc,
	}
}

// Login validates credentials and returns a JWT carrying the user's role and,
// for merchants, the merchant id.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return nil, apperror.ErrInvalidCredentials()
	}

	claims := ports.TokenClaims{UserID: user.ID, Role: user.Role}
	if user.Role == domain.RoleMerchant {
		merchant, err := s.merchantRepo.GetByUserID(ctx, user.ID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("find merchant: %w", err))
		}
		if merchant == nil {
			return nil, apperror.ErrInvalidCredentials()
		}
		if merchant.Status == domain.MerchantStatusRejected {
			return nil, apperror.ErrMerchantNotApproved()
		}
		id := merchant.ID
		claims.MerchantID = &id
	}

	token, expiry, err := s.tokenSvc.Generate(claims)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return &ports.LoginResult{
		Token:      token,
		Expiry:     expiry,
		Role:       user.Role,
		UserID:     user.ID,
		MerchantID: claims.MerchantID,
	}, nil
}
