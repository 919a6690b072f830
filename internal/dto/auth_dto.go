package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/bkaraoglu/timberline-api/internal/models"
	"github.com/bkaraoglu/timberline-api/internal/roles"
)

type RegisterRequest struct {
	Name        string     `json:"name"`
	Surname     string     `json:"surname"`
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	Phone       string     `json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
}

type LoginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"two_factor_code,omitempty"`
	RecoveryCode  string `json:"recovery_code,omitempty"`
}

type GoogleSignInRequest struct {
	IdentityToken string `json:"identity_token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

type VerifyEmailRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type DeactivateRequest struct {
	Password string `json:"password"`
}

type AuthResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	Abilities []string     `json:"abilities"`
}

type TwoFactorChallengeResponse struct {
	RequiresTwoFactor bool `json:"requires_2fa"`
}

type UserResponse struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Surname       string     `json:"surname"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	Avatar        string     `json:"avatar,omitempty"`
	Role          roles.Role `json:"role"`
	RoleLabel     string     `json:"role_label"`
	EmailVerified bool       `json:"email_verified"`
	TwoFactor     bool       `json:"two_factor_enabled"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Surname:       u.Surname,
		Email:         u.Email,
		Phone:         u.Phone,
		Avatar:        u.Avatar,
		Role:          u.Role,
		RoleLabel:     u.Role.Label(),
		EmailVerified: u.EmailVerified(),
		TwoFactor:     u.TwoFactorEnabled,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
	}
}
