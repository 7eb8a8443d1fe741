package dto

import (
	"time"

	"github.com/spec-kit/shield-service/internal/domain"
)

// RegisterRequest payload for new users.
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=80"`
	Email       string `json:"email" validate:"required,max=120"`
	Password    string `json:"password" validate:"required,max=128"`
	FirstName   string `json:"first_name" validate:"max=50"`
	LastName    string `json:"last_name" validate:"max=50"`
	CompanyName string `json:"company_name" validate:"max=100"`
	Phone       string `json:"phone" validate:"max=20"`
	Country     string `json:"country" validate:"max=50"`
}

// LoginRequest payload for login. Username may also hold the email address.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileRequest carries optional profile changes.
type ProfileRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,max=50"`
	LastName    *string `json:"last_name" validate:"omitempty,max=50"`
	CompanyName *string `json:"company_name" validate:"omitempty,max=100"`
	Phone       *string `json:"phone" validate:"omitempty,max=20"`
	Country     *string `json:"country" validate:"omitempty,max=50"`
	Email       *string `json:"email" validate:"omitempty,max=120"`
}

// ChangePasswordRequest payload for password changes.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,max=128"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID                    string     `json:"id"`
	Username              string     `json:"username"`
	Email                 string     `json:"email"`
	FirstName             string     `json:"first_name"`
	LastName              string     `json:"last_name"`
	CompanyName           string     `json:"company_name"`
	Phone                 string     `json:"phone"`
	Country               string     `json:"country"`
	SubscriptionTier      string     `json:"subscription_tier"`
	SubscriptionStatus    string     `json:"subscription_status"`
	SubscriptionStartDate *time.Time `json:"subscription_start_date"`
	SubscriptionEndDate   *time.Time `json:"subscription_end_date"`
	IsAdmin               bool       `json:"is_admin"`
	IsActive              bool       `json:"is_active"`
	CreatedAt             time.Time  `json:"created_at"`
	LastLogin             *time.Time `json:"last_login"`
}

// NewUserResponse maps a user, leaving the password hash behind.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:                    u.ID,
		Username:              u.Username,
		Email:                 u.Email,
		FirstName:             u.FirstName,
		LastName:              u.LastName,
		CompanyName:           u.CompanyName,
		Phone:                 u.Phone,
		Country:               u.Country,
		SubscriptionTier:      string(u.SubscriptionTier),
		SubscriptionStatus:    string(u.SubscriptionStatus),
		SubscriptionStartDate: u.SubscriptionStartDate,
		SubscriptionEndDate:   u.SubscriptionEndDate,
		IsAdmin:               u.IsAdmin,
		IsActive:              u.IsActive,
		CreatedAt:             u.CreatedAt,
		LastLogin:             u.LastLogin,
	}
}

// NewUserResponses maps a slice of users.
func NewUserResponses(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}
