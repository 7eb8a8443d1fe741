package domain

import "time"

// User is the root aggregate: it owns devices, security events, scans,
// payments and activity logs.
type User struct {
	ID                    string
	Username              string
	Email                 string
	PasswordHash          string
	FirstName             string
	LastName              string
	CompanyName           string
	Phone                 string
	Country               string
	SubscriptionTier      Tier
	SubscriptionStatus    SubscriptionStatus
	SubscriptionStartDate *time.Time
	SubscriptionEndDate   *time.Time
	IsAdmin               bool
	IsActive              bool
	CreatedAt             time.Time
	LastLogin             *time.Time
}

// NewRegisteredUser returns a user in the post-registration state: free tier,
// active status and no subscription dates.
func NewRegisteredUser(username, email, passwordHash string) *User {
	return &User{
		Username:           username,
		Email:              email,
		PasswordHash:       passwordHash,
		SubscriptionTier:   TierFree,
		SubscriptionStatus: SubscriptionActive,
		IsActive:           true,
	}
}

// FullName joins first and last name, falling back to the username.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
