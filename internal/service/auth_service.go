package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/auth"
	"github.com/spec-kit/shield-service/internal/config"
	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/repository"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	eventPublisher
	store      repository.Store
	tokenMgr   *auth.TokenManager
	bcryptCost int
	audit      *AuditLogger
	logger     *zap.Logger
	now        Clock
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Store      repository.Store
	Audit      *AuditLogger
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
}

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	CompanyName string
	Phone       string
	Country     string
}

// ProfileInput carries optional profile changes; nil fields are untouched.
type ProfileInput struct {
	FirstName   *string
	LastName    *string
	CompanyName *string
	Phone       *string
	Country     *string
	Email       *string
}

// Session is an issued bearer token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := loggerOrNop(deps.Logger)
	now := clockOrDefault(deps.Clock)
	return &AuthService{
		eventPublisher: eventPublisher{dispatcher: deps.Dispatcher, logger: logger, now: now},
		store:          deps.Store,
		tokenMgr:       auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost:     cfg.Auth.BcryptCost,
		audit:          deps.Audit,
		logger:         logger,
		now:            now,
	}
}

// Register creates a free, active account and signs the caller in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta domain.RequestMeta) (*Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, apperrors.NewValidationError("username, email and password are required", nil)
	}
	if !auth.ValidEmail(in.Email) {
		return nil, apperrors.NewValidationError("invalid email format", map[string]any{"field": "email"})
	}
	if err := auth.CheckPasswordStrength(in.Password); err != nil {
		return nil, err
	}

	if taken, err := s.exists(ctx, s.store.Users().GetByUsername, in.Username); err != nil {
		return nil, err
	} else if taken {
		return nil, apperrors.NewConflict("username already exists", map[string]any{"field": "username"})
	}
	if taken, err := s.exists(ctx, s.store.Users().GetByEmail, in.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, apperrors.NewConflict("email already exists", map[string]any{"field": "email"})
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := domain.NewRegisteredUser(in.Username, in.Email, hash)
	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.CompanyName = in.CompanyName
	user.Phone = in.Phone
	user.Country = in.Country
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, apperrors.MapStoreError(err)
	}

	s.audit.RecordFor(ctx, user.ID, domain.ActionUserRegistration,
		fmt.Sprintf("User %s registered successfully", user.Username), meta)
	s.publishEvent(ctx, events.Event{
		Type:    events.EventUserRegistered,
		UserID:  user.ID,
		Payload: events.UserRegisteredPayload{Username: user.Username, Email: user.Email},
	})

	return s.issue(user)
}

// Login authenticates by username or email.
func (s *AuthService) Login(ctx context.Context, login, password string, meta domain.RequestMeta) (*Session, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password are required", nil)
	}

	user, err := s.store.Users().GetByLogin(ctx, login)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapStoreError(err)
	}
	if user == nil || auth.ComparePassword(user.PasswordHash, password) != nil {
		s.audit.Record(ctx, nil, domain.ActionLoginFailed,
			fmt.Sprintf("Failed login attempt for username: %s", login), meta)
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorized("account is deactivated")
	}

	loginAt := s.now()
	user.LastLogin = &loginAt
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, apperrors.MapStoreError(err)
	}

	s.audit.RecordFor(ctx, user.ID, domain.ActionLoginSuccess,
		fmt.Sprintf("User %s logged in successfully", user.Username), meta)
	return s.issue(user)
}

// Profile returns the caller's account.
func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.MapStoreError(err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of in.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileInput, meta domain.RequestMeta) (*domain.User, error) {
	var updated *domain.User
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return apperrors.MapStoreError(err)
		}
		assign(&user.FirstName, in.FirstName)
		assign(&user.LastName, in.LastName)
		assign(&user.CompanyName, in.CompanyName)
		assign(&user.Phone, in.Phone)
		assign(&user.Country, in.Country)

		if in.Email != nil {
			email := strings.TrimSpace(*in.Email)
			if !auth.ValidEmail(email) {
				return apperrors.NewValidationError("invalid email format", map[string]any{"field": "email"})
			}
			if email != user.Email {
				taken, err := s.exists(ctx, tx.Users().GetByEmail, email)
				if err != nil {
					return err
				}
				if taken {
					return apperrors.NewConflict("email already exists", map[string]any{"field": "email"})
				}
				user.Email = email
			}
		}
		if err := tx.Users().Update(ctx, user); err != nil {
			return apperrors.MapStoreError(err)
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.RecordFor(ctx, userID, domain.ActionProfileUpdate,
		fmt.Sprintf("User %s updated profile", updated.Username), meta)
	return updated, nil
}

// ChangePassword verifies current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string, meta domain.RequestMeta) error {
	if currentPassword == "" || newPassword == "" {
		return apperrors.NewValidationError("current password and new password are required", nil)
	}
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return apperrors.MapStoreError(err)
	}
	if auth.ComparePassword(user.PasswordHash, currentPassword) != nil {
		return apperrors.NewValidationError("current password is incorrect", map[string]any{"field": "current_password"})
	}
	if err := auth.CheckPasswordStrength(newPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.store.Users().Update(ctx, user); err != nil {
		return apperrors.MapStoreError(err)
	}
	s.audit.RecordFor(ctx, userID, domain.ActionPasswordChange,
		fmt.Sprintf("User %s changed password", user.Username), meta)
	return nil
}

// EnsureAdmin creates the bootstrap administrator when no admin exists.
// It reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, cfg config.BootstrapConfig) (bool, error) {
	if cfg.AdminUsername == "" || cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}
	exists, err := s.store.Users().AdminExists(ctx)
	if err != nil {
		return false, apperrors.MapStoreError(err)
	}
	if exists {
		return false, nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword, s.bcryptCost)
	if err != nil {
		return false, apperrors.NewInternalError(err)
	}
	admin := domain.NewRegisteredUser(cfg.AdminUsername, cfg.AdminEmail, hash)
	admin.FirstName = "Admin"
	admin.LastName = "User"
	admin.IsAdmin = true
	admin.SubscriptionTier = domain.TierEnterprise
	if err := s.store.Users().Create(ctx, admin); err != nil {
		return false, apperrors.MapStoreError(err)
	}
	s.logger.Info("bootstrap administrator created", zap.String("username", admin.Username))
	return true, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.IsAdmin)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) exists(ctx context.Context, lookup func(context.Context, string) (*domain.User, error), key string) (bool, error) {
	_, err := lookup(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	default:
		return false, apperrors.MapStoreError(err)
	}
}

func assign(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
