package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sandwichproject/coordinator/internal/auth"
	"go.uber.org/zap"
)

const (
	defaultCacheTTL     = 5 * time.Minute
	cacheCleanupPeriod  = 10 * time.Minute
	loginRefreshMinimum = time.Minute
)

var (
	// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrInactiveUser indicates the account has been deactivated.
	ErrInactiveUser = errors.New("users: account inactive")
	// ErrUnknownRole indicates a role name outside the known set.
	ErrUnknownRole = errors.New("users: unknown role")
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("users: user not found")
)

// Directory is the user persistence surface the service depends on.
type Directory interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetAllUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, user User) (User, error)
	UpdateUser(ctx context.Context, id string, update UserUpdate) (*User, error)
}

// ServiceConfig describes the dependencies required for user resolution.
type ServiceConfig struct {
	Directory Directory
	Clock     func() time.Time
	CacheTTL  time.Duration
	NewID     func() (string, error)
	Logger    *zap.Logger
}

// Service maps session identities onto platform users.
type Service struct {
	directory Directory
	now       func() time.Time
	newID     func() (string, error)
	cache     *cache.Cache
	logger    *zap.Logger
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Directory == nil {
		return nil, fmt.Errorf("users: directory required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	newID := cfg.NewID
	if newID == nil {
		newID = newUUIDv7
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		directory: cfg.Directory,
		now:       clock,
		newID:     newID,
		cache:     cache.New(ttl, cacheCleanupPeriod),
		logger:    logger,
	}, nil
}

// Resolve returns the platform user for the provided session claims, creating
// the account on first sight.
func (s *Service) Resolve(ctx context.Context, claims auth.SessionClaims) (User, error) {
	email := strings.ToLower(normalize(claims.UserEmail))
	if email == "" {
		email = deriveEmail(claims)
	}
	if email == "" {
		return User{}, ErrInvalidIdentity
	}

	if cached, ok := s.cache.Get(email); ok {
		if user, ok := cached.(User); ok {
			if !user.IsActive {
				return User{}, ErrInactiveUser
			}
			return user, nil
		}
	}

	existing, err := s.directory.GetUserByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}

	now := s.now().UTC()
	var user User
	if existing == nil {
		identifier, err := s.newID()
		if err != nil {
			return User{}, err
		}
		role := roleFromClaims(claims)
		user, err = s.directory.CreateUser(ctx, User{
			ID:              identifier,
			Email:           email,
			DisplayName:     normalize(claims.UserDisplayName),
			ProfileImageURL: normalize(claims.UserAvatarURL),
			Role:            role,
			Permissions:     PermissionList(auth.PermissionNames(auth.DefaultPermissionsForRole(role))),
			IsActive:        true,
			LastLoginAt:     &now,
		})
		if err != nil {
			return User{}, err
		}
	} else {
		user = *existing
		update := UserUpdate{}
		if display := normalize(claims.UserDisplayName); display != "" && display != user.DisplayName {
			update.DisplayName = &display
		}
		if avatar := normalize(claims.UserAvatarURL); avatar != "" && avatar != user.ProfileImageURL {
			update.ProfileImageURL = &avatar
		}
		if user.LastLoginAt == nil || now.Sub(*user.LastLoginAt) >= loginRefreshMinimum {
			update.LastLoginAt = &now
		}
		// A failed profile refresh keeps the stored profile; sign-in proceeds.
		if update != (UserUpdate{}) {
			updated, err := s.directory.UpdateUser(ctx, user.ID, update)
			switch {
			case err != nil:
				s.logger.Warn("failed to refresh user profile", zap.String("user_id", user.ID), zap.Error(err))
			case updated != nil:
				user = *updated
			}
		}
	}

	s.cache.SetDefault(email, user)
	if !user.IsActive {
		return User{}, ErrInactiveUser
	}
	return user, nil
}

// List returns every user account.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.directory.GetAllUsers(ctx)
}

// UpdateRole changes a user's role and resets explicit permissions to the role defaults.
func (s *Service) UpdateRole(ctx context.Context, id string, role string) (User, error) {
	role = strings.ToLower(normalize(role))
	if !auth.KnownRole(role) {
		return User{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	permissions := PermissionList(auth.PermissionNames(auth.DefaultPermissionsForRole(role)))
	updated, err := s.directory.UpdateUser(ctx, id, UserUpdate{Role: &role, Permissions: &permissions})
	if err != nil {
		return User{}, err
	}
	if updated == nil {
		return User{}, ErrUserNotFound
	}
	s.cache.Delete(updated.Email)
	return *updated, nil
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	updated, err := s.directory.UpdateUser(ctx, id, UserUpdate{IsActive: &active})
	if err != nil {
		return User{}, err
	}
	if updated == nil {
		return User{}, ErrUserNotFound
	}
	s.cache.Delete(updated.Email)
	return *updated, nil
}

func roleFromClaims(claims auth.SessionClaims) string {
	for _, role := range claims.UserRoles {
		if auth.KnownRole(role) {
			return strings.ToLower(normalize(role))
		}
	}
	return auth.RoleVolunteer
}

func deriveEmail(claims auth.SessionClaims) string {
	for _, candidate := range []string{claims.UserID, claims.Subject} {
		value := strings.ToLower(normalize(candidate))
		if strings.Contains(value, "@") {
			return value
		}
	}
	return ""
}

func newUUIDv7() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
