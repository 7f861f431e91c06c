package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/tomdekan/react-auth/internal/cache"
	dom "github.com/tomdekan/react-auth/internal/domain"
	"github.com/tomdekan/react-auth/internal/repo"
	"github.com/tomdekan/react-auth/internal/utils"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"
)

// Closed set of registration/login failures. Handlers map these to stable
// client-facing messages; raw store error text never leaves the service.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidInput       = errors.New("email and password required")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrNotFound           = errors.New("user not found")
)

// UserService handles user auth logic.
type UserService struct {
	repo  repo.UserRepo
	cache *cache.UserCache
	sf    singleflight.Group
}

// NewUserService creates a UserService. If c is nil, caching is disabled.
func NewUserService(r repo.UserRepo, c *cache.UserCache) *UserService {
	return &UserService{repo: r, cache: c}
}

// ValidateCredentials checks email and password; returns the user if valid.
// Unknown email and wrong password both come back as ErrInvalidCredentials so
// the caller cannot enumerate accounts.
func (s *UserService) ValidateCredentials(ctx context.Context, email, password string) (dom.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return dom.User{}, ErrInvalidCredentials
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrInvalidCredentials
		}
		return dom.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return dom.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Register creates a new user with a hashed password. The email is the
// canonical identifier and is stored as the username too.
func (s *UserService) Register(ctx context.Context, email, password string) (dom.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return dom.User{}, ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return dom.User{}, err
	}
	u, err := s.repo.Create(ctx, email, email, string(hash))
	if err != nil {
		switch utils.UniqueViolationConstraint(err) {
		case "users_email_key":
			return dom.User{}, ErrDuplicateEmail
		case "users_username_key":
			return dom.User{}, ErrDuplicateUsername
		}
		if utils.IsPGUniqueViolation(err) {
			return dom.User{}, ErrDuplicateEmail
		}
		return dom.User{}, err
	}
	return u, nil
}

// CurrentUser returns the user behind an authenticated session.
func (s *UserService) CurrentUser(ctx context.Context, id int64) (dom.User, error) {
	if s.cache != nil {
		key := "user:" + strconv.FormatInt(id, 10)
		v, err, _ := s.sf.Do(key, func() (interface{}, error) {
			if u, err := s.cache.Get(ctx, id); err == nil && u != nil {
				return *u, nil
			}
			u, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return dom.User{}, err
			}
			_ = s.cache.Set(ctx, u)
			return u, nil
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return dom.User{}, ErrNotFound
			}
			return dom.User{}, err
		}
		return v.(dom.User), nil
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrNotFound
		}
		return dom.User{}, err
	}
	return u, nil
}
