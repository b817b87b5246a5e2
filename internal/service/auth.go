package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/msomdec/people-registry/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is how long an issued auth token stays valid.
const TokenTTL = 24 * time.Hour

// AuthService is the identity provider: registration, login, token
// validation and per-request principal resolution.
type AuthService struct {
	users      domain.UserRepository
	jwtSecret  []byte
	bcryptCost int

	mu     sync.RWMutex
	admins map[string]bool // lower-cased emails granted Administrator on registration
}

// NewAuthService creates a new AuthService.
func NewAuthService(users domain.UserRepository, jwtSecret string, bcryptCost int) *AuthService {
	return &AuthService{
		users:      users,
		jwtSecret:  []byte(jwtSecret),
		bcryptCost: bcryptCost,
		admins:     make(map[string]bool),
	}
}

// BootstrapAdministrators makes sure the Administrator role exists and is
// held by every listed email. Accounts that do not exist yet receive the
// role when they register.
func (s *AuthService) BootstrapAdministrators(ctx context.Context, emails []string) error {
	if err := s.users.EnsureRole(ctx, domain.RoleAdministrator); err != nil {
		return err
	}

	s.mu.Lock()
	for _, e := range emails {
		if e = normalizeEmail(e); e != "" {
			s.admins[e] = true
		}
	}
	pending := make([]string, 0, len(s.admins))
	for e := range s.admins {
		pending = append(pending, e)
	}
	s.mu.Unlock()

	for _, email := range pending {
		user, err := s.users.GetByEmail(ctx, email)
		if errors.Is(err, domain.ErrNotFound) {
			slog.Info("administrator not registered yet", "email", email)
			continue
		}
		if err != nil {
			return fmt.Errorf("get user %s: %w", email, err)
		}
		if err := s.users.AddRole(ctx, user.ID, domain.RoleAdministrator); err != nil {
			return fmt.Errorf("grant administrator to %s: %w", email, err)
		}
	}
	return nil
}

// Register creates a new user account after validating inputs.
func (s *AuthService) Register(ctx context.Context, email, displayName, password, confirmPassword string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	displayName = strings.TrimSpace(displayName)
	if email == "" || displayName == "" || password == "" {
		return nil, fmt.Errorf("%w: email, display name, and password are required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email address is not valid", domain.ErrInvalidInput)
	}
	if password != confirmPassword {
		return nil, fmt.Errorf("%w: passwords do not match", domain.ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.isBootstrapAdmin(email) {
		if err := s.users.AddRole(ctx, user.ID, domain.RoleAdministrator); err != nil {
			return nil, fmt.Errorf("grant administrator: %w", err)
		}
		slog.Info("administrator registered", "email", email)
	}

	return user, nil
}

// Login verifies credentials and returns a signed JWT token string.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrUnauthorized
		}
		return "", fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", domain.ErrUnauthorized
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return "", fmt.Errorf("generate jwt: %w", err)
	}
	return token, nil
}

// ValidateToken parses and validates a JWT token string and returns its
// name claim (the email the account was registered with).
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", domain.ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", domain.ErrUnauthorized
	}
	return sub, nil
}

// ResolvePrincipal looks up the account behind a name claim and loads its
// current roles. Nothing is cached: a deleted account or a revoked role
// takes effect on the next request.
func (s *AuthService) ResolvePrincipal(ctx context.Context, email string) (*domain.Principal, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	roles, err := s.users.RolesFor(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get roles: %w", err)
	}

	return &domain.Principal{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Roles:       roles,
	}, nil
}

func (s *AuthService) isBootstrapAdmin(email string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admins[normalizeEmail(email)]
}

func (s *AuthService) generateJWT(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":          user.Email,
		"display_name": user.DisplayName,
		"iat":          now.Unix(),
		"exp":          now.Add(TokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
