// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, object storage,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mwalcott/taskline/internal/domain"
	"github.com/mwalcott/taskline/internal/repository"
	"github.com/mwalcott/taskline/internal/token"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// Cost 12 provides good security (~250ms on modern hardware) while being
	// fast enough for login flows.
	//
	// SECURITY NOTE: This should NOT be configurable at runtime to prevent
	// accidental weakening. If you need to change it, do so here and redeploy.
	BcryptCost = 12

	// MinPasswordLength is the minimum password length.
	// NIST SP 800-63B recommends 8+ characters minimum.
	MinPasswordLength = 8

	// MaxPasswordLength prevents DoS via bcrypt on very long passwords.
	// bcrypt has a 72-byte limit anyway, but we cap earlier for clarity.
	MaxPasswordLength = 72
)

// UserService defines the interface for user-related operations.
type UserService interface {
	// Register creates a new user account and logs it in.
	// Returns domain.ECONFLICT if email already exists.
	// Returns domain.EINVALID for validation errors.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.LoginResult, error)

	// Login authenticates a user and issues a signed session token.
	// Returns domain.EUNAUTHORIZED for invalid credentials, with a message
	// that does not distinguish unknown email from wrong password.
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)

	// GetByID retrieves a user by their ID.
	// Returns domain.ENOTFOUND if user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// UpdateProfile updates a user's profile information.
	// Returns domain.ENOTFOUND if user does not exist.
	UpdateProfile(ctx context.Context, params domain.ProfileUpdateParams) error

	// ChangePassword changes a user's password.
	// Validates the current password before allowing the change.
	// Returns domain.EUNAUTHORIZED if current password is wrong.
	ChangePassword(ctx context.Context, params domain.PasswordChangeParams) error
}

// userService is the concrete implementation of UserService.
type userService struct {
	queries *repository.Queries
	codec   token.Codec
	logger  *slog.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(queries *repository.Queries, codec token.Codec, logger *slog.Logger) UserService {
	return &userService{
		queries: queries,
		codec:   codec,
		logger:  logger,
	}
}

// Register creates a new user account with the provided parameters.
//
// Security considerations:
// - Password is hashed with bcrypt cost 12
// - Timing attacks are mitigated by hashing even on duplicate email
// - The raw password is never logged or stored
//
// A successful registration also logs the user in: the result carries a
// signed session token ready for the cookie.
func (s *userService) Register(ctx context.Context, params domain.RegisterParams) (*domain.LoginResult, error) {
	const op = "UserService.Register"

	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Name = strings.TrimSpace(params.Name)

	if err := validateEmail(params.Email); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Invalid email address")
	}
	if params.Name == "" {
		return nil, domain.Invalid(op, "Name is required")
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Invalid password")
	}

	// Check if email already exists
	_, err := s.queries.GetUserByEmail(ctx, params.Email)
	if err == nil {
		// User exists - hash anyway so the duplicate path costs the same
		_, _ = bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
		return nil, domain.Conflict(op, "Email already registered")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "Failed to check email availability")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	repoUser, err := s.queries.CreateUser(ctx, repository.CreateUserParams{
		Email:        params.Email,
		PasswordHash: string(passwordHash),
		Name:         params.Name,
	})
	if err != nil {
		// Unique constraint violation means we lost a registration race
		if repository.IsUniqueViolation(err) {
			return nil, domain.Conflict(op, "Email already registered")
		}
		return nil, domain.Internal(err, op, "Failed to create user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	signed, err := s.codec.Issue(token.Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Name:   user.Name,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to issue session token")
	}

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)

	return &domain.LoginResult{
		User:  user,
		Token: signed,
	}, nil
}

// Login authenticates a user and issues a signed session token.
//
// Security considerations:
//   - Constant-time password comparison via bcrypt
//   - Generic error message prevents email enumeration
//   - The unknown-email path runs a dummy bcrypt comparison so both failure
//     modes take roughly the same time
//   - The token is stateless; nothing is written to the database
func (s *userService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	const op = "UserService.Login"

	email = strings.ToLower(strings.TrimSpace(email))

	repoUser, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Dummy hash keeps the comparison cost on the unknown-email path
			dummyHash := "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW" // bcrypt hash of "dummy"
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.Unauthorized(op, "Invalid email or password")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	err = bcrypt.CompareHashAndPassword([]byte(repoUser.PasswordHash), []byte(password))
	if err != nil {
		// Same message as user not found
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	signed, err := s.codec.Issue(token.Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Name:   user.Name,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to issue session token")
	}

	s.logger.Info("user logged in", "user_id", user.ID, "email", user.Email)

	return &domain.LoginResult{
		User:  user,
		Token: signed,
	}, nil
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "UserService.GetByID"

	repoUser, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	return user, nil
}

// UpdateProfile updates a user's profile information.
func (s *userService) UpdateProfile(ctx context.Context, params domain.ProfileUpdateParams) error {
	const op = "UserService.UpdateProfile"

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return domain.Invalid(op, "Name is required")
	}

	_, err := s.queries.UpdateUserName(ctx, params.UserID, params.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "user", params.UserID.String())
		}
		return domain.Internal(err, op, "Failed to update profile")
	}

	s.logger.Info("user profile updated", "user_id", params.UserID)

	return nil
}

// ChangePassword changes a user's password.
//
// The current password must be verified first so a hijacked session cannot
// silently take over the account.
func (s *userService) ChangePassword(ctx context.Context, params domain.PasswordChangeParams) error {
	const op = "UserService.ChangePassword"

	if err := validatePassword(params.NewPassword); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "Invalid new password")
	}

	repoUser, err := s.queries.GetUserByID(ctx, params.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "user", params.UserID.String())
		}
		return domain.Internal(err, op, "Failed to retrieve user")
	}

	err = bcrypt.CompareHashAndPassword([]byte(repoUser.PasswordHash), []byte(params.CurrentPassword))
	if err != nil {
		return domain.Unauthorized(op, "Current password is incorrect")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(params.NewPassword), BcryptCost)
	if err != nil {
		return domain.Internal(err, op, "Failed to hash new password")
	}

	if err := s.queries.UpdateUserPassword(ctx, params.UserID, string(newHash)); err != nil {
		return domain.Internal(err, op, "Failed to update password")
	}

	s.logger.Info("user password changed", "user_id", params.UserID)

	return nil
}

// repoUserToDomain converts a repository.User to domain.User.
func repoUserToDomain(u repository.User) *domain.User {
	return &domain.User{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// validateEmail validates an email address format.
//
// Checks:
// - Exactly one @, not at either end
// - Domain part contains a dot
// - Length limit (RFC 5321: 254 chars max)
func validateEmail(email string) error {
	if email == "" {
		return domain.Invalid("", "Email is required")
	}
	if len(email) > 254 {
		return domain.Invalid("", "Email must be 254 characters or less")
	}

	at := strings.Count(email, "@")
	if at != 1 {
		return domain.Invalid("", "Email must contain exactly one @ symbol")
	}
	idx := strings.Index(email, "@")
	if idx == 0 {
		return domain.Invalid("", "Email cannot start with @")
	}
	if idx == len(email)-1 {
		return domain.Invalid("", "Email cannot end with @")
	}
	if !strings.Contains(email[idx+1:], ".") {
		return domain.Invalid("", "Email domain must contain a dot")
	}
	if strings.Contains(email, "..") {
		return domain.Invalid("", "Email cannot contain consecutive dots")
	}

	return nil
}

// commonPasswords are rejected outright even when they meet the character
// rules. The list is small; it only needs to catch the obvious ones.
var commonPasswords = map[string]bool{
	"password1": true,
	"qwerty123": true,
	"letmein1":  true,
	"welcome1":  true,
	"admin123":  true,
}

// validatePassword validates password strength requirements.
//
// Rules:
// - Minimum length: 8 characters (NIST SP 800-63B)
// - Maximum length: 72 characters (bcrypt limit)
// - At least one letter and one number
// - Not on the common-password list
func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.Invalid("", "Password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return domain.Invalid("", "Password must be 72 characters or less")
	}

	var hasLetter, hasNumber bool
	for _, c := range password {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			hasLetter = true
		case c >= '0' && c <= '9':
			hasNumber = true
		}
	}
	if !hasLetter {
		return domain.Invalid("", "Password must contain at least one letter")
	}
	if !hasNumber {
		return domain.Invalid("", "Password must contain at least one number")
	}

	if commonPasswords[strings.ToLower(password)] {
		return domain.Invalid("", "Password is too common")
	}

	return nil
}
