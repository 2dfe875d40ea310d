package application

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/breadjournal/server/internal/domain/entity"
	repo "github.com/breadjournal/server/internal/domain/repository"
	"github.com/breadjournal/server/pkg/helpers"
)

var (
	// ErrInvalidCredentials deliberately covers both unknown account and wrong
	// password so callers cannot enumerate registered names.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCode        = errors.New("invalid or expired code")
	ErrUserNotFound       = errors.New("user not found")
	ErrThrottled          = errors.New("please wait before requesting another code")
	ErrInvalidPurpose     = errors.New("invalid code purpose")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrMissingFields      = errors.New("username, email, and password are required")
)

// NotVerifiedError signals valid credentials on an unconfirmed account and
// carries the email so the caller can route into the verification step.
type NotVerifiedError struct {
	Email string
}

func (e *NotVerifiedError) Error() string { return "email not verified" }

const minPasswordLen = 6

// AuthService orchestrates signup, verification, login, and password reset
// over the user store, the code manager, and the token minter. Each call is
// an independent entry point; the store is the only cross-request state.
type AuthService struct {
	Users  repo.UserRepository
	Codes  *CodeManager
	JWT    *helpers.JWTManager
	Logger *logrus.Logger
}

func NewAuthService(users repo.UserRepository, codes *CodeManager, jwt *helpers.JWTManager, logger *logrus.Logger) *AuthService {
	return &AuthService{Users: users, Codes: codes, JWT: jwt, Logger: logger}
}

// UserProfile is the public projection returned to clients. It never carries
// the password hash.
type UserProfile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func profileOf(u *entity.User) *UserProfile {
	return &UserProfile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
	}
}

// AuthResult is a minted session plus the public user projection.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *UserProfile
}

func (s *AuthService) mint(u *entity.User) (*AuthResult, error) {
	token, exp, err := s.JWT.Generate(u.ID, u.Username, u.Email)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("token generation failed")
		}
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: exp, User: profileOf(u)}, nil
}

type SignupInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// Signup creates an unverified user, issues an email verification code, and
// hands the code email to the queue. No session token is minted; the caller
// receives only the pending email address.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) error {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return ErrMissingFields
	}
	if len(in.Password) < minPasswordLen {
		return ErrWeakPassword
	}

	// Pre-check so the caller learns which field collided. The unique
	// constraints remain the enforcement point for concurrent inserts.
	existing, err := s.Users.FindConflict(in.Username, in.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Username == in.Username {
			return ErrUsernameTaken
		}
		return ErrEmailTaken
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return err
	}

	display := in.DisplayName
	if display == "" {
		display = in.Username
	}
	u := &entity.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		DisplayName:  display,
	}
	if err := s.Users.Create(u); err != nil {
		switch {
		case errors.Is(err, repo.ErrDuplicateUsername):
			return ErrUsernameTaken
		case errors.Is(err, repo.ErrDuplicateEmail):
			return ErrEmailTaken
		}
		return err
	}

	vc, err := s.Codes.Issue(in.Email, entity.PurposeEmailVerification)
	if err != nil {
		return err
	}
	s.Codes.Dispatch(in.Email, vc.Code, entity.PurposeEmailVerification)

	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": u.ID, "username": u.Username}).Info("user signed up, pending verification")
	}
	return nil
}

// VerifyEmail consumes an email verification code, flips the user to
// verified, and mints the first session token.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*AuthResult, error) {
	ok, err := s.Codes.Verify(email, entity.PurposeEmailVerification, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCode
	}

	u, err := s.Users.SetVerified(email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		// A code can outlive its user under concurrent deletes; the code
		// family stays intact in that branch.
		return nil, ErrUserNotFound
	}

	if err := s.Codes.Discard(email, entity.PurposeEmailVerification); err != nil {
		return nil, err
	}
	return s.mint(u)
}

// Resend issues a fresh code for (email, purpose) unless the latest one is
// younger than the cooldown. The response never reveals whether the email
// belongs to an account.
func (s *AuthService) Resend(ctx context.Context, email string, purpose entity.Purpose) error {
	if !purpose.Valid() {
		return ErrInvalidPurpose
	}
	throttled, err := s.Codes.Throttled(email, purpose)
	if err != nil {
		return err
	}
	if throttled {
		return ErrThrottled
	}
	vc, err := s.Codes.Issue(email, purpose)
	if err != nil {
		return err
	}
	s.Codes.Dispatch(email, vc.Code, purpose)
	return nil
}

// Login authenticates by username or email. Unknown account and wrong
// password are indistinguishable; an unverified account surfaces as
// NotVerifiedError carrying the email.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*AuthResult, error) {
	u, err := s.Users.GetByUsernameOrEmail(usernameOrEmail)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if !helpers.CompareHashAndPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !u.Verified {
		return nil, &NotVerifiedError{Email: u.Email}
	}
	return s.mint(u)
}

// ForgotPassword issues a reset code only when the email belongs to a user,
// but always reports the same outcome so existence cannot be probed.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.Users.GetByEmail(email)
	if err != nil {
		return err
	}
	if u == nil {
		return nil
	}
	vc, err := s.Codes.Issue(email, entity.PurposePasswordReset)
	if err != nil {
		return err
	}
	s.Codes.Dispatch(email, vc.Code, entity.PurposePasswordReset)
	return nil
}

// ResetPassword consumes a reset code and overwrites the password hash.
// No session is minted; the caller logs in with the new password.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}
	ok, err := s.Codes.Verify(email, entity.PurposePasswordReset, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Users.UpdatePasswordByEmail(email, hash); err != nil {
		return err
	}
	if err := s.Codes.Discard(email, entity.PurposePasswordReset); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.WithField("email", email).Info("password reset completed")
	}
	return nil
}

// Profile resolves the public projection for an authenticated user id.
func (s *AuthService) Profile(userID string) (*UserProfile, error) {
	u, err := s.Users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return profileOf(u), nil
}
