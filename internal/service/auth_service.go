package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/afrocoder16/mkc-songbook/internal/apperror"
	"github.com/afrocoder16/mkc-songbook/internal/auth"
	"github.com/afrocoder16/mkc-songbook/internal/model"
	"github.com/afrocoder16/mkc-songbook/internal/otp"
	"github.com/afrocoder16/mkc-songbook/internal/repository"
)

const bcryptCost = 10

// AuthService orchestrates the signup, verification, login and password
// reset sequences. It holds no flow state of its own: whether a step is
// allowed is derived from the OTP ledger, never from anything the client
// declares.
type AuthService interface {
	Signup(ctx context.Context, username, password, name, email string) error
	VerifySignup(ctx context.Context, email string, code int) error
	CreatePassword(ctx context.Context, username, password, name, email string) (*model.User, error)
	Login(ctx context.Context, username, password string) (accessToken, refreshToken string, user *model.User, err error)
	Refresh(ctx context.Context, refreshToken string) (accessToken string, err error)
	Logout(ctx context.Context, refreshToken string) error
	ForgotPassword(ctx context.Context, email string) error
	VerifyReset(ctx context.Context, email string, code int) error
	ResetPassword(ctx context.Context, email, newPassword string) error
}

type authService struct {
	userRepo   repository.UserRepository
	ledger     *otp.Ledger
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
}

// NewAuthService creates a new authentication service.
func NewAuthService(userRepo repository.UserRepository, ledger *otp.Ledger, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) AuthService {
	return &authService{
		userRepo:   userRepo,
		ledger:     ledger,
		jwtService: jwtService,
		tokenStore: tokenStore,
	}
}

// Signup validates the registration fields and issues a verification code to
// the email. No user record is created yet; that happens in CreatePassword
// after the code has been verified.
func (s *authService) Signup(ctx context.Context, username, password, name, email string) error {
	if err := validateSignupFields(username, password, name, email); err != nil {
		return err
	}

	if err := s.checkAvailability(ctx, username, email); err != nil {
		return err
	}

	if _, err := s.ledger.Issue(ctx, email); err != nil {
		return apperror.Unexpected(fmt.Errorf("issue signup code: %w", err))
	}
	return nil
}

// VerifySignup consumes the signup code and records the verified state the
// follow-up CreatePassword call depends on.
func (s *authService) VerifySignup(ctx context.Context, email string, code int) error {
	return s.verify(ctx, otp.PurposeSignup, email, code)
}

// CreatePassword finalizes the registration: it requires a verified signup
// marker for the email, hashes the password and persists the user. The
// marker is consumed only once the input would actually produce a user, so a
// rejected form never costs the caller their verification.
func (s *authService) CreatePassword(ctx context.Context, username, password, name, email string) (*model.User, error) {
	if err := validateSignupFields(username, password, name, email); err != nil {
		return nil, err
	}
	if err := s.checkAvailability(ctx, username, email); err != nil {
		return nil, err
	}

	verified, err := s.ledger.ConsumeVerified(ctx, otp.PurposeSignup, email)
	if err != nil {
		return nil, apperror.Unexpected(fmt.Errorf("check signup verification: %w", err))
	}
	if !verified {
		return nil, apperror.Unauthorized("Please verify your email before creating a password.")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, apperror.Unexpected(fmt.Errorf("hash password: %w", err))
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		Name:         name,
		PasswordHash: string(hashed),
		Role:         model.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperror.Unexpected(fmt.Errorf("create user: %w", err))
	}
	return user, nil
}

// Login verifies the credentials and issues the session tokens. Unknown
// username and wrong password yield the same generic failure so callers
// cannot probe which accounts exist.
func (s *authService) Login(ctx context.Context, username, password string) (string, string, *model.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", nil, apperror.Unauthorized("Incorrect username or password.")
		}
		return "", "", nil, apperror.Unexpected(fmt.Errorf("find user: %w", err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", nil, apperror.Unauthorized("Incorrect username or password.")
	}

	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", "", nil, apperror.Unexpected(fmt.Errorf("generate access token: %w", err))
	}

	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", "", nil, apperror.Unexpected(fmt.Errorf("generate refresh token: %w", err))
	}

	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, user.ID, user.Email, auth.RefreshTokenExpiry); err != nil {
		return "", "", nil, apperror.Unexpected(fmt.Errorf("store refresh token: %w", err))
	}

	return accessToken, refreshToken, user, nil
}

// Refresh validates a refresh token and returns a new access token.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwtService.ValidateToken(refreshToken)
	if err != nil {
		return "", apperror.Unauthorized("Invalid or expired refresh token.")
	}

	tokenID, err := s.jwtService.ExtractTokenID(refreshToken)
	if err != nil {
		return "", apperror.Unauthorized("Invalid or expired refresh token.")
	}

	storedUserID, storedEmail, err := s.tokenStore.GetRefreshToken(ctx, tokenID)
	if err != nil || storedUserID != claims.UserID || storedEmail != claims.Email {
		return "", apperror.Unauthorized("Invalid or expired refresh token.")
	}

	accessToken, err := s.jwtService.GenerateAccessToken(claims.UserID, claims.Email, claims.Role)
	if err != nil {
		return "", apperror.Unexpected(fmt.Errorf("generate access token: %w", err))
	}
	return accessToken, nil
}

// Logout invalidates a refresh token.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	tokenID, err := s.jwtService.ExtractTokenID(refreshToken)
	if err != nil {
		return apperror.Unauthorized("Invalid or expired refresh token.")
	}
	if err := s.tokenStore.DeleteRefreshToken(ctx, tokenID); err != nil {
		return apperror.Unexpected(fmt.Errorf("delete refresh token: %w", err))
	}
	return nil
}

// ForgotPassword starts the reset flow. It requires a registered email; the
// reset code goes to the same ledger the signup flow uses, under its own
// purpose.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return apperror.FieldFaults(map[string]string{"emailMessage": "Email is required."})
	}

	if _, err := s.userRepo.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.FieldFaults(map[string]string{"emailMessage": "No account found with this email."})
		}
		return apperror.Unexpected(fmt.Errorf("find user: %w", err))
	}

	if _, err := s.ledger.Issue(ctx, email); err != nil {
		return apperror.Unexpected(fmt.Errorf("issue reset code: %w", err))
	}
	return nil
}

// VerifyReset consumes the reset code and records the verified state the
// follow-up ResetPassword call depends on.
func (s *authService) VerifyReset(ctx context.Context, email string, code int) error {
	return s.verify(ctx, otp.PurposeReset, email, code)
}

// ResetPassword overwrites the stored password hash. It refuses to proceed
// without a verified reset marker for the email, and leaves the marker in
// place when the submitted password is invalid so a corrected retry does not
// need a fresh code.
func (s *authService) ResetPassword(ctx context.Context, email, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return apperror.FieldFaults(map[string]string{"passwordMessage": "Password is required."})
	}

	verified, err := s.ledger.ConsumeVerified(ctx, otp.PurposeReset, email)
	if err != nil {
		return apperror.Unexpected(fmt.Errorf("check reset verification: %w", err))
	}
	if !verified {
		return apperror.Unauthorized("Please verify your email before resetting your password.")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return apperror.Unexpected(fmt.Errorf("hash password: %w", err))
	}
	if err := s.userRepo.UpdatePasswordByEmail(ctx, email, string(hashed)); err != nil {
		return apperror.Unexpected(fmt.Errorf("update password: %w", err))
	}
	return nil
}

func (s *authService) verify(ctx context.Context, purpose otp.Purpose, email string, code int) error {
	if err := s.ledger.Verify(ctx, email, code); err != nil {
		if errors.Is(err, otp.ErrCodeInvalid) {
			return apperror.ClientFault("Invalid or expired verification code.")
		}
		return apperror.Unexpected(fmt.Errorf("verify code: %w", err))
	}
	if err := s.ledger.MarkVerified(ctx, purpose, email); err != nil {
		return apperror.Unexpected(fmt.Errorf("mark verified: %w", err))
	}
	return nil
}

// checkAvailability rejects usernames and emails already held by a user.
func (s *authService) checkAvailability(ctx context.Context, username, email string) error {
	if _, err := s.userRepo.FindByUsername(ctx, username); err == nil {
		return apperror.FieldFaults(map[string]string{"usernameMessage": "Username is already taken."})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.Unexpected(fmt.Errorf("check username: %w", err))
	}

	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return apperror.FieldFaults(map[string]string{"emailMessage": "An account with this email already exists."})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.Unexpected(fmt.Errorf("check email: %w", err))
	}
	return nil
}

func validateSignupFields(username, password, name, email string) error {
	fields := map[string]string{}
	if trimmed := strings.TrimSpace(username); trimmed == "" {
		fields["usernameMessage"] = "Username is required."
	} else if len(trimmed) < model.MinUsernameLength {
		fields["usernameMessage"] = fmt.Sprintf("Username must be at least %d characters long.", model.MinUsernameLength)
	}
	if strings.TrimSpace(password) == "" {
		fields["passwordMessage"] = "Password is required."
	}
	if strings.TrimSpace(name) == "" {
		fields["nameMessage"] = "Name is required."
	}
	if strings.TrimSpace(email) == "" {
		fields["emailMessage"] = "Email is required."
	}
	if len(fields) > 0 {
		return apperror.FieldFaults(fields)
	}
	return nil
}
