package service

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/afrocoder16/mkc-songbook/internal/apperror"
	"github.com/afrocoder16/mkc-songbook/internal/auth"
	"github.com/afrocoder16/mkc-songbook/internal/model"
	"github.com/afrocoder16/mkc-songbook/internal/otp"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	args := m.Called(ctx, email, passwordHash)
	return args.Error(0)
}

func (m *MockUserRepository) EnsureAdmin(ctx context.Context, admin *model.User) error {
	args := m.Called(ctx, admin)
	return args.Error(0)
}

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) StoreRefreshToken(ctx context.Context, tokenID string, userID uint, email string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, userID, email, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) GetRefreshToken(ctx context.Context, tokenID string) (uint, string, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(uint), args.String(1), args.Error(2)
}

func (m *MockTokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

// fakeOTPStore is an in-memory otp.Store so flow tests run without Redis.
type fakeOTPStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeOTPStore() *fakeOTPStore {
	return &fakeOTPStore{data: map[string]string{}}
}

func (s *fakeOTPStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *fakeOTPStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, found := s.data[key]
	return value, found, nil
}

func (s *fakeOTPStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// issuedCode reads back the live code for an email.
func (s *fakeOTPStore) issuedCode(t *testing.T, email string) int {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, found := s.data["otp:code:"+email]
	require.True(t, found, "no code issued for %s", email)
	code, err := strconv.Atoi(raw)
	require.NoError(t, err)
	return code
}

// silentSender drops mail so flow tests never touch the network.
type silentSender struct{}

func (silentSender) Send(context.Context, string, string, string) error { return nil }

func newTestAuthService(userRepo *MockUserRepository, tokenStore *MockTokenStore) (AuthService, *fakeOTPStore) {
	store := newFakeOTPStore()
	ledger := otp.NewLedger(store, silentSender{})
	jwtService := auth.NewJWTService("test-secret")
	return NewAuthService(userRepo, ledger, jwtService, tokenStore), store
}

func asAppError(t *testing.T, err error) *apperror.Error {
	t.Helper()
	require.Error(t, err)
	appErr := apperror.From(err)
	require.NotNil(t, appErr)
	return appErr
}

func TestAuthService_Signup(t *testing.T) {
	tests := []struct {
		name           string
		username       string
		password       string
		displayName    string
		email          string
		setupMock      func(*MockUserRepository)
		expectedStatus int
		expectedField  string
		expectedMsg    string
	}{
		{
			name:        "successful signup issues a code",
			username:    "choir-singer",
			password:    "secret-password",
			displayName: "Choir Singer",
			email:       "singer@example.com",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByUsername", mock.Anything, "choir-singer").Return(nil, gorm.ErrRecordNotFound)
				m.On("FindByEmail", mock.Anything, "singer@example.com").Return(nil, gorm.ErrRecordNotFound)
			},
		},
		{
			name:           "username shorter than the minimum",
			username:       "short",
			password:       "secret-password",
			displayName:    "Choir Singer",
			email:          "singer@example.com",
			setupMock:      func(m *MockUserRepository) {},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "usernameMessage",
			expectedMsg:    "Username must be at least 8 characters long.",
		},
		{
			name:           "missing email",
			username:       "choir-singer",
			password:       "secret-password",
			displayName:    "Choir Singer",
			email:          "",
			setupMock:      func(m *MockUserRepository) {},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "emailMessage",
			expectedMsg:    "Email is required.",
		},
		{
			name:        "username already taken",
			username:    "choir-singer",
			password:    "secret-password",
			displayName: "Choir Singer",
			email:       "singer@example.com",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByUsername", mock.Anything, "choir-singer").Return(&model.User{Username: "choir-singer"}, nil)
			},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "usernameMessage",
			expectedMsg:    "Username is already taken.",
		},
		{
			name:        "email already registered",
			username:    "choir-singer",
			password:    "secret-password",
			displayName: "Choir Singer",
			email:       "taken@example.com",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByUsername", mock.Anything, "choir-singer").Return(nil, gorm.ErrRecordNotFound)
				m.On("FindByEmail", mock.Anything, "taken@example.com").Return(&model.User{Email: "taken@example.com"}, nil)
			},
			expectedStatus: http.StatusBadRequest,
			expectedField:  "emailMessage",
			expectedMsg:    "An account with this email already exists.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			tt.setupMock(mockRepo)

			svc, store := newTestAuthService(mockRepo, new(MockTokenStore))
			err := svc.Signup(context.Background(), tt.username, tt.password, tt.displayName, tt.email)

			if tt.expectedStatus != 0 {
				appErr := asAppError(t, err)
				assert.Equal(t, tt.expectedStatus, appErr.StatusCode)
				assert.Equal(t, tt.expectedMsg, appErr.Fields[tt.expectedField])
			} else {
				assert.NoError(t, err)
				code := store.issuedCode(t, tt.email)
				assert.GreaterOrEqual(t, code, 100000)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestAuthService_CreatePassword_RequiresVerification(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("FindByUsername", mock.Anything, "choir-singer").Return(nil, gorm.ErrRecordNotFound)
	mockRepo.On("FindByEmail", mock.Anything, "singer@example.com").Return(nil, gorm.ErrRecordNotFound)

	svc, _ := newTestAuthService(mockRepo, new(MockTokenStore))

	user, err := svc.CreatePassword(context.Background(), "choir-singer", "secret-password", "Choir Singer", "singer@example.com")

	assert.Nil(t, user)
	appErr := asAppError(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode)
	assert.Equal(t, "Please verify your email before creating a password.", appErr.Message)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_CreatePassword_FailedAttemptKeepsVerification(t *testing.T) {
	const email = "singer@example.com"

	mockRepo := new(MockUserRepository)
	// Available at signup, taken by someone else at the first CreatePassword,
	// so the caller has to retry with a different username.
	mockRepo.On("FindByUsername", mock.Anything, "choir-singer").Return(nil, gorm.ErrRecordNotFound).Once()
	mockRepo.On("FindByUsername", mock.Anything, "choir-singer").Return(&model.User{Username: "choir-singer"}, nil).Once()
	mockRepo.On("FindByUsername", mock.Anything, "second-choice").Return(nil, gorm.ErrRecordNotFound)
	mockRepo.On("FindByEmail", mock.Anything, email).Return(nil, gorm.ErrRecordNotFound)
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)

	svc, store := newTestAuthService(mockRepo, new(MockTokenStore))
	ctx := context.Background()

	require.NoError(t, svc.Signup(ctx, "choir-singer", "secret-password", "Choir Singer", email))
	code := store.issuedCode(t, email)
	require.NoError(t, svc.VerifySignup(ctx, email, code))

	user, err := svc.CreatePassword(ctx, "choir-singer", "secret-password", "Choir Singer", email)
	assert.Nil(t, user)
	appErr := asAppError(t, err)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	assert.Equal(t, "Username is already taken.", appErr.Fields["usernameMessage"])

	// The rejected attempt must not burn the verification.
	user, err = svc.CreatePassword(ctx, "second-choice", "secret-password", "Choir Singer", email)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "second-choice", user.Username)

	mockRepo.AssertExpectations(t)
}

func TestAuthService_SignupFlow(t *testing.T) {
	const email = "singer@example.com"

	mockRepo := new(MockUserRepository)
	mockRepo.On("FindByUsername", mock.Anything, "choir-singer").Return(nil, gorm.ErrRecordNotFound)
	mockRepo.On("FindByEmail", mock.Anything, email).Return(nil, gorm.ErrRecordNotFound)
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)

	svc, store := newTestAuthService(mockRepo, new(MockTokenStore))
	ctx := context.Background()

	require.NoError(t, svc.Signup(ctx, "choir-singer", "secret-password", "Choir Singer", email))
	code := store.issuedCode(t, email)

	// A wrong code must not unlock the flow.
	err := svc.VerifySignup(ctx, email, code+1)
	appErr := asAppError(t, err)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	assert.Equal(t, "Invalid or expired verification code.", appErr.Message)

	require.NoError(t, svc.VerifySignup(ctx, email, code))

	user, err := svc.CreatePassword(ctx, "choir-singer", "secret-password", "Choir Singer", email)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "choir-singer", user.Username)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "secret-password", user.PasswordHash)

	// The verified marker is single use.
	_, err = svc.CreatePassword(ctx, "choir-singer", "secret-password", "Choir Singer", email)
	appErr = asAppError(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode)

	mockRepo.AssertExpectations(t)
}

func TestAuthService_Login(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("secret-password"), 10)
	require.NoError(t, err)

	tests := []struct {
		name      string
		username  string
		password  string
		setupMock func(*MockUserRepository, *MockTokenStore)
		wantErr   bool
	}{
		{
			name:     "successful login",
			username: "choir-singer",
			password: "secret-password",
			setupMock: func(mRepo *MockUserRepository, mToken *MockTokenStore) {
				mRepo.On("FindByUsername", mock.Anything, "choir-singer").Return(&model.User{
					ID:           7,
					Username:     "choir-singer",
					Email:        "singer@example.com",
					PasswordHash: string(hashed),
					Role:         model.RoleUser,
				}, nil)
				mToken.On("StoreRefreshToken", mock.Anything, mock.Anything, uint(7), "singer@example.com", mock.Anything).Return(nil)
			},
		},
		{
			name:     "unknown username",
			username: "nobody-here",
			password: "secret-password",
			setupMock: func(mRepo *MockUserRepository, mToken *MockTokenStore) {
				mRepo.On("FindByUsername", mock.Anything, "nobody-here").Return(nil, gorm.ErrRecordNotFound)
			},
			wantErr: true,
		},
		{
			name:     "wrong password",
			username: "choir-singer",
			password: "not-the-password",
			setupMock: func(mRepo *MockUserRepository, mToken *MockTokenStore) {
				mRepo.On("FindByUsername", mock.Anything, "choir-singer").Return(&model.User{
					ID:           7,
					Username:     "choir-singer",
					Email:        "singer@example.com",
					PasswordHash: string(hashed),
				}, nil)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			mockTokenStore := new(MockTokenStore)
			tt.setupMock(mockRepo, mockTokenStore)

			svc, _ := newTestAuthService(mockRepo, mockTokenStore)
			accessToken, refreshToken, user, err := svc.Login(context.Background(), tt.username, tt.password)

			if tt.wantErr {
				// Unknown username and wrong password must be
				// indistinguishable to the caller.
				appErr := asAppError(t, err)
				assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode)
				assert.Equal(t, "Incorrect username or password.", appErr.Message)
				assert.Empty(t, accessToken)
				assert.Empty(t, refreshToken)
				assert.Nil(t, user)
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, accessToken)
				assert.NotEmpty(t, refreshToken)
				require.NotNil(t, user)
				assert.Equal(t, tt.username, user.Username)
			}

			mockRepo.AssertExpectations(t)
			mockTokenStore.AssertExpectations(t)
		})
	}
}

func TestAuthService_RefreshAndLogout(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("secret-password"), 10)
	require.NoError(t, err)

	mockRepo := new(MockUserRepository)
	mockRepo.On("FindByUsername", mock.Anything, "choir-singer").Return(&model.User{
		ID:           7,
		Username:     "choir-singer",
		Email:        "singer@example.com",
		PasswordHash: string(hashed),
		Role:         model.RoleUser,
	}, nil)

	mockTokenStore := new(MockTokenStore)
	var storedTokenID string
	mockTokenStore.On("StoreRefreshToken", mock.Anything, mock.Anything, uint(7), "singer@example.com", mock.Anything).
		Run(func(args mock.Arguments) {
			storedTokenID = args.String(1)
		}).Return(nil)

	svc, _ := newTestAuthService(mockRepo, mockTokenStore)
	ctx := context.Background()

	_, refreshToken, _, err := svc.Login(ctx, "choir-singer", "secret-password")
	require.NoError(t, err)
	require.NotEmpty(t, storedTokenID)

	mockTokenStore.On("GetRefreshToken", mock.Anything, storedTokenID).Return(uint(7), "singer@example.com", nil)
	accessToken, err := svc.Refresh(ctx, refreshToken)
	assert.NoError(t, err)
	assert.NotEmpty(t, accessToken)

	// A token never stored cannot refresh.
	_, err = svc.Refresh(ctx, "not-a-token")
	appErr := asAppError(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode)

	mockTokenStore.On("DeleteRefreshToken", mock.Anything, storedTokenID).Return(nil)
	assert.NoError(t, svc.Logout(ctx, refreshToken))

	mockTokenStore.AssertExpectations(t)
}

func TestAuthService_ForgotPassword(t *testing.T) {
	tests := []struct {
		name        string
		email       string
		setupMock   func(*MockUserRepository)
		expectedMsg string
	}{
		{
			name:  "known email gets a code",
			email: "singer@example.com",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "singer@example.com").Return(&model.User{Email: "singer@example.com"}, nil)
			},
		},
		{
			name:  "unknown email",
			email: "ghost@example.com",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, gorm.ErrRecordNotFound)
			},
			expectedMsg: "No account found with this email.",
		},
		{
			name:        "blank email",
			email:       "",
			setupMock:   func(m *MockUserRepository) {},
			expectedMsg: "Email is required.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			tt.setupMock(mockRepo)

			svc, store := newTestAuthService(mockRepo, new(MockTokenStore))
			err := svc.ForgotPassword(context.Background(), tt.email)

			if tt.expectedMsg != "" {
				appErr := asAppError(t, err)
				assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
				assert.Equal(t, tt.expectedMsg, appErr.Fields["emailMessage"])
			} else {
				assert.NoError(t, err)
				store.issuedCode(t, tt.email)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestAuthService_ResetPasswordFlow(t *testing.T) {
	const email = "singer@example.com"

	mockRepo := new(MockUserRepository)
	mockRepo.On("FindByEmail", mock.Anything, email).Return(&model.User{Email: email}, nil)
	mockRepo.On("UpdatePasswordByEmail", mock.Anything, email, mock.AnythingOfType("string")).Return(nil)

	svc, store := newTestAuthService(mockRepo, new(MockTokenStore))
	ctx := context.Background()

	// Resetting without verification is refused.
	err := svc.ResetPassword(ctx, email, "new-password")
	appErr := asAppError(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode)
	assert.Equal(t, "Please verify your email before resetting your password.", appErr.Message)

	require.NoError(t, svc.ForgotPassword(ctx, email))
	code := store.issuedCode(t, email)
	require.NoError(t, svc.VerifyReset(ctx, email, code))

	// A blank password is rejected without burning the verification.
	err = svc.ResetPassword(ctx, email, "   ")
	appErr = asAppError(t, err)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	assert.Equal(t, "Password is required.", appErr.Fields["passwordMessage"])

	assert.NoError(t, svc.ResetPassword(ctx, email, "new-password"))

	// The reset marker is single use.
	err = svc.ResetPassword(ctx, email, "another-password")
	appErr = asAppError(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode)

	mockRepo.AssertExpectations(t)
}

func TestAuthService_VerifiedMarkersArePurposeScoped(t *testing.T) {
	const email = "singer@example.com"

	mockRepo := new(MockUserRepository)
	mockRepo.On("FindByUsername", mock.Anything, "choir-singer").Return(nil, gorm.ErrRecordNotFound)
	mockRepo.On("FindByEmail", mock.Anything, email).Return(nil, gorm.ErrRecordNotFound)

	svc, store := newTestAuthService(mockRepo, new(MockTokenStore))
	ctx := context.Background()

	require.NoError(t, svc.Signup(ctx, "choir-singer", "secret-password", "Choir Singer", email))
	code := store.issuedCode(t, email)
	require.NoError(t, svc.VerifySignup(ctx, email, code))

	// A signup verification must not unlock a password reset.
	err := svc.ResetPassword(ctx, email, "new-password")
	appErr := asAppError(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode)

	mockRepo.AssertExpectations(t)
}
