package core

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mangahub/internal/repository"
	"mangahub/pkg/models"
)

// AuthService handles identity: registration, login, token validation
// and profile management.
type AuthService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.UserProfile, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	ValidateToken(tokenString string) (*models.TokenClaims, error)
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*models.UserProfile, error)
	ChangePassword(ctx context.Context, userID string, req *models.ChangePasswordRequest) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

type jwtClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	users      repository.UserRepository
	jwtSecret  []byte
	issuer     string
	expiration time.Duration
}

// NewAuthService creates the identity service.
func NewAuthService(users repository.UserRepository, jwtSecret, issuer string, expiration time.Duration) AuthService {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &authService{
		users:      users,
		jwtSecret:  []byte(jwtSecret),
		issuer:     issuer,
		expiration: expiration,
	}
}

func (s *authService) Register(ctx context.Context, req *models.RegisterRequest) (*models.UserProfile, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := models.ValidateRegisterRequest(req); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError("failed to hash password", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         models.UserRoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	profile := user.Profile()
	return &profile, nil
}

// Login accepts a username or an email. Lookup failure and password
// mismatch produce the same error so login probing reveals nothing.
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	login := strings.TrimSpace(req.Login)
	if login == "" || req.Password == "" {
		return nil, models.NewValidationError("login and password are required")
	}

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, models.NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, models.NewUnauthorizedError("invalid credentials")
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, models.NewInternalError("failed to sign token", err)
	}

	return &models.LoginResponse{
		Token:     token,
		User:      user.Profile(),
		ExpiresIn: int(s.expiration.Seconds()),
	}, nil
}

func (s *authService) generateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// ValidateToken verifies signature, expiry and signing method.
func (s *authService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, models.ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("invalid or expired token")
	}
	return &models.TokenClaims{
		UserID:   claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
		Role:     claims.Role,
	}, nil
}

func (s *authService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

func (s *authService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*models.UserProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		check := &models.RegisterRequest{Username: username, Email: user.Email, Password: "placeholder"}
		if err := models.ValidateRegisterRequest(check); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Username = username
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		check := &models.RegisterRequest{Username: user.Username, Email: email, Password: "placeholder"}
		if err := models.ValidateRegisterRequest(check); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Email = email
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID string, req *models.ChangePasswordRequest) error {
	if len(req.NewPassword) < 8 {
		return models.NewValidationError("password must be at least 8 characters")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return models.NewUnauthorizedError("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError("failed to hash password", err)
	}
	user.PasswordHash = string(hash)
	return s.users.Update(ctx, user)
}
