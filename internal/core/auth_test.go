package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangahub/internal/repository"
	"mangahub/pkg/models"
)

func newTestAuth(t *testing.T) AuthService {
	t.Helper()
	db := openTestDB(t)
	return NewAuthService(repository.NewUserRepository(db), "test-secret", "mangahub-test", time.Hour)
}

func register(t *testing.T, auth AuthService, username string) *models.UserProfile {
	t.Helper()
	profile, err := auth.Register(context.Background(), &models.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	return profile
}

func TestRegisterAndLogin(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	profile := register(t, auth, "alice")
	assert.NotEmpty(t, profile.ID)
	assert.Equal(t, "alice", profile.Username)

	resp, err := auth.Login(ctx, &models.LoginRequest{Login: "alice", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, profile.ID, resp.User.ID)
	assert.Equal(t, 3600, resp.ExpiresIn)

	// Email works as login too.
	byEmail, err := auth.Login(ctx, &models.LoginRequest{Login: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, profile.ID, byEmail.User.ID)
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	cases := []models.RegisterRequest{
		{Username: "ab", Email: "a@b.com", Password: "password123"},        // username too short
		{Username: "has space", Email: "a@b.com", Password: "password123"}, // invalid chars
		{Username: "alice", Email: "not-an-email", Password: "password123"},
		{Username: "alice", Email: "a@b.com", Password: "short"},
	}
	for _, req := range cases {
		_, err := auth.Register(ctx, &req)
		require.Error(t, err)
		assert.Equal(t, models.ErrCodeValidation, models.AsAppError(err).Code)
	}
}

func TestRegisterDuplicateUsernameConflicts(t *testing.T) {
	auth := newTestAuth(t)
	register(t, auth, "alice")

	_, err := auth.Register(context.Background(), &models.RegisterRequest{
		Username: "alice",
		Email:    "other@example.com",
		Password: "password123",
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeConflict, models.AsAppError(err).Code)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	auth := newTestAuth(t)
	register(t, auth, "alice")
	ctx := context.Background()

	_, wrongPassword := auth.Login(ctx, &models.LoginRequest{Login: "alice", Password: "nope-nope"})
	_, unknownUser := auth.Login(ctx, &models.LoginRequest{Login: "mallory", Password: "nope-nope"})

	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.Equal(t, models.AsAppError(wrongPassword).Message, models.AsAppError(unknownUser).Message,
		"lookup failure and bad password must be indistinguishable")
}

func TestValidateToken(t *testing.T) {
	auth := newTestAuth(t)
	profile := register(t, auth, "alice")

	resp, err := auth.Login(context.Background(), &models.LoginRequest{Login: "alice", Password: "password123"})
	require.NoError(t, err)

	claims, err := auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user", claims.Role)

	_, err = auth.ValidateToken("not-a-token")
	assert.Error(t, err)

	// Token signed with another secret must not validate.
	other := NewAuthService(nil, "other-secret", "mangahub-test", time.Hour)
	_, err = other.ValidateToken(resp.Token)
	assert.Error(t, err)
}

func TestChangePassword(t *testing.T) {
	auth := newTestAuth(t)
	profile := register(t, auth, "alice")
	ctx := context.Background()

	err := auth.ChangePassword(ctx, profile.ID, &models.ChangePasswordRequest{
		CurrentPassword: "wrong-password",
		NewPassword:     "newpassword1",
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeUnauthorized, models.AsAppError(err).Code)

	require.NoError(t, auth.ChangePassword(ctx, profile.ID, &models.ChangePasswordRequest{
		CurrentPassword: "password123",
		NewPassword:     "newpassword1",
	}))

	_, err = auth.Login(ctx, &models.LoginRequest{Login: "alice", Password: "password123"})
	assert.Error(t, err, "old password must stop working")
	_, err = auth.Login(ctx, &models.LoginRequest{Login: "alice", Password: "newpassword1"})
	assert.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	auth := newTestAuth(t)
	profile := register(t, auth, "alice")
	ctx := context.Background()

	newName := "alice_2"
	updated, err := auth.UpdateProfile(ctx, profile.ID, &models.UpdateProfileRequest{Username: &newName})
	require.NoError(t, err)
	assert.Equal(t, "alice_2", updated.Username)

	bad := "x"
	_, err = auth.UpdateProfile(ctx, profile.ID, &models.UpdateProfileRequest{Username: &bad})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeValidation, models.AsAppError(err).Code)
}
