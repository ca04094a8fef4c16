package service_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"shortly/internal/models"
	"shortly/internal/service"
	"shortly/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret-key"
	testTokenTTL = time.Hour
	testLimit    = 10
)

// setupAuthService создаёт сервис аутентификации с моковым репозиторием
func setupAuthService() (service.AuthService, *mocks.MockUserRepository) {
	userRepo := mocks.NewMockUserRepository()
	authService := service.NewAuthService(userRepo, zap.NewNop(), testSecret, testTokenTTL, testLimit)
	return authService, userRepo
}

func signUpInput(username, email string) *models.SignUpInput {
	return &models.SignUpInput{
		Username: username,
		Email:    email,
		Password: "password123",
	}
}

// TestAuthService_SignUp_Success проверяет регистрацию с немедленной выдачей токена
func TestAuthService_SignUp_Success(t *testing.T) {
	authService, userRepo := setupAuthService()
	ctx := context.Background()

	token, err := authService.SignUp(ctx, signUpInput("alice", "alice@example.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	// Токен сразу пригоден для аутентификации
	user, err := authService.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, testLimit, user.CreditLimit)
	assert.Equal(t, 0, user.Usage)

	// Пароль сохраняется как bcrypt-хэш, а не открытым текстом
	stored, err := userRepo.GetActiveByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", stored.Password)
}

// TestAuthService_SignUp_Duplicate проверяет конфликт по имени и по email
func TestAuthService_SignUp_Duplicate(t *testing.T) {
	authService, _ := setupAuthService()
	ctx := context.Background()

	_, err := authService.SignUp(ctx, signUpInput("alice", "alice@example.com"))
	require.NoError(t, err)

	_, err = authService.SignUp(ctx, signUpInput("alice", "other@example.com"))
	assert.ErrorIs(t, err, service.ErrUserExists)

	_, err = authService.SignUp(ctx, signUpInput("other", "alice@example.com"))
	assert.ErrorIs(t, err, service.ErrUserExists)
}

// TestAuthService_SignUp_DeletedUserConflict проверяет, что имя и почта
// мягко удалённого аккаунта остаются занятыми
func TestAuthService_SignUp_DeletedUserConflict(t *testing.T) {
	authService, _ := setupAuthService()
	ctx := context.Background()

	token, err := authService.SignUp(ctx, signUpInput("alice", "alice@example.com"))
	require.NoError(t, err)

	user, err := authService.ValidateToken(ctx, token)
	require.NoError(t, err)
	require.NoError(t, authService.SoftDeleteUser(ctx, user.ID, user.ID))

	_, err = authService.SignUp(ctx, signUpInput("alice", "alice@example.com"))
	assert.ErrorIs(t, err, service.ErrUserExists)
}

// TestAuthService_SignIn проверяет вход по email и паролю
func TestAuthService_SignIn(t *testing.T) {
	authService, _ := setupAuthService()
	ctx := context.Background()

	_, err := authService.SignUp(ctx, signUpInput("alice", "alice@example.com"))
	require.NoError(t, err)

	t.Run("успешный вход", func(t *testing.T) {
		token, err := authService.SignIn(ctx, &models.SignInInput{
			Email:    "alice@example.com",
			Password: "password123",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("неверный пароль", func(t *testing.T) {
		_, err := authService.SignIn(ctx, &models.SignInInput{
			Email:    "alice@example.com",
			Password: "wrong-password",
		})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("несуществующий email", func(t *testing.T) {
		_, err := authService.SignIn(ctx, &models.SignInInput{
			Email:    "nobody@example.com",
			Password: "password123",
		})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})
}

// TestAuthService_SignIn_DistinctToken проверяет, что signup и signin
// выдают разные токены, даже выпущенные в пределах одной секунды,
// и что оба декодируются в одного и того же пользователя
func TestAuthService_SignIn_DistinctToken(t *testing.T) {
	authService, _ := setupAuthService()
	ctx := context.Background()

	signupToken, err := authService.SignUp(ctx, signUpInput("alice", "alice@example.com"))
	require.NoError(t, err)

	signinToken, err := authService.SignIn(ctx, &models.SignInInput{
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	assert.NotEqual(t, signupToken, signinToken)

	fromSignup, err := authService.ValidateToken(ctx, signupToken)
	require.NoError(t, err)
	fromSignin, err := authService.ValidateToken(ctx, signinToken)
	require.NoError(t, err)
	assert.Equal(t, fromSignup.ID, fromSignin.ID)
}

// TestAuthService_ValidateToken_Invalid проверяет отклонение мусорных
// и чужих токенов
func TestAuthService_ValidateToken_Invalid(t *testing.T) {
	authService, _ := setupAuthService()
	ctx := context.Background()

	t.Run("мусорная строка", func(t *testing.T) {
		_, err := authService.ValidateToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, service.ErrInvalidToken)
	})

	t.Run("токен с другим секретом", func(t *testing.T) {
		otherService := service.NewAuthService(
			mocks.NewMockUserRepository(), zap.NewNop(), "other-secret", testTokenTTL, testLimit,
		)
		token, err := otherService.SignUp(ctx, signUpInput("bob", "bob@example.com"))
		require.NoError(t, err)

		_, err = authService.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, service.ErrInvalidToken)
	})
}

// TestAuthService_ValidateToken_DeletedUser проверяет, что токен
// мягко удалённого пользователя становится невалидным
func TestAuthService_ValidateToken_DeletedUser(t *testing.T) {
	authService, _ := setupAuthService()
	ctx := context.Background()

	token, err := authService.SignUp(ctx, signUpInput("alice", "alice@example.com"))
	require.NoError(t, err)

	user, err := authService.ValidateToken(ctx, token)
	require.NoError(t, err)
	require.NoError(t, authService.SoftDeleteUser(ctx, user.ID, user.ID))

	_, err = authService.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}

// TestAuthService_SoftDeleteUser_NotSelf проверяет запрет удаления чужого аккаунта
func TestAuthService_SoftDeleteUser_NotSelf(t *testing.T) {
	authService, _ := setupAuthService()
	ctx := context.Background()

	aliceToken, err := authService.SignUp(ctx, signUpInput("alice", "alice@example.com"))
	require.NoError(t, err)
	bobToken, err := authService.SignUp(ctx, signUpInput("bob", "bob@example.com"))
	require.NoError(t, err)

	alice, err := authService.ValidateToken(ctx, aliceToken)
	require.NoError(t, err)
	bob, err := authService.ValidateToken(ctx, bobToken)
	require.NoError(t, err)

	err = authService.SoftDeleteUser(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, service.ErrNotSelf)

	// Аккаунт Алисы остаётся активным
	_, err = authService.ValidateToken(ctx, aliceToken)
	assert.NoError(t, err)
}

// TestAuthService_FindAllUsers проверяет выдачу без хэшей паролей
// и без удалённых аккаунтов
func TestAuthService_FindAllUsers(t *testing.T) {
	authService, _ := setupAuthService()
	ctx := context.Background()

	_, err := authService.SignUp(ctx, signUpInput("alice", "alice@example.com"))
	require.NoError(t, err)
	bobToken, err := authService.SignUp(ctx, signUpInput("bob", "bob@example.com"))
	require.NoError(t, err)

	bob, err := authService.ValidateToken(ctx, bobToken)
	require.NoError(t, err)
	require.NoError(t, authService.SoftDeleteUser(ctx, bob.ID, bob.ID))

	users, err := authService.FindAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
}
