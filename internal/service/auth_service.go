package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"shortly/internal/models"
	"shortly/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Ошибки аутентификации
var (
	ErrUserExists         = errors.New("имя пользователя или email уже заняты")
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	ErrInvalidToken       = errors.New("невалидный или просроченный токен")
	ErrNotSelf            = errors.New("удалить можно только собственный аккаунт")
)

const bcryptCost = 10

// AuthService интерфейс сервиса аутентификации
type AuthService interface {
	SignUp(ctx context.Context, input *models.SignUpInput) (string, error)
	SignIn(ctx context.Context, input *models.SignInInput) (string, error)
	ValidateToken(ctx context.Context, token string) (*models.User, error)
	SoftDeleteUser(ctx context.Context, userID, requesterID int64) error
	FindAllUsers(ctx context.Context) ([]models.PublicUser, error)
}

type authService struct {
	userRepo    repository.UserRepository
	logger      *zap.Logger
	secret      []byte
	tokenTTL    time.Duration
	creditLimit int
}

// tokenClaims — полезная нагрузка JWT: id пользователя в sub плюс username.
type tokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewAuthService создаёт сервис аутентификации
func NewAuthService(
	userRepo repository.UserRepository,
	logger *zap.Logger,
	secret string,
	tokenTTL time.Duration,
	creditLimit int,
) AuthService {
	return &authService{
		userRepo:    userRepo,
		logger:      logger,
		secret:      []byte(secret),
		tokenTTL:    tokenTTL,
		creditLimit: creditLimit,
	}
}

// SignUp регистрирует пользователя и сразу выдаёт токен
func (s *authService) SignUp(ctx context.Context, input *models.SignUpInput) (string, error) {
	// Проверяем занятость имени и почты по всей таблице, включая
	// мягко удалённые аккаунты
	exists, err := s.userRepo.ExistsByUsernameOrEmail(ctx, input.Username, input.Email)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrUserExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:    input.Username,
		Email:       input.Email,
		Password:    string(hashed),
		CreditLimit: s.creditLimit,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Гонка двух одновременных регистраций решается уникальным
		// ограничением в БД
		if errors.Is(err, repository.ErrUserExists) {
			return "", ErrUserExists
		}
		return "", err
	}

	s.logger.Info("User registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)

	return s.generateToken(user)
}

// SignIn проверяет учётные данные и выдаёт токен
func (s *authService) SignIn(ctx context.Context, input *models.SignInInput) (string, error) {
	user, err := s.userRepo.GetActiveByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.generateToken(user)
}

// ValidateToken проверяет подпись токена и возвращает его владельца.
// Токен мягко удалённого пользователя считается невалидным.
func (s *authService) ValidateToken(ctx context.Context, tokenStr string) (*models.User, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&tokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetActiveByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	return user, nil
}

// SoftDeleteUser помечает аккаунт удалённым. Данные физически остаются.
func (s *authService) SoftDeleteUser(ctx context.Context, userID, requesterID int64) error {
	if userID != requesterID {
		return ErrNotSelf
	}

	if err := s.userRepo.SoftDelete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	s.logger.Info("User soft deleted", zap.Int64("user_id", userID))
	return nil
}

// FindAllUsers возвращает активных пользователей без хэшей паролей
func (s *authService) FindAllUsers(ctx context.Context) ([]models.PublicUser, error) {
	users, err := s.userRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	public := make([]models.PublicUser, 0, len(users))
	for i := range users {
		public = append(public, users[i].Public())
	}

	return public, nil
}

func (s *authService) generateToken(user *models.User) (string, error) {
	now := time.Now()

	// jti: iat/exp усекаются до секунд, без него два токена, выпущенные
	// в одну секунду, совпали бы байт в байт
	claims := tokenClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}
