package repository

import (
	"context"
	"errors"
	"fmt"

	"shortly/internal/models"

	"github.com/jackc/pgx/v5"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username or email already exists")
	ErrNoCredit     = errors.New("credit limit reached")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	GetActiveByID(ctx context.Context, id int64) (*models.User, error)
	GetActiveByEmail(ctx context.Context, email string) (*models.User, error)
	SoftDelete(ctx context.Context, id int64) error
	ConsumeCredit(ctx context.Context, id int64) error
	ListActive(ctx context.Context) ([]models.User, error)
}

type userRepository struct {
	db *PostgresDB
}

func NewUserRepository(db *PostgresDB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, email, password, credit_limit, usage, is_deleted, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password, credit_limit)
		VALUES ($1, $2, $3, $4)
		RETURNING id, usage, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		user.Username,
		user.Email,
		user.Password,
		user.CreditLimit,
	).Scan(&user.ID, &user.Usage, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// ExistsByUsernameOrEmail смотрит и мягко удалённые строки: занятые имя
// и почта не освобождаются после удаления аккаунта.
func (r *userRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	return exists, nil
}

func (r *userRepository) GetActiveByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND is_deleted = FALSE
	`

	return r.scanOne(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetActiveByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 AND is_deleted = FALSE
	`

	return r.scanOne(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *userRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET is_deleted = TRUE, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ConsumeCredit списывает один кредит условным обновлением: usage не
// обгонит credit_limit даже при параллельных запросах.
func (r *userRepository) ConsumeCredit(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET usage = usage + 1, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE AND usage < credit_limit
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to consume credit: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNoCredit
	}

	return nil
}

func (r *userRepository) ListActive(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_deleted = FALSE
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.Password,
			&user.CreditLimit,
			&user.Usage,
			&user.IsDeleted,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

func (r *userRepository) scanOne(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Password,
		&user.CreditLimit,
		&user.Usage,
		&user.IsDeleted,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}
