package repository

import (
	"context"
	"errors"
	"fmt"

	"shortly/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrCodeExists   = errors.New("short code already exists")
)

type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetActiveByShortCode(ctx context.Context, code string) (*models.Link, error)
	GetActiveByID(ctx context.Context, id int64) (*models.Link, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, link *models.Link) error
	SoftDelete(ctx context.Context, id int64) error
	IncrementClicks(ctx context.Context, code string) error
	ListActive(ctx context.Context) ([]models.Link, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Link, error)
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

const linkColumns = `id, short_code, original_url, click_count, user_id, expires_at, is_deleted, created_at, updated_at`

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (short_code, original_url, user_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		link.ShortCode,
		link.OriginalURL,
		link.UserID,
		link.ExpiresAt,
	).Scan(&link.ID, &link.CreatedAt, &link.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

// GetActiveByShortCode возвращает неудалённую ссылку независимо от срока
// жизни: истечение различает сервисный слой (404 против 410).
func (r *linkRepository) GetActiveByShortCode(ctx context.Context, code string) (*models.Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links
		WHERE short_code = $1 AND is_deleted = FALSE
	`

	return r.scanOne(r.db.Pool.QueryRow(ctx, query, code))
}

func (r *linkRepository) GetActiveByID(ctx context.Context, id int64) (*models.Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links
		WHERE id = $1 AND is_deleted = FALSE
	`

	return r.scanOne(r.db.Pool.QueryRow(ctx, query, id))
}

// CodeExists проверяет код по всей таблице, включая мягко удалённые
// строки: код удалённой ссылки повторно не выдаётся.
func (r *linkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM links WHERE short_code = $1)`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check short code: %w", err)
	}

	return exists, nil
}

func (r *linkRepository) Update(ctx context.Context, link *models.Link) error {
	query := `
		UPDATE links
		SET original_url = $2, expires_at = $3, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query, link.ID, link.OriginalURL, link.ExpiresAt).
		Scan(&link.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLinkNotFound
		}
		return fmt.Errorf("failed to update link: %w", err)
	}

	return nil
}

func (r *linkRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `
		UPDATE links
		SET is_deleted = TRUE, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// IncrementClicks атомарно увеличивает счётчик переходов.
func (r *linkRepository) IncrementClicks(ctx context.Context, code string) error {
	query := `
		UPDATE links
		SET click_count = click_count + 1
		WHERE short_code = $1 AND is_deleted = FALSE
	`

	result, err := r.db.Pool.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *linkRepository) ListActive(ctx context.Context) ([]models.Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links
		WHERE is_deleted = FALSE
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	return scanLinks(rows)
}

func (r *linkRepository) ListByUser(ctx context.Context, userID int64) ([]models.Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links
		WHERE user_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user links: %w", err)
	}
	defer rows.Close()

	return scanLinks(rows)
}

func (r *linkRepository) scanOne(row pgx.Row) (*models.Link, error) {
	link := &models.Link{}
	err := row.Scan(
		&link.ID,
		&link.ShortCode,
		&link.OriginalURL,
		&link.ClickCount,
		&link.UserID,
		&link.ExpiresAt,
		&link.IsDeleted,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func scanLinks(rows pgx.Rows) ([]models.Link, error) {
	var links []models.Link
	for rows.Next() {
		var link models.Link
		err := rows.Scan(
			&link.ID,
			&link.ShortCode,
			&link.OriginalURL,
			&link.ClickCount,
			&link.UserID,
			&link.ExpiresAt,
			&link.IsDeleted,
			&link.CreatedAt,
			&link.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

// Код 23505 — нарушение уникального ограничения в PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
