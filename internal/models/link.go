package models

import (
	"time"
)

type Link struct {
	ID          int64      `json:"id"`
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	ClickCount  int64      `json:"click_count"`
	UserID      *int64     `json:"user_id,omitempty"` // nil для анонимных ссылок
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsDeleted   bool       `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Expired сообщает, истёк ли срок жизни ссылки.
// Ссылка без expires_at живёт вечно.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

type CreateLinkInput struct {
	OriginalURL string `json:"originalUrl" binding:"required,url"`
	// Срок жизни в секундах с момента создания
	ExpirationDuration *int `json:"expirationDuration,omitempty" binding:"omitempty,gt=0"`
}

type UpdateLinkInput struct {
	OriginalURL string `json:"originalUrl" binding:"required,url"`
}

type RenewLinkInput struct {
	ExpirationDuration *int `json:"expirationDuration,omitempty" binding:"omitempty,gt=0"`
}

type QRCodeInput struct {
	ShortCode string `json:"shortCode" binding:"required,len=6,alphanum"`
	Format    string `json:"format,omitempty" binding:"omitempty,oneof=png jpeg"`
}
