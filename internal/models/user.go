package models

import (
	"time"
)

type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Password    string    `json:"-"` // bcrypt-хэш, наружу не отдаём
	CreditLimit int       `json:"limit"`
	Usage       int       `json:"usage"`
	IsDeleted   bool      `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RemainingCredits возвращает остаток кредитов на создание ссылок.
func (u *User) RemainingCredits() int {
	return u.CreditLimit - u.Usage
}

// PublicUser — представление пользователя без чувствительных полей.
type PublicUser struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	CreditLimit int       `json:"limit"`
	Usage       int       `json:"usage"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		CreditLimit: u.CreditLimit,
		Usage:       u.Usage,
		CreatedAt:   u.CreatedAt,
	}
}

type SignUpInput struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type SignInInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
