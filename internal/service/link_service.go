package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"image/jpeg"
	"math/big"
	"regexp"
	"strings"
	"time"

	"shortly/internal/models"
	"shortly/internal/repository"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	ErrInvalidURL    = errors.New("невалидный URL")
	ErrSpamDomain    = errors.New("домен в чёрном списке")
	ErrLimitReached  = errors.New("лимит на создание ссылок исчерпан")
	ErrCodeExhausted = errors.New("не удалось подобрать свободный короткий код")
	ErrLinkExpired   = errors.New("срок жизни ссылки истёк")
	ErrNotOwner      = errors.New("ссылка принадлежит другому пользователю")
)

// Константы сервиса
const (
	defaultCacheTTL = 24 * time.Hour
	defaultRenewal  = 24 * time.Hour // продление renew без явного срока
	codeLength      = 6
	charset         = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxCodeAttempts = 10
)

// Чёрный список доменов (можно вынести в конфиг или БД)
var blacklistedDomains = []string{
	"malware.com",
	"phishing.com",
	"spam.com",
}

// LinkService интерфейс сервиса ссылок
type LinkService interface {
	Create(ctx context.Context, input *models.CreateLinkInput, user *models.User) (*models.Link, error)
	FindByShortCode(ctx context.Context, code string) (*models.Link, error)
	Update(ctx context.Context, id, userID int64, newURL string) (*models.Link, error)
	SoftDelete(ctx context.Context, id, userID int64) error
	RenewExpiration(ctx context.Context, id, userID int64, durationSeconds *int) (*models.Link, error)
	GenerateQRCode(ctx context.Context, code, format string) ([]byte, string, error)
	FindAll(ctx context.Context) ([]models.Link, error)
	FindByUserID(ctx context.Context, userID int64) ([]models.Link, error)
	ShortURL(code string) string
}

// linkService реализация сервиса ссылок
type linkService struct {
	linkRepo  repository.LinkRepository
	userRepo  repository.UserRepository
	cacheRepo repository.CacheRepository
	logger    *zap.Logger
	baseURL   string
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(
	linkRepo repository.LinkRepository,
	userRepo repository.UserRepository,
	cacheRepo repository.CacheRepository,
	logger *zap.Logger,
	baseURL string,
) LinkService {
	return &linkService{
		linkRepo:  linkRepo,
		userRepo:  userRepo,
		cacheRepo: cacheRepo,
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Create создаёт новую короткую ссылку. Для авторизованного пользователя
// списывается один кредит; анонимные ссылки создаются без владельца.
func (s *linkService) Create(ctx context.Context, input *models.CreateLinkInput, user *models.User) (*models.Link, error) {
	if err := s.validateURL(input.OriginalURL); err != nil {
		return nil, err
	}

	if err := s.checkSpamDomain(input.OriginalURL); err != nil {
		return nil, err
	}

	// Быстрая проверка лимита; настоящая защита — условный UPDATE ниже
	if user != nil && user.Usage >= user.CreditLimit {
		return nil, ErrLimitReached
	}

	var expiresAt *time.Time
	if input.ExpirationDuration != nil && *input.ExpirationDuration > 0 {
		t := time.Now().Add(time.Duration(*input.ExpirationDuration) * time.Second)
		expiresAt = &t
	}

	link := &models.Link{
		OriginalURL: input.OriginalURL,
		ExpiresAt:   expiresAt,
	}
	if user != nil {
		link.UserID = &user.ID
	}

	// Подбор кода: до 10 попыток. Проверка идёт по всей таблице,
	// включая удалённые строки — их коды повторно не выдаются.
	// Гонку двух вставок одного кода закрывает уникальный индекс.
	created := false
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.generateShortCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}

		exists, err := s.linkRepo.CodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		link.ShortCode = code
		err = s.linkRepo.Create(ctx, link)
		if errors.Is(err, repository.ErrCodeExists) {
			continue
		}
		if err != nil {
			return nil, err
		}

		created = true
		break
	}
	if !created {
		return nil, ErrCodeExhausted
	}

	if user != nil {
		if err := s.userRepo.ConsumeCredit(ctx, user.ID); err != nil {
			// Ссылка уже вставлена: при любом сбое списания откатываем
			// её мягким удалением, чтобы не оставить строку без кредита
			if delErr := s.linkRepo.SoftDelete(ctx, link.ID); delErr != nil {
				s.logger.Warn("Failed to roll back link after credit failure",
					zap.Int64("link_id", link.ID),
					zap.Error(delErr),
				)
			}
			if errors.Is(err, repository.ErrNoCredit) {
				return nil, ErrLimitReached
			}
			return nil, err
		}
	}

	// Кэширование; ошибка кэша не прерывает создание
	if err := s.cacheRepo.Set(ctx, link.ShortCode, link, s.cacheTTL(link)); err != nil {
		s.logger.Debug("Failed to cache link", zap.String("code", link.ShortCode), zap.Error(err))
	}

	return link, nil
}

// FindByShortCode возвращает ссылку по коду. Просроченная ссылка
// остаётся в БД, но наружу отдаётся ErrLinkExpired.
func (s *linkService) FindByShortCode(ctx context.Context, code string) (*models.Link, error) {
	// Сначала кэш; истечение проверяем и для кэшированной копии
	if link, err := s.cacheRepo.Get(ctx, code); err == nil {
		if link.Expired(time.Now()) {
			return nil, ErrLinkExpired
		}
		return link, nil
	}

	link, err := s.linkRepo.GetActiveByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if link.Expired(time.Now()) {
		return nil, ErrLinkExpired
	}

	if err := s.cacheRepo.Set(ctx, code, link, s.cacheTTL(link)); err != nil {
		s.logger.Debug("Failed to cache link", zap.String("code", code), zap.Error(err))
	}

	return link, nil
}

// Update меняет адрес назначения. Доступно только владельцу; анонимную
// ссылку изменить нельзя — владельца у неё нет.
func (s *linkService) Update(ctx context.Context, id, userID int64, newURL string) (*models.Link, error) {
	if err := s.validateURL(newURL); err != nil {
		return nil, err
	}
	if err := s.checkSpamDomain(newURL); err != nil {
		return nil, err
	}

	link, err := s.ownedLink(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	link.OriginalURL = newURL
	if err := s.linkRepo.Update(ctx, link); err != nil {
		return nil, err
	}

	s.invalidate(ctx, link.ShortCode)
	return link, nil
}

// SoftDelete помечает ссылку удалённой, строка остаётся в БД
func (s *linkService) SoftDelete(ctx context.Context, id, userID int64) error {
	link, err := s.ownedLink(ctx, id, userID)
	if err != nil {
		return err
	}

	if err := s.linkRepo.SoftDelete(ctx, link.ID); err != nil {
		return err
	}

	s.invalidate(ctx, link.ShortCode)
	return nil
}

// RenewExpiration продлевает срок жизни ссылки. С явным сроком ставит
// now+duration; без него продлевает существующий срок на сутки;
// бессрочную ссылку оставляет бессрочной.
func (s *linkService) RenewExpiration(ctx context.Context, id, userID int64, durationSeconds *int) (*models.Link, error) {
	link, err := s.ownedLink(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	switch {
	case durationSeconds != nil && *durationSeconds > 0:
		t := time.Now().Add(time.Duration(*durationSeconds) * time.Second)
		link.ExpiresAt = &t
	case link.ExpiresAt != nil:
		t := link.ExpiresAt.Add(defaultRenewal)
		link.ExpiresAt = &t
	}

	if err := s.linkRepo.Update(ctx, link); err != nil {
		return nil, err
	}

	s.invalidate(ctx, link.ShortCode)
	return link, nil
}

// GenerateQRCode рендерит QR-код с публичным коротким адресом ссылки.
// Возвращает байты изображения и content type.
func (s *linkService) GenerateQRCode(ctx context.Context, code, format string) ([]byte, string, error) {
	// Код должен указывать на живую ссылку
	link, err := s.FindByShortCode(ctx, code)
	if err != nil {
		return nil, "", err
	}

	shortURL := s.ShortURL(link.ShortCode)

	switch format {
	case "", "png":
		png, err := qrcode.Encode(shortURL, qrcode.Medium, 256)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode QR code: %w", err)
		}
		return png, "image/png", nil

	case "jpeg":
		qr, err := qrcode.New(shortURL, qrcode.Medium)
		if err != nil {
			return nil, "", fmt.Errorf("failed to build QR code: %w", err)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, qr.Image(256), nil); err != nil {
			return nil, "", fmt.Errorf("failed to encode JPEG: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil

	default:
		return nil, "", fmt.Errorf("unsupported QR format %q", format)
	}
}

// FindAll возвращает все неудалённые ссылки, новые первыми
func (s *linkService) FindAll(ctx context.Context) ([]models.Link, error) {
	return s.linkRepo.ListActive(ctx)
}

// FindByUserID возвращает ссылки пользователя, новые первыми
func (s *linkService) FindByUserID(ctx context.Context, userID int64) ([]models.Link, error) {
	return s.linkRepo.ListByUser(ctx, userID)
}

// ShortURL собирает публичный адрес короткой ссылки
func (s *linkService) ShortURL(code string) string {
	return s.baseURL + "/" + code
}

// ownedLink загружает ссылку и проверяет владельца
func (s *linkService) ownedLink(ctx context.Context, id, userID int64) (*models.Link, error) {
	link, err := s.linkRepo.GetActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if link.UserID == nil || *link.UserID != userID {
		return nil, ErrNotOwner
	}

	return link, nil
}

func (s *linkService) invalidate(ctx context.Context, code string) {
	if err := s.cacheRepo.Delete(ctx, code); err != nil {
		s.logger.Debug("Failed to invalidate cache", zap.String("code", code), zap.Error(err))
	}
}

func (s *linkService) cacheTTL(link *models.Link) time.Duration {
	if link.ExpiresAt != nil {
		return time.Until(*link.ExpiresAt)
	}
	return defaultCacheTTL
}

// generateShortCode генерирует случайный код из 6 символов [A-Za-z0-9]
func (s *linkService) generateShortCode() (string, error) {
	result := make([]byte, codeLength)
	for i := 0; i < codeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}
	return string(result), nil
}

// validateURL проверяет формат URL с помощью регулярного выражения
func (s *linkService) validateURL(url string) error {
	pattern := `^https?://[^\s]+$`
	matched, _ := regexp.MatchString(pattern, url)
	if !matched {
		return ErrInvalidURL
	}
	return nil
}

// checkSpamDomain проверяет наличие URL в чёрном списке доменов
func (s *linkService) checkSpamDomain(url string) error {
	for _, domain := range blacklistedDomains {
		if strings.Contains(url, domain) {
			return ErrSpamDomain
		}
	}
	return nil
}
