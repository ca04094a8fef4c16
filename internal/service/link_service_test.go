package service_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"go.uber.org/zap"

	"shortly/internal/models"
	"shortly/internal/repository"
	"shortly/internal/service"
	"shortly/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://localhost:8080"

// setupTestService создаёт тестовое окружение с моковыми репозиториями
func setupTestService() (service.LinkService, *mocks.MockLinkRepository, *mocks.MockUserRepository, *mocks.MockCacheRepository) {
	linkRepo := mocks.NewMockLinkRepository()
	userRepo := mocks.NewMockUserRepository()
	cacheRepo := mocks.NewMockCacheRepository()
	logger := zap.NewNop()
	linkService := service.NewLinkService(linkRepo, userRepo, cacheRepo, logger, testBaseURL)
	return linkService, linkRepo, userRepo, cacheRepo
}

// testUser регистрирует пользователя в моковом репозитории
func testUser(t *testing.T, userRepo *mocks.MockUserRepository, limit int) *models.User {
	t.Helper()
	user := &models.User{
		Username:    fmt.Sprintf("user%d", time.Now().UnixNano()),
		Email:       fmt.Sprintf("user%d@example.com", time.Now().UnixNano()),
		Password:    "hashed",
		CreditLimit: limit,
	}
	require.NoError(t, userRepo.Create(context.Background(), user))
	return user
}

// TestLinkService_Create_Anonymous проверяет анонимное создание ссылки
func TestLinkService_Create_Anonymous(t *testing.T) {
	linkService, _, _, _ := setupTestService()

	input := &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	}

	ctx := context.Background()
	link, err := linkService.Create(ctx, input, nil)

	require.NoError(t, err)
	assert.NotEmpty(t, link.ShortCode)
	assert.Equal(t, input.OriginalURL, link.OriginalURL)
	assert.Nil(t, link.UserID, "у анонимной ссылки не должно быть владельца")
	assert.Nil(t, link.ExpiresAt)
}

// TestLinkService_Create_CodeFormat проверяет формат короткого кода:
// 6 символов из [A-Za-z0-9]
func TestLinkService_Create_CodeFormat(t *testing.T) {
	linkService, _, _, _ := setupTestService()
	codePattern := regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

	ctx := context.Background()
	codes := make(map[string]bool)
	for i := 0; i < 100; i++ {
		input := &models.CreateLinkInput{
			OriginalURL: fmt.Sprintf("https://example.com/test/%d", i),
		}
		link, err := linkService.Create(ctx, input, nil)
		require.NoError(t, err)
		assert.Regexp(t, codePattern, link.ShortCode)
		assert.NotContains(t, codes, link.ShortCode, "Короткие коды должны быть уникальными")
		codes[link.ShortCode] = true
	}
}

// TestLinkService_Create_WithExpiration проверяет создание ссылки с временем жизни
func TestLinkService_Create_WithExpiration(t *testing.T) {
	linkService, _, _, _ := setupTestService()

	duration := 3600 // секунды
	input := &models.CreateLinkInput{
		OriginalURL:        "https://example.com/test",
		ExpirationDuration: &duration,
	}

	ctx := context.Background()
	link, err := linkService.Create(ctx, input, nil)

	require.NoError(t, err)
	require.NotNil(t, link.ExpiresAt)
	assert.True(t, link.ExpiresAt.After(time.Now()))
	assert.True(t, link.ExpiresAt.Before(time.Now().Add(2*time.Hour)))
}

// TestLinkService_Create_InvalidURL проверяет отклонение невалидного URL
func TestLinkService_Create_InvalidURL(t *testing.T) {
	linkService, _, _, _ := setupTestService()

	invalidURLs := []string{"not-a-url", "ftp://example.com", "", "example.com"}

	ctx := context.Background()
	for _, url := range invalidURLs {
		input := &models.CreateLinkInput{OriginalURL: url}
		link, err := linkService.Create(ctx, input, nil)

		assert.ErrorIs(t, err, service.ErrInvalidURL, "URL должен быть невалидным: %s", url)
		assert.Nil(t, link)
	}
}

// TestLinkService_Create_SpamDomain проверяет блокировку спам-доменов
func TestLinkService_Create_SpamDomain(t *testing.T) {
	linkService, _, _, _ := setupTestService()

	ctx := context.Background()
	link, err := linkService.Create(ctx, &models.CreateLinkInput{
		OriginalURL: "https://malware.com/bad-link",
	}, nil)

	assert.ErrorIs(t, err, service.ErrSpamDomain)
	assert.Nil(t, link)
}

// TestLinkService_Create_ConsumesCredit проверяет списание кредита
// при создании ссылки авторизованным пользователем
func TestLinkService_Create_ConsumesCredit(t *testing.T) {
	linkService, _, userRepo, _ := setupTestService()
	ctx := context.Background()

	user := testUser(t, userRepo, 10)

	link, err := linkService.Create(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	}, user)

	require.NoError(t, err)
	require.NotNil(t, link.UserID)
	assert.Equal(t, user.ID, *link.UserID)

	stored, err := userRepo.GetActiveByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Usage)
}

// TestLinkService_Create_LimitReached проверяет отказ при исчерпанном лимите
func TestLinkService_Create_LimitReached(t *testing.T) {
	linkService, _, userRepo, _ := setupTestService()
	ctx := context.Background()

	user := testUser(t, userRepo, 2)
	user.Usage = 2

	link, err := linkService.Create(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	}, user)

	assert.ErrorIs(t, err, service.ErrLimitReached)
	assert.Nil(t, link)
}

// TestLinkService_Create_CreditRace проверяет откат ссылки, когда
// остаток кредитов израсходован параллельным запросом: быстрая проверка
// прошла по устаревшему снимку, условный UPDATE вернул отказ
func TestLinkService_Create_CreditRace(t *testing.T) {
	linkService, linkRepo, userRepo, _ := setupTestService()
	ctx := context.Background()

	user := testUser(t, userRepo, 1)
	require.NoError(t, userRepo.ConsumeCredit(ctx, user.ID))

	// Снимок в руках запроса ещё не знает про списание
	stale := *user
	stale.Usage = 0

	link, err := linkService.Create(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	}, &stale)

	assert.ErrorIs(t, err, service.ErrLimitReached)
	assert.Nil(t, link)

	// Созданная строка должна быть откатана мягким удалением
	links, err := linkRepo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, links)
}

// TestLinkService_Create_CreditStorageFailure проверяет откат ссылки
// при произвольном сбое списания, а не только при гонке за остаток
func TestLinkService_Create_CreditStorageFailure(t *testing.T) {
	linkRepo := mocks.NewMockLinkRepository()
	userRepo := brokenCreditUserRepo{mocks.NewMockUserRepository()}
	cacheRepo := mocks.NewMockCacheRepository()
	linkService := service.NewLinkService(linkRepo, userRepo, cacheRepo, zap.NewNop(), testBaseURL)

	ctx := context.Background()
	user := testUser(t, userRepo.MockUserRepository, 10)

	link, err := linkService.Create(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	}, user)

	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrLimitReached)
	assert.Nil(t, link)

	// Созданная строка откатана мягким удалением
	links, err := linkRepo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, links)
}

// brokenCreditUserRepo имитирует хранилище, где списание кредита падает
type brokenCreditUserRepo struct {
	*mocks.MockUserRepository
}

func (brokenCreditUserRepo) ConsumeCredit(ctx context.Context, id int64) error {
	return errors.New("connection reset")
}

// TestLinkService_Create_CodeExhausted проверяет отказ после 10 неудачных
// попыток подобрать свободный код
func TestLinkService_Create_CodeExhausted(t *testing.T) {
	linkRepo := collidingLinkRepo{mocks.NewMockLinkRepository()}
	userRepo := mocks.NewMockUserRepository()
	cacheRepo := mocks.NewMockCacheRepository()
	linkService := service.NewLinkService(linkRepo, userRepo, cacheRepo, zap.NewNop(), testBaseURL)

	ctx := context.Background()
	link, err := linkService.Create(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	}, nil)

	assert.ErrorIs(t, err, service.ErrCodeExhausted)
	assert.Nil(t, link)
}

// collidingLinkRepo имитирует таблицу, где занят любой код
type collidingLinkRepo struct {
	*mocks.MockLinkRepository
}

func (collidingLinkRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	return true, nil
}

// TestLinkService_FindByShortCode_FromCache проверяет получение ссылки из кэша
func TestLinkService_FindByShortCode_FromCache(t *testing.T) {
	linkService, _, _, cacheRepo := setupTestService()
	ctx := context.Background()

	created, err := linkService.Create(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	}, nil)
	require.NoError(t, err)

	// Ссылка должна попасть в кэш при создании
	cached, err := cacheRepo.Get(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, created.ShortCode, cached.ShortCode)

	found, err := linkService.FindByShortCode(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, created.OriginalURL, found.OriginalURL)
}

// TestLinkService_FindByShortCode_NotFound проверяет обработку несуществующей ссылки
func TestLinkService_FindByShortCode_NotFound(t *testing.T) {
	linkService, _, _, _ := setupTestService()

	ctx := context.Background()
	link, err := linkService.FindByShortCode(ctx, "zzzzzz")

	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	assert.Nil(t, link)
}

// TestLinkService_FindByShortCode_Expired проверяет, что просроченная
// ссылка не резолвится, но остаётся в БД
func TestLinkService_FindByShortCode_Expired(t *testing.T) {
	linkService, linkRepo, _, cacheRepo := setupTestService()
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	link := &models.Link{
		ShortCode:   "abc123",
		OriginalURL: "https://example.com/old",
		ExpiresAt:   &past,
	}
	require.NoError(t, linkRepo.Create(ctx, link))

	found, err := linkService.FindByShortCode(ctx, "abc123")
	assert.ErrorIs(t, err, service.ErrLinkExpired)
	assert.Nil(t, found)

	// Истечение проверяется и для кэшированной копии
	require.NoError(t, cacheRepo.Set(ctx, "abc123", link, time.Minute))
	found, err = linkService.FindByShortCode(ctx, "abc123")
	assert.ErrorIs(t, err, service.ErrLinkExpired)
	assert.Nil(t, found)

	// Строка при этом жива в хранилище
	stored, err := linkRepo.GetActiveByShortCode(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, stored.IsDeleted)
}

// TestLinkService_Update_Owner проверяет изменение адреса владельцем
func TestLinkService_Update_Owner(t *testing.T) {
	linkService, _, userRepo, cacheRepo := setupTestService()
	ctx := context.Background()

	user := testUser(t, userRepo, 10)
	created, err := linkService.Create(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/old",
	}, user)
	require.NoError(t, err)

	updated, err := linkService.Update(ctx, created.ID, user.ID, "https://example.com/new")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/new", updated.OriginalURL)

	// Кэш должен быть сброшен
	_, err = cacheRepo.Get(ctx, created.ShortCode)
	assert.Error(t, err)
}

// TestLinkService_Update_NotOwner проверяет запрет изменения чужой ссылки
func TestLinkService_Update_NotOwner(t *testing.T) {
	linkService, _, userRepo, _ := setupTestService()
	ctx := context.Background()

	owner := testUser(t, userRepo, 10)
	other := testUser(t, userRepo, 10)

	created, err := linkService.Create(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	}, owner)
	require.NoError(t, err)

	updated, err := linkService.Update(ctx, created.ID, other.ID, "https://example.com/new")
	assert.ErrorIs(t, err, service.ErrNotOwner)
	assert.Nil(t, updated)
}

// TestLinkService_Update_AnonymousLink проверяет, что анонимную ссылку
// нельзя изменить: владельца у неё нет
func TestLinkService_Update_AnonymousLink(t *testing.T) {
	linkService, _, userRepo, _ := setupTestService()
	ctx := context.Background()

	user := testUser(t, userRepo, 10)
	created, err := linkService.Create(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	}, nil)
	require.NoError(t, err)

	updated, err := linkService.Update(ctx, created.ID, user.ID, "https://example.com/new")
	assert.ErrorIs(t, err, service.ErrNotOwner)
	assert.Nil(t, updated)
}

// TestLinkService_SoftDelete проверяет мягкое удаление: ссылка пропадает
// из выдачи, но её код не выдаётся повторно
func TestLinkService_SoftDelete(t *testing.T) {
	linkService, linkRepo, userRepo, cacheRepo := setupTestService()
	ctx := context.Background()

	user := testUser(t, userRepo, 10)
	created, err := linkService.Create(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	}, user)
	require.NoError(t, err)

	require.NoError(t, linkService.SoftDelete(ctx, created.ID, user.ID))

	_, err = linkService.FindByShortCode(ctx, created.ShortCode)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	_, err = cacheRepo.Get(ctx, created.ShortCode)
	assert.Error(t, err)

	// Код удалённой ссылки остаётся занятым
	exists, err := linkRepo.CodeExists(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.True(t, exists)
}

// TestLinkService_RenewExpiration проверяет сценарии продления срока жизни
func TestLinkService_RenewExpiration(t *testing.T) {
	linkService, _, userRepo, _ := setupTestService()
	ctx := context.Background()

	user := testUser(t, userRepo, 10)

	t.Run("явный срок ставит now+duration", func(t *testing.T) {
		duration := 60
		created, err := linkService.Create(ctx, &models.CreateLinkInput{
			OriginalURL:        "https://example.com/a",
			ExpirationDuration: &duration,
		}, user)
		require.NoError(t, err)

		newDuration := 7200
		renewed, err := linkService.RenewExpiration(ctx, created.ID, user.ID, &newDuration)
		require.NoError(t, err)
		require.NotNil(t, renewed.ExpiresAt)
		assert.True(t, renewed.ExpiresAt.After(time.Now().Add(time.Hour)))
	})

	t.Run("без срока продлевает на сутки", func(t *testing.T) {
		duration := 60
		created, err := linkService.Create(ctx, &models.CreateLinkInput{
			OriginalURL:        "https://example.com/b",
			ExpirationDuration: &duration,
		}, user)
		require.NoError(t, err)
		before := *created.ExpiresAt

		renewed, err := linkService.RenewExpiration(ctx, created.ID, user.ID, nil)
		require.NoError(t, err)
		require.NotNil(t, renewed.ExpiresAt)
		assert.WithinDuration(t, before.Add(24*time.Hour), *renewed.ExpiresAt, time.Second)
	})

	t.Run("бессрочная остаётся бессрочной", func(t *testing.T) {
		created, err := linkService.Create(ctx, &models.CreateLinkInput{
			OriginalURL: "https://example.com/c",
		}, user)
		require.NoError(t, err)

		renewed, err := linkService.RenewExpiration(ctx, created.ID, user.ID, nil)
		require.NoError(t, err)
		assert.Nil(t, renewed.ExpiresAt)
	})
}

// TestLinkService_GenerateQRCode проверяет генерацию QR-кода в обоих форматах
func TestLinkService_GenerateQRCode(t *testing.T) {
	linkService, _, _, _ := setupTestService()
	ctx := context.Background()

	created, err := linkService.Create(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	}, nil)
	require.NoError(t, err)

	t.Run("png", func(t *testing.T) {
		data, contentType, err := linkService.GenerateQRCode(ctx, created.ShortCode, "png")
		require.NoError(t, err)
		assert.Equal(t, "image/png", contentType)
		assert.NotEmpty(t, data)
	})

	t.Run("jpeg", func(t *testing.T) {
		data, contentType, err := linkService.GenerateQRCode(ctx, created.ShortCode, "jpeg")
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", contentType)
		assert.NotEmpty(t, data)
	})

	t.Run("несуществующий код", func(t *testing.T) {
		_, _, err := linkService.GenerateQRCode(ctx, "zzzzzz", "png")
		assert.Error(t, err)
	})
}

// TestLinkService_ShortURL проверяет сборку публичного адреса
func TestLinkService_ShortURL(t *testing.T) {
	linkService, _, _, _ := setupTestService()
	assert.Equal(t, testBaseURL+"/abc123", linkService.ShortURL("abc123"))
}

// TestLinkService_FindByUserID проверяет выборку ссылок пользователя
func TestLinkService_FindByUserID(t *testing.T) {
	linkService, _, userRepo, _ := setupTestService()
	ctx := context.Background()

	user := testUser(t, userRepo, 10)
	for i := 0; i < 3; i++ {
		_, err := linkService.Create(ctx, &models.CreateLinkInput{
			OriginalURL: fmt.Sprintf("https://example.com/%d", i),
		}, user)
		require.NoError(t, err)
	}
	// Анонимная ссылка не должна попасть в выборку
	_, err := linkService.Create(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/anon",
	}, nil)
	require.NoError(t, err)

	links, err := linkService.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, links, 3)
}

// TestLinkService_ConcurrentAccess проверяет потокобезопасность при одновременном доступе
func TestLinkService_ConcurrentAccess(t *testing.T) {
	linkService, _, _, _ := setupTestService()

	ctx := context.Background()
	done := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		go func(id int) {
			link, err := linkService.Create(ctx, &models.CreateLinkInput{
				OriginalURL: fmt.Sprintf("https://example.com/test%d", id),
			}, nil)
			assert.NoError(t, err)
			assert.NotNil(t, link)
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
