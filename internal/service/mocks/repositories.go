package mocks

import (
	"context"
	"sync"
	"time"

	"shortly/internal/models"
	"shortly/internal/repository"
)

// MockUserRepository implements repository.UserRepository for testing
type MockUserRepository struct {
	mu     sync.RWMutex
	users  map[int64]*models.User
	nextID int64
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[int64]*models.User),
		nextID: 1,
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repository.ErrUserExists
		}
	}

	user.ID = m.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Как и в БД: мягко удалённые строки тоже считаются занятыми
	for _, user := range m.users {
		if user.Username == username || user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockUserRepository) GetActiveByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[id]
	if !exists || user.IsDeleted {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *MockUserRepository) GetActiveByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.Email == email && !user.IsDeleted {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *MockUserRepository) SoftDelete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[id]
	if !exists || user.IsDeleted {
		return repository.ErrUserNotFound
	}
	user.IsDeleted = true
	return nil
}

func (m *MockUserRepository) ConsumeCredit(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[id]
	if !exists || user.IsDeleted || user.Usage >= user.CreditLimit {
		return repository.ErrNoCredit
	}
	user.Usage++
	return nil
}

func (m *MockUserRepository) ListActive(ctx context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []models.User
	for _, user := range m.users {
		if !user.IsDeleted {
			users = append(users, *user)
		}
	}
	return users, nil
}

func (m *MockUserRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = make(map[int64]*models.User)
	m.nextID = 1
}

// MockLinkRepository implements repository.LinkRepository for testing
type MockLinkRepository struct {
	mu     sync.RWMutex
	links  map[int64]*models.Link
	nextID int64
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links:  make(map[int64]*models.Link),
		nextID: 1,
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.links {
		if existing.ShortCode == link.ShortCode {
			return repository.ErrCodeExists
		}
	}

	link.ID = m.nextID
	link.CreatedAt = time.Now()
	link.UpdatedAt = link.CreatedAt
	m.nextID++
	m.links[link.ID] = link
	return nil
}

func (m *MockLinkRepository) GetActiveByShortCode(ctx context.Context, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, link := range m.links {
		if link.ShortCode == code && !link.IsDeleted {
			return link, nil
		}
	}
	return nil, repository.ErrLinkNotFound
}

func (m *MockLinkRepository) GetActiveByID(ctx context.Context, id int64) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[id]
	if !exists || link.IsDeleted {
		return nil, repository.ErrLinkNotFound
	}
	return link, nil
}

func (m *MockLinkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Удалённые строки тоже занимают код
	for _, link := range m.links {
		if link.ShortCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockLinkRepository) Update(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.links[link.ID]
	if !exists || stored.IsDeleted {
		return repository.ErrLinkNotFound
	}
	stored.OriginalURL = link.OriginalURL
	stored.ExpiresAt = link.ExpiresAt
	stored.UpdatedAt = time.Now()
	return nil
}

func (m *MockLinkRepository) SoftDelete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[id]
	if !exists || link.IsDeleted {
		return repository.ErrLinkNotFound
	}
	link.IsDeleted = true
	return nil
}

func (m *MockLinkRepository) IncrementClicks(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, link := range m.links {
		if link.ShortCode == code && !link.IsDeleted {
			link.ClickCount++
			return nil
		}
	}
	return repository.ErrLinkNotFound
}

func (m *MockLinkRepository) ListActive(ctx context.Context) ([]models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var links []models.Link
	for _, link := range m.links {
		if !link.IsDeleted {
			links = append(links, *link)
		}
	}
	return links, nil
}

func (m *MockLinkRepository) ListByUser(ctx context.Context, userID int64) ([]models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var links []models.Link
	for _, link := range m.links {
		if !link.IsDeleted && link.UserID != nil && *link.UserID == userID {
			links = append(links, *link)
		}
	}
	return links, nil
}

func (m *MockLinkRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = make(map[int64]*models.Link)
	m.nextID = 1
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.Link
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.Link),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.cache[key]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	return link, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = link
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

func (m *MockCacheRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*models.Link)
}

// MockClickRepository implements repository.ClickRepository for testing
type MockClickRepository struct {
	mu     sync.RWMutex
	clicks map[int64][]*models.Click // link_id -> clicks
}

func NewMockClickRepository() *MockClickRepository {
	return &MockClickRepository{
		clicks: make(map[int64][]*models.Click),
	}
}

func (m *MockClickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks[click.LinkID] = append(m.clicks[click.LinkID], click)
	return nil
}

func (m *MockClickRepository) GetStats(ctx context.Context, shortCode string) (*models.ClickStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var totalClicks int64
	uniqueIPs := make(map[string]bool)

	for _, clicks := range m.clicks {
		for _, click := range clicks {
			if click.ShortCode == shortCode {
				totalClicks++
				uniqueIPs[click.IPAddress] = true
			}
		}
	}

	return &models.ClickStats{
		ShortCode:    shortCode,
		TotalClicks:  totalClicks,
		UniqueClicks: int64(len(uniqueIPs)),
	}, nil
}

func (m *MockClickRepository) GetDailyStats(ctx context.Context, shortCode string, days int) ([]models.DailyClickStats, error) {
	return []models.DailyClickStats{}, nil
}

func (m *MockClickRepository) CountFor(shortCode string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, clicks := range m.clicks {
		for _, click := range clicks {
			if click.ShortCode == shortCode {
				count++
			}
		}
	}
	return count
}

func (m *MockClickRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = make(map[int64][]*models.Click)
}
