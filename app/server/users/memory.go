package users

import (
	"context"
	"sync"

	"moving-box-tracker/app/server/models"
)

// MemoryRepository 在内存里保存用户，测试时使用
type MemoryRepository struct {
	mu     sync.Mutex
	nextID uint
	byName map[string]*models.User
	byID   map[uint]*models.User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID: 1,
		byName: make(map[string]*models.User),
		byID:   make(map[uint]*models.User),
	}
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[user.Username]; exists {
		return ErrDuplicate
	}

	user.ID = r.nextID
	r.nextID++

	stored := *user
	r.byName[stored.Username] = &stored
	r.byID[stored.ID] = &stored
	return nil
}

func (r *MemoryRepository) FindByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.byName[username]
	if !exists {
		return nil, ErrNotFound
	}

	found := *user
	return &found, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.byID[id]
	if !exists {
		return nil, ErrNotFound
	}

	found := *user
	return &found, nil
}

// Approve 模拟线下的管理员批准操作
func (r *MemoryRepository) Approve(username string, role string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.byName[username]
	if !exists {
		return false
	}

	user.Approved = true
	if role != "" {
		user.Role = role
	}
	return true
}
