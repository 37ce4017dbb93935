package boxstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"moving-box-tracker/app/server/models"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("box not found")

// Store 在内存里维护箱子列表，每次变更后整体重写镜像文件。
// 写操作串行，读操作可以并发。
type Store struct {
	mu    sync.RWMutex
	file  string
	boxes []models.Box
}

func Load(file string) (*Store, error) {
	s := &Store{
		file:  file,
		boxes: []models.Box{},
	}

	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			// 还没有数据文件，从空列表开始
			return s, nil
		}
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	if err := json.Unmarshal(data, &s.boxes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal data file: %w", err)
	}

	return s, nil
}

func (s *Store) List() []models.Box {
	s.mu.RLock()
	defer s.mu.RUnlock()

	boxes := make([]models.Box, len(s.boxes))
	copy(boxes, s.boxes)
	return boxes
}

func (s *Store) Get(id string) (models.Box, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, box := range s.boxes {
		if box.ID == id {
			return box, nil
		}
	}
	return models.Box{}, ErrNotFound
}

func (s *Store) Create(box models.Box) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	box.ID = uuid.NewString()
	s.boxes = append(s.boxes, box)

	if err := s.persistLocked(); err != nil {
		// 回滚，保持内存与镜像文件一致
		s.boxes = s.boxes[:len(s.boxes)-1]
		return "", err
	}

	return box.ID, nil
}

func (s *Store) Update(id string, box models.Box) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.boxes {
		if s.boxes[i].ID == id {
			old := s.boxes[i]

			// 全量替换，只保留 ID
			box.ID = id
			s.boxes[i] = box

			if err := s.persistLocked(); err != nil {
				s.boxes[i] = old
				return err
			}
			return nil
		}
	}

	return ErrNotFound
}

// Delete 移除记录并返回被移除的箱子，方便调用方清理关联的图片文件
func (s *Store) Delete(id string) (models.Box, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.boxes {
		if s.boxes[i].ID == id {
			removed := s.boxes[i]
			s.boxes = append(s.boxes[:i], s.boxes[i+1:]...)

			if err := s.persistLocked(); err != nil {
				s.boxes = append(s.boxes[:i], append([]models.Box{removed}, s.boxes[i:]...)...)
				return models.Box{}, err
			}
			return removed, nil
		}
	}

	return models.Box{}, ErrNotFound
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.boxes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal boxes: %w", err)
	}

	// 先写临时文件再改名，避免写到一半崩溃留下损坏的镜像
	tmp, err := os.CreateTemp(filepath.Dir(s.file), ".boxes-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.file); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace data file: %w", err)
	}

	return nil
}
