package source

import (
	"context"
	"errors"

	"github.com/visionsuite/camstream/internal/shared"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Source{})
}

func (s *Store) Create(ctx context.Context, src *Source) error {
	if src.ID == "" {
		src.ID = shared.NewID("src_")
	}
	return s.db.WithContext(ctx).Create(src).Error
}

func (s *Store) GetByID(ctx context.Context, id string) (*Source, error) {
	var src Source
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&src).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &src, err
}

func (s *Store) List(ctx context.Context) ([]*Source, error) {
	var sources []*Source
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&sources).Error
	return sources, err
}

func (s *Store) ListEnabled(ctx context.Context) ([]*Source, error) {
	var sources []*Source
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("created_at ASC").Find(&sources).Error
	return sources, err
}

func (s *Store) Update(ctx context.Context, src *Source) error {
	return s.db.WithContext(ctx).Save(src).Error
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&Source{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
