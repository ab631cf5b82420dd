// Package repository provides a generic gorm-backed store.
package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/raylanfranco/whitelabel-admin/pkg/db/option"
)

// Repository is the persistence surface shared by the domain services.
type Repository[T any] interface {
	Create(ctx context.Context, record *T) error
	Save(ctx context.Context, record *T) error
	FindOne(ctx context.Context, filter any, args ...any) (*T, error)
	Find(ctx context.Context, filter any, opts ...option.QueryOption) ([]*T, error)
	Count(ctx context.Context, filter any, args ...any) (int64, error)
}

type store[T any] struct {
	db *gorm.DB
}

// ProvideStore builds a Repository bound to the shared connection.
func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) Create(ctx context.Context, record *T) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *store[T]) Save(ctx context.Context, record *T) error {
	return s.db.WithContext(ctx).Save(record).Error
}

// FindOne returns nil without error when no row matches.
func (s *store[T]) FindOne(ctx context.Context, filter any, args ...any) (*T, error) {
	var record T
	err := s.db.WithContext(ctx).Where(filter, args...).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (s *store[T]) Find(ctx context.Context, filter any, opts ...option.QueryOption) ([]*T, error) {
	query := s.db.WithContext(ctx).Where(filter)
	query = option.Apply(query, opts...)

	var records []*T
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *store[T]) Count(ctx context.Context, filter any, args ...any) (int64, error) {
	var model T
	var count int64
	err := s.db.WithContext(ctx).Model(&model).Where(filter, args...).Count(&count).Error
	return count, err
}
