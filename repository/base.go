// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// BaseRepository provides common repository functionality with transaction support
type BaseRepository[T any, F any] struct {
	DB *gorm.DB
}

// NewBaseRepository creates a new base repository instance
func NewBaseRepository[T any, F any](db *gorm.DB) *BaseRepository[T, F] {
	return &BaseRepository[T, F]{
		DB: db,
	}
}

// getDB returns the appropriate database connection (with or without transaction)
func (r *BaseRepository[T, F]) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.DB.WithContext(ctx)
}

// getDBForWrite returns database connection with transaction for write operations
func (r *BaseRepository[T, F]) getDBForWrite(ctx context.Context) (*gorm.DB, bool, error) {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx, false, nil // Transaction already exists, don't commit
	}

	// Start new transaction for write operation
	tx := r.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	return tx, true, nil // New transaction, should commit
}

// ByID retrieves an entity by its ID
func (r *BaseRepository[T, F]) ByID(ctx context.Context, id uint) (*T, error) {
	db := r.getDB(ctx)

	var entity T
	err := db.Last(&entity, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find entity by ID %d: %w", id, err)
	}

	return &entity, nil
}

// Save inserts a new entity
func (r *BaseRepository[T, F]) Save(ctx context.Context, entity *T) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Create(entity).Error
	if err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}

	return nil
}

// WithTransaction executes a function within a database transaction
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(context.Context) error) (err error) {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", r)
		}
	}()

	ctx = context.WithValue(ctx, TxContextKey, tx)

	if err := fn(ctx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
