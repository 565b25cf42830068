// Package store persists finished duels. Rooms themselves are never stored.
package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Match struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RoomCode     string    `gorm:"size:16;index" json:"roomCode"`
	WinnerConnID string    `gorm:"size:64" json:"winner"`
	WinnerIsHost bool      `json:"winnerIsHost"`
	LoserConnID  string    `gorm:"size:64" json:"loser"`
	WinnerHealth int       `json:"winnerHealth"`
	EndedAt      time.Time `gorm:"index" json:"endedAt"`
	CreatedAt    time.Time `json:"-"`
}

func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Match{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Save(ctx context.Context, m *Match) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Recent returns up to limit matches, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []Match
	err := r.db.WithContext(ctx).Order("ended_at desc").Limit(limit).Find(&out).Error
	return out, err
}
