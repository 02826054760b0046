package leaderboard

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type winRow struct {
	Name      string `gorm:"primaryKey;size:64"`
	Wins      int    `gorm:"not null;default:0;index:idx_wins_top,sort:desc"`
	UpdatedAt time.Time
}

func (winRow) TableName() string { return "leaderboard_wins" }

type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgres connects with a libpq-style DSN or URL and migrates the schema.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("leaderboard: cannot open postgres: %w", err)
	}
	if err := db.AutoMigrate(&winRow{}); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("leaderboard: migration failed: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) RecordWin(ctx context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	row := winRow{Name: name, Wins: 1, UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]any{
			"wins":       gorm.Expr("leaderboard_wins.wins + 1"),
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("leaderboard: cannot record win: %w", err)
	}
	return nil
}

func (s *PostgresStore) Top(ctx context.Context, limit int) ([]Entry, error) {
	var rows []winRow
	err := s.db.WithContext(ctx).
		Order("wins DESC").Order("name ASC").
		Limit(NormalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("leaderboard: cannot query wins: %w", err)
	}
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{Name: r.Name, Score: r.Wins})
	}
	return entries, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
