// Package timescaledb stores correlation results in a TimescaleDB
// (PostgreSQL) database via GORM.
package timescaledb

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/seismonet/noisecc/internal/log"
	"github.com/seismonet/noisecc/internal/types"
)

const createHypertableSQL = `SELECT create_hypertable('daily_ccfs', 'day', if_not_exists => TRUE);`

// Store holds the connection to a TimescaleDB database
type Store struct {
	db *gorm.DB
}

type dailyStackRow struct {
	Pair       string          `gorm:"primaryKey"`
	Components string          `gorm:"primaryKey"`
	FilterID   int             `gorm:"primaryKey"`
	Day        string          `gorm:"primaryKey"`
	SampleRate float64
	NCorr      int
	Data       pq.Float64Array `gorm:"type:double precision[]"`
}

func (dailyStackRow) TableName() string { return "daily_ccfs" }

type windowCorrRow struct {
	Pair        string          `gorm:"primaryKey"`
	Components  string          `gorm:"primaryKey"`
	FilterID    int             `gorm:"primaryKey"`
	WindowStart time.Time       `gorm:"primaryKey"`
	Day         string
	SampleRate  float64
	Data        pq.Float64Array `gorm:"type:double precision[]"`
}

func (windowCorrRow) TableName() string { return "window_ccfs" }

// New connects to TimescaleDB and prepares the result tables.
func New(ctx context.Context, connectionString string) (*Store, error) {
	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	log.Info("connecting to TimescaleDB...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("unable to create a TimescaleDB connection: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&dailyStackRow{}, &windowCorrRow{}); err != nil {
		return nil, fmt.Errorf("could not create result tables: %w", err)
	}

	// Hypertable conversion needs the TimescaleDB extension; a plain
	// PostgreSQL server still works as a flat table.
	if err := db.WithContext(ctx).Exec(createHypertableSQL).Error; err != nil {
		log.Warnf("could not create hypertable, continuing with a plain table: %v", err)
	}

	return &Store{db: db}, nil
}

// StoreDailyStack upserts a daily stack row.
func (s *Store) StoreDailyStack(ctx context.Context, stack *types.DailyStack) error {
	row := dailyStackRow{
		Pair:       stack.Pair,
		Components: stack.Components,
		FilterID:   stack.FilterID,
		Day:        stack.Day,
		SampleRate: stack.SampleRate,
		NCorr:      stack.NCorr,
		Data:       pq.Float64Array(stack.Data),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("could not store daily stack: %w", err)
	}
	return nil
}

// StoreWindowCorrelation upserts a window-level CCF row.
func (s *Store) StoreWindowCorrelation(ctx context.Context, w *types.WindowCorrelation) error {
	row := windowCorrRow{
		Pair:        w.Pair,
		Components:  w.Components,
		FilterID:    w.FilterID,
		Day:         w.Day,
		WindowStart: w.WindowStart,
		SampleRate:  w.SampleRate,
		Data:        pq.Float64Array(w.Data),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("could not store window correlation: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
