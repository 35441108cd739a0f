package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wheelhouse-game/backend/internal/engine"
)

// roomRow is the single-table schema: one JSON blob per room code, replaced
// wholesale on every transition.
type roomRow struct {
	Code      string `gorm:"primaryKey;size:6"`
	State     []byte `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (roomRow) TableName() string { return "rooms" }

// Postgres is the durable store. Survives server restarts, unlike the game
// it was written for.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&roomRow{}); err != nil {
		return nil, fmt.Errorf("migrate rooms table: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Get(ctx context.Context, code string) (engine.Session, bool, error) {
	var row roomRow
	err := p.db.WithContext(ctx).First(&row, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.Session{}, false, nil
	}
	if err != nil {
		return engine.Session{}, false, fmt.Errorf("postgres get %s: %w", code, err)
	}
	s, err := decode(row.State)
	if err != nil {
		return engine.Session{}, false, err
	}
	return s, true, nil
}

func (p *Postgres) Set(ctx context.Context, code string, s engine.Session) error {
	raw, err := encode(s)
	if err != nil {
		return err
	}
	row := roomRow{Code: code, State: raw}
	err = p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("postgres set %s: %w", code, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, code string) error {
	if err := p.db.WithContext(ctx).Delete(&roomRow{}, "code = ?", code).Error; err != nil {
		return fmt.Errorf("postgres delete %s: %w", code, err)
	}
	return nil
}
