package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore implements Store on top of a gorm connection.
type GormStore struct {
	db *gorm.DB
}

func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Open connects to Postgres and migrates the rooms table.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&RoomRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

func dbErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrDatabase, err)
}

func (s *GormStore) CreateRoom(ctx context.Context, id, title string, maxMembers int) (RoomRecord, error) {
	rec := RoomRecord{ID: id, Title: title, MaxMembers: maxMembers}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return RoomRecord{}, dbErr("create room", err)
	}
	return rec, nil
}

func (s *GormStore) FindRoomByID(ctx context.Context, id string) (RoomRecord, bool, error) {
	var rec RoomRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RoomRecord{}, false, nil
	}
	if err != nil {
		return RoomRecord{}, false, dbErr("find room", err)
	}
	return rec, true, nil
}

func (s *GormStore) UpdateRunningScore(ctx context.Context, id string, score float64) error {
	err := s.db.WithContext(ctx).
		Model(&RoomRecord{}).
		Where("id = ?", id).
		Update("running_score", score).Error
	if err != nil {
		return dbErr("update running score", err)
	}
	return nil
}
