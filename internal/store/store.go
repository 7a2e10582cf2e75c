// Package store persists room records. The in-memory session state is the
// source of truth while the process lives; the store only carries identity
// and the running score across restarts.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrDatabase wraps every driver-level failure. Callers never interpret
// store-specific error codes.
var ErrDatabase = errors.New("database error")

// RoomRecord is the persisted shape of a room.
type RoomRecord struct {
	ID           string  `gorm:"primaryKey;size:16"`
	Title        string  `gorm:"size:100"`
	MaxMembers   int     `gorm:"not null"`
	RunningScore float64 `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (RoomRecord) TableName() string { return "rooms" }

type Store interface {
	CreateRoom(ctx context.Context, id, title string, maxMembers int) (RoomRecord, error)
	FindRoomByID(ctx context.Context, id string) (RoomRecord, bool, error)
	UpdateRunningScore(ctx context.Context, id string, score float64) error
}
