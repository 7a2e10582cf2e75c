package types

import (
	"errors"

	"github.com/planpoker/planning-poker-backend/internal/hub"
	"github.com/planpoker/planning-poker-backend/internal/room"
	"github.com/planpoker/planning-poker-backend/internal/store"
)

// Machine-readable error codes.
const (
	CodeRoomNotFound     = "ROOM_NOT_FOUND"
	CodeMemberNotFound   = "MEMBER_NOT_FOUND"
	CodeCapacityExceeded = "CAPACITY_EXCEEDED"
	CodeInvalidVote      = "INVALID_VOTE"
	CodeAlreadyRevealed  = "ALREADY_REVEALED"
	CodeNoVotes          = "NO_VOTES"
	CodeValidationError  = "VALIDATION_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeDatabaseError    = "DATABASE_ERROR"
	CodeUnknown          = "UNKNOWN"
)

// CodeForError maps a domain error to its wire code.
func CodeForError(err error) string {
	switch {
	case errors.Is(err, hub.ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, room.ErrMemberNotFound):
		return CodeMemberNotFound
	case errors.Is(err, room.ErrCapacityExceeded):
		return CodeCapacityExceeded
	case errors.Is(err, room.ErrInvalidVote):
		return CodeInvalidVote
	case errors.Is(err, room.ErrAlreadyRevealed):
		return CodeAlreadyRevealed
	case errors.Is(err, room.ErrNoVotes):
		return CodeNoVotes
	case errors.Is(err, store.ErrDatabase):
		return CodeDatabaseError
	default:
		return CodeUnknown
	}
}
