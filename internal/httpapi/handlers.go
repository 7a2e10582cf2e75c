package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/planpoker/planning-poker-backend/internal/hub"
	"github.com/planpoker/planning-poker-backend/pkg/types"
)

const maxTitleLength = 100

type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{
		Success: false,
		Error:   types.ErrorPayload{Code: code, Message: message},
	})
}

func statusForCode(code string) int {
	switch code {
	case types.CodeRoomNotFound:
		return http.StatusNotFound
	case types.CodeValidationError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type createRoomRequest struct {
	Title      string `json:"title"`
	MaxMembers int    `json:"maxMembers"`
}

// CreateRoom allocates a fresh room. Ids are generated server-side, so the
// common path never collides.
func CreateRoom(h *hub.Hub, defaultMaxMembers int, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		// An empty body means all defaults.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, types.CodeValidationError, "malformed request body")
			return
		}
		if len(req.Title) > maxTitleLength {
			writeError(w, http.StatusBadRequest, types.CodeValidationError, "title too long")
			return
		}
		if req.MaxMembers <= 0 {
			req.MaxMembers = defaultMaxMembers
		}

		sess, err := h.Create(r.Context(), req.Title, req.MaxMembers)
		if err != nil {
			log.Error("room creation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, types.CodeDatabaseError, "failed to create room")
			return
		}

		snap := sess.State()
		writeJSON(w, http.StatusCreated, envelope{
			Success: true,
			Data: map[string]any{
				"id":   snap.ID,
				"room": snap,
			},
		})
	}
}

// GetRoom returns the current snapshot. Plain cache-then-store lookup; the
// reconnect grace window plays no part here.
func GetRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, err := h.Lookup(r.Context(), id)
		if err != nil {
			code := types.CodeForError(err)
			writeError(w, statusForCode(code), code, "failed to get room")
			return
		}
		writeJSON(w, http.StatusOK, envelope{
			Success: true,
			Data:    map[string]any{"room": sess.State()},
		})
	}
}

// GetRoomStats reports member count and the running score.
func GetRoomStats(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, err := h.Lookup(r.Context(), id)
		if err != nil {
			code := types.CodeForError(err)
			writeError(w, statusForCode(code), code, "failed to get room stats")
			return
		}
		snap := sess.State()
		writeJSON(w, http.StatusOK, envelope{
			Success: true,
			Data: map[string]any{
				"memberCount":  len(snap.Members),
				"runningScore": snap.RunningScore,
				"isRevealed":   snap.Revealed,
			},
		})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
