package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/planpoker/planning-poker-backend/internal/coord"
	"github.com/planpoker/planning-poker-backend/internal/gateway"
	"github.com/planpoker/planning-poker-backend/internal/hub"
	"github.com/planpoker/planning-poker-backend/internal/store"
	"github.com/planpoker/planning-poker-backend/pkg/types"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]store.RoomRecord
}

func (s *memStore) CreateRoom(_ context.Context, id, title string, maxMembers int) (store.RoomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := store.RoomRecord{ID: id, Title: title, MaxMembers: maxMembers}
	s.records[id] = rec
	return rec, nil
}

func (s *memStore) FindRoomByID(_ context.Context, id string) (store.RoomRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok, nil
}

func (s *memStore) UpdateRunningScore(_ context.Context, id string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[id]
	rec.RunningScore = score
	s.records[id] = rec
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := zap.NewNop()
	st := &memStore{records: make(map[string]store.RoomRecord)}
	c := coord.New(time.Second, log)
	gw := gateway.New(c, log)
	h := hub.NewHub(ctx, st, gw, log)

	srv := httptest.NewServer(SetupRoutes(h, c, gw, []string{"*"}, 20, log))
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateRoom(t *testing.T) {
	srv := newTestServer(t)

	body := bytes.NewBufferString(`{"title":"sprint 14","maxMembers":8}`)
	resp, err := http.Post(srv.URL+"/rooms", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		Success bool `json:"success"`
		Data    struct {
			ID   string `json:"id"`
			Room struct {
				Title      string `json:"title"`
				MaxMembers int    `json:"maxMembers"`
				IsRevealed bool   `json:"isRevealed"`
			} `json:"room"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Len(t, out.Data.ID, 6)
	assert.Equal(t, "sprint 14", out.Data.Room.Title)
	assert.Equal(t, 8, out.Data.Room.MaxMembers)
	assert.False(t, out.Data.Room.IsRevealed)
}

func TestCreateRoom_Defaults(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/rooms", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		Data struct {
			Room struct {
				MaxMembers int `json:"maxMembers"`
			} `json:"room"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 20, out.Data.Room.MaxMembers)
}

func TestCreateRoom_TitleTooLong(t *testing.T) {
	srv := newTestServer(t)

	long := make([]byte, maxTitleLength+1)
	for i := range long {
		long[i] = 'x'
	}
	payload, _ := json.Marshal(map[string]string{"title": string(long)})
	resp, err := http.Post(srv.URL+"/rooms", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out struct {
		Error types.ErrorPayload `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, types.CodeValidationError, out.Error.Code)
}

func TestGetRoom(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/rooms", "application/json", bytes.NewBufferString(`{"title":"q"}`))
	require.NoError(t, err)
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/rooms/" + created.Data.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetRoom_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/rooms/NOPE99")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var out struct {
		Success bool               `json:"success"`
		Error   types.ErrorPayload `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Success)
	assert.Equal(t, types.CodeRoomNotFound, out.Error.Code)
}

func TestGetRoomStats(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/rooms", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/rooms/" + created.Data.ID + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Data struct {
			MemberCount  int     `json:"memberCount"`
			RunningScore float64 `json:"runningScore"`
			IsRevealed   bool    `json:"isRevealed"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 0, out.Data.MemberCount)
	assert.Equal(t, float64(0), out.Data.RunningScore)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
