package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"tush00nka/phonechat/internal/pkg/httputils"
	"tush00nka/phonechat/internal/ws"
)

type PongResponse struct {
	Message string `json:"message"`
}

// Ping
// @Summary Ping the server
// @Description Ping the server
// @Tags system
// @Produce json
// @Success 200 {object} PongResponse
// @Router /ping [get]
func Ping(w http.ResponseWriter, r *http.Request) {
	httputils.ResponseJSON(w, 200, PongResponse{Message: "Pong"})
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type storageChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	rdb     *redis.Client
	storage storageChecker
	hub     *ws.Hub
}

// NewHealthHandler builds /health. db and rdb may be nil for in-memory and
// Redis-less setups.
func NewHealthHandler(db Pinger, rdb *redis.Client, storage storageChecker, hub *ws.Hub) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb, storage: storage, hub: hub}
}

type HealthResponse struct {
	Status   string       `json:"status"`
	Database string       `json:"database"`
	Redis    string       `json:"redis"`
	Storage  string       `json:"storage"`
	Realtime *ws.HubStats `json:"realtime,omitempty"`
}

// Health
// @Summary Health check
// @Description Reports the state of the database, Redis and media storage
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "memory", Redis: "disabled", Storage: "ok"}
	status := http.StatusOK

	if h.db != nil {
		resp.Database = "ok"
		if err := h.db.PingContext(ctx); err != nil {
			resp.Database = "unreachable"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	if h.rdb != nil {
		resp.Redis = "ok"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			resp.Redis = "unreachable"
			if status == http.StatusOK {
				resp.Status = "degraded"
			}
		}
	}

	if h.storage != nil {
		if err := h.storage.HealthCheck(ctx); err != nil {
			resp.Storage = "unreachable"
			if status == http.StatusOK {
				resp.Status = "degraded"
			}
		}
	}

	if h.hub != nil {
		stats := h.hub.Stats()
		resp.Realtime = &stats
	}

	httputils.ResponseJSON(w, status, resp)
}
