package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hutanwatch/forest-monitor/internal/classifier"
	"github.com/hutanwatch/forest-monitor/internal/db"
	"github.com/hutanwatch/forest-monitor/internal/repository"
	"github.com/hutanwatch/forest-monitor/internal/telemetry"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 100

// Store is the read-only view of the durable store the query surface needs.
type Store interface {
	ListSensorNodes(ctx context.Context) ([]db.SensorNode, error)
	LatestReadingBySensor(ctx context.Context, sensorID string) (*repository.ReadingWithNode, error)
	LatestReadings(ctx context.Context) ([]repository.ReadingWithNode, error)
	RecentReadings(ctx context.Context, limit int) ([]repository.ReadingWithNode, error)
}

// StatusSource provides the current area-wide classification from live state.
type StatusSource interface {
	AreaStatus() classifier.Assessment
}

// CommandSender forwards operator commands to the sensor fleet.
type CommandSender interface {
	SetSampleInterval(ctx context.Context, sensorID string, seconds int) error
}

// Handler serves the read-through query endpoints and the observer
// WebSocket endpoint.
type Handler struct {
	store    Store
	status   StatusSource
	commands CommandSender
	hub      ObserverHub
	logger   *zap.Logger
	wsBuffer int
}

// NewHandler creates the API handler.
func NewHandler(store Store, status StatusSource, commands CommandSender, hub ObserverHub, wsBuffer int, logger *zap.Logger) *Handler {
	return &Handler{
		store:    store,
		status:   status,
		commands: commands,
		hub:      hub,
		logger:   logger,
		wsBuffer: wsBuffer,
	}
}

// RegisterRoutes maps the URL space onto handler methods.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sensors", h.handleListSensors)
	mux.HandleFunc("GET /api/sensors/{sensor_id}/latest", h.handleLatestBySensor)
	mux.HandleFunc("GET /api/readings/latest", h.handleLatestReadings)
	mux.HandleFunc("GET /api/readings/history", h.handleHistory)
	mux.HandleFunc("GET /api/status", h.handleAreaStatus)
	mux.HandleFunc("POST /api/sensors/{sensor_id}/interval", h.handleSetInterval)
	mux.HandleFunc("GET /ws", h.handleObserver)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// sensorResponse is the registry entry as exposed over the API.
type sensorResponse struct {
	ID        string    `json:"id"`
	SensorID  string    `json:"sensor_id"`
	Location  string    `json:"location"`
	FirstSeen time.Time `json:"first_seen"`
}

// readingResponse mirrors the message shape so dashboard clients can treat
// live and historical data uniformly.
type readingResponse struct {
	SensorID   string              `json:"sensor_id"`
	Location   string              `json:"location"`
	SensorType string              `json:"sensor_type"`
	Timestamp  telemetry.Timestamp `json:"timestamp"`
	Data       telemetry.Reading   `json:"data"`
	Status     string              `json:"status"`
}

func toReadingResponse(rn repository.ReadingWithNode) readingResponse {
	return readingResponse{
		SensorID:   rn.Node.SensorID,
		Location:   rn.Node.Location,
		SensorType: rn.Reading.SensorType,
		Timestamp:  telemetry.NewTimestamp(rn.Reading.Timestamp),
		Data: telemetry.Reading{
			Temperature: rn.Reading.Temperature,
			Humidity:    rn.Reading.Humidity,
			Smoke:       rn.Reading.Smoke,
		},
		Status: rn.Reading.Status,
	}
}

func (h *Handler) handleListSensors(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.store.ListSensorNodes(r.Context())
	if err != nil {
		h.logger.Error("failed to list sensors", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	response := make([]sensorResponse, 0, len(nodes))
	for _, node := range nodes {
		response = append(response, sensorResponse{
			ID:        node.ID.String(),
			SensorID:  node.SensorID,
			Location:  node.Location,
			FirstSeen: node.FirstSeen,
		})
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleLatestBySensor(w http.ResponseWriter, r *http.Request) {
	sensorID := r.PathValue("sensor_id")

	result, err := h.store.LatestReadingBySensor(r.Context(), sensorID)
	if errors.Is(err, repository.ErrNoRows) {
		http.Error(w, "sensor not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load latest reading", zap.String("sensor_id", sensorID), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toReadingResponse(*result))
}

func (h *Handler) handleLatestReadings(w http.ResponseWriter, r *http.Request) {
	results, err := h.store.LatestReadings(r.Context())
	if err != nil {
		h.logger.Error("failed to load latest readings", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	response := make([]readingResponse, 0, len(results))
	for _, result := range results {
		response = append(response, toReadingResponse(result))
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	results, err := h.store.RecentReadings(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to load reading history", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	response := make([]readingResponse, 0, len(results))
	for _, result := range results {
		response = append(response, toReadingResponse(result))
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleAreaStatus(w http.ResponseWriter, r *http.Request) {
	assessment := h.status.AreaStatus()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"area_status": assessment.Status,
		"area_values": assessment.Values,
	})
}

type setIntervalRequest struct {
	Seconds int `json:"seconds"`
}

func (h *Handler) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	sensorID := r.PathValue("sensor_id")

	var req setIntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Seconds <= 0 {
		http.Error(w, "seconds must be a positive integer", http.StatusBadRequest)
		return
	}

	if err := h.commands.SetSampleInterval(r.Context(), sensorID, req.Seconds); err != nil {
		h.logger.Error("failed to publish interval command",
			zap.String("sensor_id", sensorID), zap.Error(err))
		http.Error(w, "failed to publish command", http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]any{"sensor_id": sensorID, "seconds": req.Seconds})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
