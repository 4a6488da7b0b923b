package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"rift-tracker/internal/api"
	"rift-tracker/internal/constants"
	"rift-tracker/internal/queue"
	"rift-tracker/internal/repository"
	"rift-tracker/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

// Server is the HTTP command surface. It only talks to the synchronous
// services; the pipeline behind the queue is fire-and-forget from here.
type Server struct {
	playerSvc      *service.PlayerService
	dispatchSvc    *service.DispatchService
	maintenanceSvc *service.MaintenanceService
	mongoClient    *mongo.Client
	queue          *queue.Queue
	logger         zerolog.Logger
}

func New(playerSvc *service.PlayerService, dispatchSvc *service.DispatchService, maintenanceSvc *service.MaintenanceService, mongoClient *mongo.Client, q *queue.Queue, logger zerolog.Logger) *Server {
	return &Server{
		playerSvc:      playerSvc,
		dispatchSvc:    dispatchSvc,
		maintenanceSvc: maintenanceSvc,
		mongoClient:    mongoClient,
		queue:          q,
		logger:         logger,
	}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /players", s.handleAddPlayer)
	mux.HandleFunc("GET /players", s.handleListPlayers)
	mux.HandleFunc("DELETE /players/{name}", s.handleDeletePlayer)
	mux.HandleFunc("GET /refresh", s.handleRefresh)
	mux.HandleFunc("GET /stats/{name}", s.handleStats)
	mux.HandleFunc("DELETE /maintenance/cleanup", s.handleCleanup)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

type addPlayerRequest struct {
	NameTag string `json:"name_tag"`
}

func (s *Server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.RequestTimeout)
	defer cancel()

	var req addPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	player, err := s.playerSvc.AddPlayer(ctx, req.NameTag)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"message":      fmt.Sprintf("%s added, extraction queued", player.SummonerName),
		"correct_name": player.SummonerName,
	})
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	names, err := s.playerSvc.ListNames(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleDeletePlayer(w http.ResponseWriter, r *http.Request) {
	name, err := s.playerSvc.DeletePlayer(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("deleted %s and all data", name),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	count, err := s.dispatchSvc.DispatchAll(r.Context(), constants.RefreshLimit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"batches": count,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.playerSvc.Stats(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	report, err := s.maintenanceSvc.Cleanup(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.DatabaseTimeout)
	defer cancel()

	if err := s.mongoClient.Ping(ctx, nil); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("database unreachable: %w", err))
		return
	}
	if _, err := s.queue.Depth(ctx); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("queue unreachable: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps the add/delete/stats error taxonomy onto HTTP statuses.
// Only the synchronous paths surface errors at all.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidNameTag):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrPlayerNotFound), errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, api.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn().Err(err).Int("status", status).Msg("request failed")
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
