package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ITAMARV101/duowalk/internal/repositories"
	"github.com/ITAMARV101/duowalk/internal/steps"
	"github.com/ITAMARV101/duowalk/internal/utils"
)

// StepsHandler exposes the local step counters and accepts raw sensor
// readings. Readings go through the tracker feed, not straight into the
// accumulator, so the login gate applies to them the same as to the sensor.
type StepsHandler struct {
	Acc       *steps.Accumulator
	Readings  chan<- float64
	Profiles  *repositories.ProfileRepository
	JWTSecret string
	Logger    *zap.Logger
}

type readingRequest struct {
	Reading float64 `json:"reading"`
}

func (h *StepsHandler) authenticate(w http.ResponseWriter, r *http.Request) bool {
	claims, err := utils.VerifyToken(r, h.JWTSecret)
	if err != nil {
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
		return false
	}
	if _, err := utils.GetUserIDFromClaims(claims); err != nil {
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
		return false
	}
	return true
}

// GetStepsHandler returns the live local counters. These may run ahead of
// the store by up to one sync interval.
func (h *StepsHandler) GetStepsHandler(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(w, r) {
		return
	}
	utils.JSON(w, http.StatusOK, h.Acc.Snapshot())
}

// PostReadingHandler queues one cumulative sensor reading.
func (h *StepsHandler) PostReadingHandler(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(w, r) {
		return
	}

	var req readingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Reading < 0 {
		utils.JSONError(w, http.StatusBadRequest, "reading must be non-negative")
		return
	}

	select {
	case h.Readings <- req.Reading:
		w.WriteHeader(http.StatusAccepted)
	default:
		utils.JSONError(w, http.StatusServiceUnavailable, "reading queue full")
	}
}

// LeaderboardHandler lists public profiles ranked by lifetime steps.
func (h *StepsHandler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	board, err := h.Profiles.Leaderboard(r.Context())
	if err != nil {
		utils.JSONError(w, http.StatusBadGateway, "profile store unavailable")
		return
	}
	utils.JSON(w, http.StatusOK, board)
}
