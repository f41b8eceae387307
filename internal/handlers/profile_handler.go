package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ITAMARV101/duowalk/internal/profile"
	"github.com/ITAMARV101/duowalk/internal/repositories"
	"github.com/ITAMARV101/duowalk/internal/session"
	"github.com/ITAMARV101/duowalk/internal/utils"
)

// ProfileHandler serves the authenticated user's own profile and runs
// identity edits through the claim workflow.
type ProfileHandler struct {
	Accounts  *repositories.AccountRepository
	Profiles  *repositories.ProfileRepository
	Workflow  *profile.Workflow
	Broker    *session.Broker
	Bridge    *session.Bridge
	JWTSecret string
	Logger    *zap.Logger
}

type updateProfileRequest struct {
	Username string `json:"username"`
	PhoneNum string `json:"phoneNum"`
}

func (h *ProfileHandler) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, err := utils.VerifyToken(r, h.JWTSecret)
	if err != nil {
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
		return "", false
	}
	uid, err := utils.GetUserIDFromClaims(claims)
	if err != nil {
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
		return "", false
	}
	return uid, true
}

// GetProfileHandler returns the caller's private profile record.
func (h *ProfileHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	record, err := h.Profiles.GetPrivate(r.Context(), uid)
	if err != nil {
		if errors.Is(err, repositories.ErrProfileNotFound) {
			utils.JSONError(w, http.StatusNotFound, "profile not found")
		} else {
			utils.JSONError(w, http.StatusBadGateway, "profile store unavailable")
		}
		return
	}

	utils.JSON(w, http.StatusOK, record)
}

// UpdateProfileHandler changes the caller's username and phone number. Both
// fields are required; sending the current values back unchanged is a no-op.
func (h *ProfileHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Username == "" || req.PhoneNum == "" {
		utils.JSONError(w, http.StatusBadRequest, "missing fields")
		return
	}

	if err := h.Workflow.Edit(r.Context(), uid, req.Username, req.PhoneNum); err != nil {
		if errors.Is(err, repositories.ErrProfileNotFound) {
			utils.JSONError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeWorkflowError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeleteAccountHandler removes the profile, frees its claims and drops the
// account row, then ends the session.
func (h *ProfileHandler) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	if err := h.Workflow.Delete(r.Context(), uid); err != nil {
		writeWorkflowError(w, err)
		return
	}
	if err := h.Accounts.Delete(uid); err != nil && !errors.Is(err, repositories.ErrAccountNotFound) {
		utils.JSONError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}

	h.Broker.Logout()
	if h.Bridge != nil {
		if err := h.Bridge.Publish(r.Context(), session.Event{LoggedIn: false}); err != nil {
			h.Logger.Warn("failed to relay auth event", zap.Error(err))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
