package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ITAMARV101/duowalk/internal/identity"
	"github.com/ITAMARV101/duowalk/internal/models"
	"github.com/ITAMARV101/duowalk/internal/profile"
	"github.com/ITAMARV101/duowalk/internal/repositories"
	"github.com/ITAMARV101/duowalk/internal/session"
	"github.com/ITAMARV101/duowalk/internal/utils"
)

// AuthHandler manages authentication endpoints. Registration is the only
// place a profile is created, so it also drives the claim workflow.
type AuthHandler struct {
	Accounts  *repositories.AccountRepository
	Workflow  *profile.Workflow
	Broker    *session.Broker
	Bridge    *session.Bridge
	JWTSecret string
	Logger    *zap.Logger
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	PhoneNum string `json:"phoneNum"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

// RegisterHandler creates the account row, then runs the profile setup
// workflow. A workflow failure rolls the account row back so a retry starts
// clean.
func (h *AuthHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Email == "" || req.Password == "" || req.Username == "" || req.PhoneNum == "" {
		utils.JSONError(w, http.StatusBadRequest, "missing fields")
		return
	}

	if existing, _ := h.Accounts.GetByEmail(req.Email); existing != nil {
		utils.JSONError(w, http.StatusConflict, "email taken")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	uid := uuid.NewString()
	account := &models.Account{UID: uid, Email: req.Email, PasswordHash: string(hash)}
	if err := h.Accounts.Create(account); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	if err := h.Workflow.Setup(r.Context(), uid, req.Username, req.PhoneNum); err != nil {
		if delErr := h.Accounts.Delete(uid); delErr != nil {
			h.Logger.Error("failed to roll back account after setup failure",
				zap.String("uid", uid), zap.Error(delErr))
		}
		writeWorkflowError(w, err)
		return
	}

	utils.JSON(w, http.StatusCreated, map[string]any{
		"id":       uid,
		"email":    account.Email,
		"username": req.Username,
	})
}

// LoginHandler checks credentials, issues a token and announces the session
// so step tracking and syncing start.
func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	account, err := h.Accounts.GetByEmail(req.Email)
	if err != nil {
		utils.JSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		utils.JSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	signed, err := utils.GenerateToken(account.UID, account.Email, h.JWTSecret)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}

	h.announce(r, session.Event{UID: account.UID, LoggedIn: true})
	utils.JSON(w, http.StatusOK, authResponse{Token: signed})
}

// LogoutHandler ends the session. Step tracking stops immediately; totals
// already synced stay remote.
func (h *AuthHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.announce(r, session.Event{LoggedIn: false})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) announce(r *http.Request, ev session.Event) {
	if ev.LoggedIn {
		h.Broker.Login(ev.UID)
	} else {
		h.Broker.Logout()
	}
	if h.Bridge != nil {
		if err := h.Bridge.Publish(r.Context(), ev); err != nil {
			h.Logger.Warn("failed to relay auth event", zap.Error(err))
		}
	}
}

// writeWorkflowError maps profile workflow failures onto HTTP statuses.
// Validation problems are the caller's fault, claim conflicts report which
// field lost, and anything else means the claim store is unreachable.
func writeWorkflowError(w http.ResponseWriter, err error) {
	var fieldErr *identity.FieldError
	switch {
	case errors.As(err, &fieldErr):
		utils.JSONError(w, http.StatusBadRequest, fieldErr.Error())
	case errors.Is(err, profile.ErrUsernameTaken):
		utils.JSONError(w, http.StatusConflict, "username is already taken")
	case errors.Is(err, profile.ErrPhoneTaken):
		utils.JSONError(w, http.StatusConflict, "phone number is already in use")
	case errors.Is(err, profile.ErrCommitInFlight):
		utils.JSONError(w, http.StatusConflict, "a profile update is already in progress")
	default:
		utils.JSONError(w, http.StatusBadGateway, "profile store unavailable")
	}
}
