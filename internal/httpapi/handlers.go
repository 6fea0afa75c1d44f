// Package httpapi exposes the engine over a JSON HTTP surface. Handlers stay
// thin: decode, call the engine, translate the sentinel error to a symbolic
// code. No credential policy lives here.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MrEthical07/goAccounts"
)

type Handler struct {
	engine *goAccounts.Engine
	logger *zap.Logger
}

func NewHandler(engine *goAccounts.Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("response encode failed", zap.Error(err))
	}
}

func (h *Handler) writeData(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, response{Success: true, Data: data})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := classify(err)
	if code.status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	h.writeJSON(w, code.status, response{Success: false, Error: code.code})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		h.writeJSON(w, http.StatusBadRequest, response{Success: false, Error: "invalidInput"})
		return false
	}
	return true
}

func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, response{Success: false, Error: "invalidInput"})
		return 0, false
	}
	return id, true
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.CreateAccount)
		r.Route("/{accountID}", func(r chi.Router) {
			r.Get("/", h.GetAccount)
			r.Put("/username", h.SetUsername)
			r.Put("/email", h.SetEmail)
			r.Put("/password", h.SetPassword)
			r.Delete("/password", h.ErasePassword)
			r.Put("/disabled", h.SetDisabled)
			r.Post("/verify", h.VerifyEmail)
			r.Post("/verify/resend", h.ResendVerification)

			r.Get("/twofactor", h.TwoFactorStatus)
			r.Post("/twofactor/key", h.GenerateTwoFactorKey)
			r.Post("/twofactor/enable", h.EnableTwoFactor)
			r.Post("/twofactor/disable", h.DisableTwoFactor)
			r.Get("/twofactor/backup", h.BackupCodes)
			r.Post("/twofactor/backup/regenerate", h.RegenerateBackupCodes)

			r.Get("/reset/methods", h.ResetMethods)
			r.Post("/reset", h.ResetPassword)

			r.Get("/keys", h.SecurityKeys)
			r.Post("/keys/prepare", h.PrepareRegisterSecurityKey)
			r.Post("/keys/complete", h.CompleteRegisterSecurityKey)
			r.Delete("/keys/{keyID}", h.DeleteSecurityKey)

			r.Post("/tokens/force", h.ForceProvision)
			r.Delete("/tokens", h.RevokeAccountTokens)
		})
	})

	router.Route("/provision", func(r chi.Router) {
		r.Get("/methods", h.AvailableMethods)
		r.Post("/", h.Provision)
	})

	router.Route("/tokens", func(r chi.Router) {
		r.Post("/verify", h.VerifyToken)
		r.Delete("/", h.RevokeToken)
	})
}

type accountView struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Disabled bool   `json:"disabled"`
}

func viewAccount(account *goAccounts.Account) accountView {
	return accountView{
		ID:       account.ID,
		Username: account.Username,
		Email:    account.Email,
		Verified: account.Verified,
		Disabled: account.Disabled(),
	}
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.engine.CreateAccount(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, response{Success: true, Data: viewAccount(account)})
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	account, err := h.engine.AccountByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, viewAccount(account))
}

func (h *Handler) SetUsername(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req struct {
		Username string `json:"username"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.SetUsername(r.Context(), id, req.Username); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, nil)
}

func (h *Handler) SetEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.SetEmail(r.Context(), id, req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, nil)
}

func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.SetPassword(r.Context(), id, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, nil)
}

func (h *Handler) ErasePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	if err := h.engine.ErasePassword(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, nil)
}

func (h *Handler) SetDisabled(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req struct {
		Disabled bool `json:"disabled"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.SetAccountDisabled(r.Context(), id, req.Disabled); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, nil)
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.VerifyEmail(r.Context(), id, req.Code); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, nil)
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	if err := h.engine.ResendVerification(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, nil)
}
