package httpapi

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) TwoFactorStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	status, err := h.engine.TwoFactorStatus(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, map[string]any{
		"enabled":   status.Enabled,
		"secretKey": status.SecretKey,
	})
}

func (h *Handler) GenerateTwoFactorKey(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	secret, err := h.engine.GenerateTwoFactorKey(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, map[string]string{"secretKey": secret})
}

func (h *Handler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req struct {
		OTPToken string `json:"otpToken"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	backupCodes, err := h.engine.EnableTwoFactor(r.Context(), id, req.OTPToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, map[string][]string{"backupCodes": backupCodes})
}

func (h *Handler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	if err := h.engine.DisableTwoFactor(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, nil)
}

func (h *Handler) BackupCodes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	codes, err := h.engine.BackupCodes(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	type codeView struct {
		Code string `json:"code"`
		Used bool   `json:"used"`
	}
	views := make([]codeView, 0, len(codes))
	for _, code := range codes {
		views = append(views, codeView{Code: code.Code, Used: code.Used})
	}
	h.writeData(w, map[string]any{"backupCodes": views})
}

func (h *Handler) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	backupCodes, err := h.engine.RegenerateBackupCodes(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, map[string][]string{"backupCodes": backupCodes})
}

func (h *Handler) ResetMethods(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	methods, err := h.engine.ResetMethods(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, map[string]any{"methods": methods})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req struct {
		Method    string            `json:"method"`
		Challenge map[string]string `json:"challenge"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.ResetPassword(r.Context(), id, req.Method, req.Challenge); err != nil {
		h.writeError(w, r, err)
		return
	}
	// Deliberately identical to the success shape for a wrong challenge:
	// the reply confirms nothing about the account.
	h.writeData(w, nil)
}

func (h *Handler) SecurityKeys(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	keys, err := h.engine.SecurityKeys(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	type keyView struct {
		ID          uint64 `json:"id"`
		Name        string `json:"name"`
		Application string `json:"application"`
	}
	views := make([]keyView, 0, len(keys))
	for _, key := range keys {
		views = append(views, keyView{ID: key.ID, Name: key.Name, Application: key.Application})
	}
	h.writeData(w, map[string]any{"keys": views})
}

func (h *Handler) PrepareRegisterSecurityKey(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req struct {
		Application      string `json:"application"`
		RelyingPartyName string `json:"relyingPartyName"`
		RelyingPartyID   string `json:"relyingPartyId"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	prepared, err := h.engine.PrepareRegisterSecurityKey(r.Context(), id,
		req.Application, req.RelyingPartyName, req.RelyingPartyID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, map[string]string{
		"challenge": prepared.Challenge,
		"options":   base64.StdEncoding.EncodeToString(prepared.Options),
	})
}

func (h *Handler) CompleteRegisterSecurityKey(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req struct {
		Challenge     string   `json:"challenge"`
		Response      string   `json:"response"`
		Name          string   `json:"name"`
		ExpectOrigins []string `json:"expectOrigins"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	err := h.engine.CompleteRegisterSecurityKey(r.Context(), id,
		req.Challenge, req.Response, req.Name, req.ExpectOrigins)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, nil)
}

func (h *Handler) DeleteSecurityKey(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	keyID, err := strconv.ParseUint(chi.URLParam(r, "keyID"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, response{Success: false, Error: "invalidInput"})
		return
	}
	if err := h.engine.DeleteSecurityKey(r.Context(), id, keyID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, nil)
}
