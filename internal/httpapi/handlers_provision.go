package httpapi

import (
	"net/http"
	"strconv"

	"github.com/MrEthical07/goAccounts"
)

type provisionRequest struct {
	Method      string `json:"method"`
	Purpose     string `json:"purpose"`
	Application string `json:"application"`

	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	NewPassword string `json:"newPassword,omitempty"`
	OTPToken    string `json:"otpToken,omitempty"`

	Challenge        string   `json:"challenge,omitempty"`
	Response         string   `json:"response,omitempty"`
	ExpectOrigins    []string `json:"expectOrigins,omitempty"`
	RelyingPartyName string   `json:"relyingPartyName,omitempty"`
	RelyingPartyID   string   `json:"relyingPartyId,omitempty"`
}

func (h *Handler) Provision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if !h.decode(w, r, &req) {
		return
	}
	purpose := goAccounts.PurposeFromString(req.Purpose)

	result, err := h.engine.ProvisionToken(r.Context(), req.Method, purpose, req.Application, goAccounts.ProvisionOptions{
		Username:         req.Username,
		Password:         req.Password,
		NewPassword:      req.NewPassword,
		OTPToken:         req.OTPToken,
		Challenge:        req.Challenge,
		Response:         req.Response,
		ExpectOrigins:    req.ExpectOrigins,
		RelyingPartyName: req.RelyingPartyName,
		RelyingPartyID:   req.RelyingPartyID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if result.Token != "" {
		h.writeData(w, map[string]string{"token": result.Token})
		return
	}
	h.writeData(w, map[string]any{"intermediate": result.Intermediate})
}

func (h *Handler) AvailableMethods(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	purpose := goAccounts.PurposeFromString(query.Get("purpose"))

	methods, err := h.engine.AvailableMethodsForUsername(r.Context(),
		query.Get("username"), query.Get("application"), purpose)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, map[string][]string{"methods": methods})
}

func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	accountID, purpose, err := h.engine.VerifyToken(r.Context(), req.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, map[string]string{
		"accountId": strconv.FormatUint(accountID, 10),
		"purpose":   purpose.String(),
	})
}

func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.RevokeToken(r.Context(), req.Token); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, nil)
}

func (h *Handler) RevokeAccountTokens(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	if err := h.engine.RevokeAccountTokens(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, nil)
}

// ForceProvision mints a login token without any credential check. The router
// must keep this behind operator authentication.
func (h *Handler) ForceProvision(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req struct {
		Application string `json:"application"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.engine.ForceProvisionToken(r.Context(), id, req.Application)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, map[string]string{"token": token})
}
