package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/MrEthical07/goAccounts"
	"github.com/MrEthical07/goAccounts/internal/memstore"
)

// newTestServer runs the full router against an in-memory store, so these
// tests cover routing, decoding, and error translation end to end.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	engine, err := goAccounts.New().
		WithConfig(goAccounts.Config{
			Password: goAccounts.PasswordConfig{Iterations: 64},
		}).
		WithStore(memstore.New()).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	server := httptest.NewServer(NewRouter(NewHandler(engine, zap.NewNop()), zap.NewNop()))
	t.Cleanup(server.Close)
	return server
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func doJSON(t *testing.T, method, url string, body any) (int, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader([]byte("{}"))
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, decoded
}

func createAccount(t *testing.T, server *httptest.Server, username, password string) uint64 {
	t.Helper()

	status, resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/accounts", map[string]string{
		"username": username,
		"password": password,
		"email":    username + "@example.com",
	})
	if status != http.StatusCreated || !resp.Success {
		t.Fatalf("create account: status=%d resp=%+v", status, resp)
	}

	var view struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("decode account view: %v", err)
	}
	return view.ID
}

func TestCreateAndGetAccount(t *testing.T) {
	server := newTestServer(t)
	id := createAccount(t, server, "alice", "correct horse battery")

	status, resp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/accounts/%d", server.URL, id), nil)
	if status != http.StatusOK {
		t.Fatalf("get account status = %d", status)
	}

	var view struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Verified bool   `json:"verified"`
		Disabled bool   `json:"disabled"`
	}
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Username != "alice" || view.Email != "alice@example.com" || view.Verified || view.Disabled {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestGetUnknownAccount(t *testing.T) {
	server := newTestServer(t)

	status, resp := doJSON(t, http.MethodGet, server.URL+"/api/v1/accounts/9999", nil)
	if status != http.StatusNotFound || resp.Error != "noAccount" {
		t.Fatalf("status=%d error=%q", status, resp.Error)
	}
}

func TestCreateAccountRejectsBadInput(t *testing.T) {
	server := newTestServer(t)

	status, resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/accounts", map[string]string{
		"username": "has spaces in it",
		"password": "correct horse battery",
		"email":    "x@example.com",
	})
	if status != http.StatusBadRequest || resp.Error != "invalidInput" {
		t.Fatalf("status=%d error=%q", status, resp.Error)
	}

	status, resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/accounts", map[string]string{
		"username": "alice",
		"password": "short",
		"email":    "alice@example.com",
	})
	if status != http.StatusBadRequest || resp.Error != "invalidInput" {
		t.Fatalf("short password: status=%d error=%q", status, resp.Error)
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "alice", "correct horse battery")

	status, resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/accounts", map[string]string{
		"username": "alice",
		"password": "correct horse battery",
		"email":    "again@example.com",
	})
	if status != http.StatusConflict || resp.Error != "accountExists" {
		t.Fatalf("status=%d error=%q", status, resp.Error)
	}
}

func TestProvisionAndVerifyToken(t *testing.T) {
	server := newTestServer(t)
	id := createAccount(t, server, "alice", "correct horse battery")

	status, resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/provision", map[string]string{
		"method":      "password",
		"purpose":     "login",
		"application": "desktop",
		"username":    "alice",
		"password":    "correct horse battery",
	})
	if status != http.StatusOK {
		t.Fatalf("provision status = %d, error = %q", status, resp.Error)
	}

	var minted struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &minted); err != nil || minted.Token == "" {
		t.Fatalf("token missing: %s, %v", resp.Data, err)
	}

	status, resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/tokens/verify", map[string]string{
		"token": minted.Token,
	})
	if status != http.StatusOK {
		t.Fatalf("verify status = %d", status)
	}
	var verified struct {
		AccountID string `json:"accountId"`
		Purpose   string `json:"purpose"`
	}
	if err := json.Unmarshal(resp.Data, &verified); err != nil {
		t.Fatalf("decode verify: %v", err)
	}
	if verified.AccountID != fmt.Sprint(id) || verified.Purpose != "login" {
		t.Fatalf("verify = %+v", verified)
	}
}

func TestProvisionWrongPassword(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "alice", "correct horse battery")

	status, resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/provision", map[string]string{
		"method":      "password",
		"purpose":     "login",
		"application": "desktop",
		"username":    "alice",
		"password":    "wrong",
	})
	if status != http.StatusUnauthorized || resp.Error != "incorrectPassword" {
		t.Fatalf("status=%d error=%q", status, resp.Error)
	}
}

func TestProvisionUnknownPurpose(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "alice", "correct horse battery")

	status, resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/provision", map[string]string{
		"method":      "password",
		"purpose":     "janitor",
		"application": "desktop",
		"username":    "alice",
		"password":    "correct horse battery",
	})
	if status != http.StatusBadRequest || resp.Error != "invalidInput" {
		t.Fatalf("status=%d error=%q", status, resp.Error)
	}
}

func TestRevokeTokenOverHTTP(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "alice", "correct horse battery")

	_, resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/provision", map[string]string{
		"method":      "password",
		"purpose":     "login",
		"application": "desktop",
		"username":    "alice",
		"password":    "correct horse battery",
	})
	var minted struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &minted); err != nil {
		t.Fatalf("decode token: %v", err)
	}

	status, _ := doJSON(t, http.MethodDelete, server.URL+"/api/v1/tokens", map[string]string{
		"token": minted.Token,
	})
	if status != http.StatusOK {
		t.Fatalf("revoke status = %d", status)
	}

	status, resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/tokens/verify", map[string]string{
		"token": minted.Token,
	})
	if status != http.StatusNotFound || resp.Error != "noAccount" {
		t.Fatalf("revoked token: status=%d error=%q", status, resp.Error)
	}
}

func TestDisabledAccountCannotProvision(t *testing.T) {
	server := newTestServer(t)
	id := createAccount(t, server, "alice", "correct horse battery")

	status, _ := doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/v1/accounts/%d/disabled", server.URL, id), map[string]bool{
		"disabled": true,
	})
	if status != http.StatusOK {
		t.Fatalf("disable status = %d", status)
	}

	status, resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/provision", map[string]string{
		"method":      "password",
		"purpose":     "login",
		"application": "desktop",
		"username":    "alice",
		"password":    "correct horse battery",
	})
	if status != http.StatusForbidden || resp.Error != "disabledAccount" {
		t.Fatalf("status=%d error=%q", status, resp.Error)
	}
}

func TestAvailableMethodsEndpoint(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "alice", "correct horse battery")

	status, resp := doJSON(t, http.MethodGet,
		server.URL+"/api/v1/provision/methods?username=alice&application=desktop&purpose=login", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var body struct {
		Methods []string `json:"methods"`
	}
	if err := json.Unmarshal(resp.Data, &body); err != nil {
		t.Fatalf("decode methods: %v", err)
	}
	if len(body.Methods) != 1 || body.Methods[0] != "password" {
		t.Fatalf("methods = %v", body.Methods)
	}
}

func TestMalformedBodyAndRouting(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/v1/accounts", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d", resp.StatusCode)
	}

	status, body := doJSON(t, http.MethodGet, server.URL+"/api/v1/nope", nil)
	if status != http.StatusNotFound || body.Error != "notFound" {
		t.Fatalf("unknown route: status=%d error=%q", status, body.Error)
	}

	status, body = doJSON(t, http.MethodDelete, server.URL+"/api/v1/accounts", nil)
	if status != http.StatusMethodNotAllowed || body.Error != "methodNotAllowed" {
		t.Fatalf("bad method: status=%d error=%q", status, body.Error)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}
