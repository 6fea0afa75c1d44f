// Package ceremonyhttp is a CeremonyService that talks JSON over HTTP to an
// out-of-process security key helper. The helper owns everything
// authenticator-shaped; this client only moves opaque blobs.
package ceremonyhttp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goAccounts"
)

type Client struct {
	baseURL string
	client  *http.Client
}

var _ goAccounts.CeremonyService = (*Client)(nil)

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type accountPayload struct {
	AccountID        uint64 `json:"accountId"`
	Username         string `json:"username"`
	Application      string `json:"application"`
	RelyingPartyName string `json:"relyingPartyName"`
	RelyingPartyID   string `json:"relyingPartyId"`
}

func encodeAccount(account goAccounts.AccountContext) accountPayload {
	return accountPayload{
		AccountID:        account.AccountID,
		Username:         account.Username,
		Application:      account.Application,
		RelyingPartyName: account.RelyingPartyName,
		RelyingPartyID:   account.RelyingPartyID,
	}
}

func encodeBlobs(blobs [][]byte) []string {
	encoded := make([]string, 0, len(blobs))
	for _, blob := range blobs {
		encoded = append(encoded, base64.StdEncoding.EncodeToString(blob))
	}
	return encoded
}

// post sends one helper call. Transport failures and helper 5xx replies both
// come back as ErrCeremonyUnavailable so the engine reports the second factor
// as unavailable rather than wrong.
func (c *Client) post(ctx context.Context, path string, payload, into any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ceremonyhttp: encode %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ceremonyhttp: request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", goAccounts.ErrCeremonyUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: helper returned %d", goAccounts.ErrCeremonyUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("ceremonyhttp: %s: helper returned %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("ceremonyhttp: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) PrepareChallenge(ctx context.Context, account goAccounts.AccountContext, existingCredentials [][]byte) ([]byte, error) {
	var reply struct {
		Challenge []byte `json:"challenge"`
	}
	err := c.post(ctx, "/v1/challenge/prepare", map[string]any{
		"account":     encodeAccount(account),
		"credentials": encodeBlobs(existingCredentials),
	}, &reply)
	if err != nil {
		return nil, err
	}
	return reply.Challenge, nil
}

func (c *Client) CompleteChallenge(ctx context.Context, challenge []byte, response string, expectOrigins []string) (*goAccounts.CeremonyResult, error) {
	var reply struct {
		Credential  []byte `json:"credential"`
		RotatedFrom []byte `json:"rotatedFrom"`
	}
	err := c.post(ctx, "/v1/challenge/complete", map[string]any{
		"challenge":     challenge,
		"response":      response,
		"expectOrigins": expectOrigins,
	}, &reply)
	if err != nil {
		return nil, err
	}
	return &goAccounts.CeremonyResult{Credential: reply.Credential, RotatedFrom: reply.RotatedFrom}, nil
}

func (c *Client) PrepareRegistration(ctx context.Context, account goAccounts.AccountContext, existingCredentials [][]byte) ([]byte, error) {
	var reply struct {
		Registration []byte `json:"registration"`
	}
	err := c.post(ctx, "/v1/registration/prepare", map[string]any{
		"account":     encodeAccount(account),
		"credentials": encodeBlobs(existingCredentials),
	}, &reply)
	if err != nil {
		return nil, err
	}
	return reply.Registration, nil
}

func (c *Client) CompleteRegistration(ctx context.Context, registration []byte, response string, expectOrigins []string) ([]byte, error) {
	var reply struct {
		Credential []byte `json:"credential"`
	}
	err := c.post(ctx, "/v1/registration/complete", map[string]any{
		"registration":  registration,
		"response":      response,
		"expectOrigins": expectOrigins,
	}, &reply)
	if err != nil {
		return nil, err
	}
	return reply.Credential, nil
}
