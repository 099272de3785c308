package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// Verifier checks Google ID tokens against the tokeninfo endpoint and
// enforces the audience and issuer claims.
type Verifier struct {
	clientID     string
	tokenInfoURL string
	client       *http.Client
}

// NewVerifier creates a Verifier for the given OAuth client ID.
func NewVerifier(clientID string) *Verifier {
	return &Verifier{
		clientID:     clientID,
		tokenInfoURL: defaultTokenInfoURL,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

// NewVerifierWithEndpoint is used by tests to point at a fake endpoint.
func NewVerifierWithEndpoint(clientID, endpoint string) *Verifier {
	v := NewVerifier(clientID)
	v.tokenInfoURL = endpoint
	return v
}

type tokenInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Aud   string `json:"aud"`
	Iss   string `json:"iss"`
}

// Verify validates the ID token and returns the stable subject ID and email.
func (v *Verifier) Verify(ctx context.Context, token string) (userID, email string, err error) {
	endpoint := v.tokenInfoURL + "?id_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("token verification request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("token rejected: status %d", resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", "", fmt.Errorf("decode token info: %w", err)
	}

	if info.Aud != v.clientID {
		return "", "", fmt.Errorf("token audience mismatch")
	}
	if info.Iss != "accounts.google.com" && info.Iss != "https://accounts.google.com" {
		return "", "", fmt.Errorf("invalid issuer")
	}
	if info.Sub == "" || info.Email == "" {
		return "", "", fmt.Errorf("token missing subject or email")
	}

	return info.Sub, info.Email, nil
}
