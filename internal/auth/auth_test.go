package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeTokenInfo(t *testing.T, status int, info map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(info)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	srv := fakeTokenInfo(t, http.StatusOK, map[string]string{
		"sub":   "user-123",
		"email": "user@example.com",
		"aud":   "client-id",
		"iss":   "https://accounts.google.com",
	})

	v := NewVerifierWithEndpoint("client-id", srv.URL)
	userID, email, err := v.Verify(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
	assert.Equal(t, "user@example.com", email)
}

func TestVerifyRejects(t *testing.T) {
	valid := map[string]string{
		"sub": "user-123", "email": "user@example.com",
		"aud": "client-id", "iss": "accounts.google.com",
	}

	tests := []struct {
		name   string
		status int
		mutate func(map[string]string)
	}{
		{"rejected token", http.StatusBadRequest, nil},
		{"wrong audience", http.StatusOK, func(m map[string]string) { m["aud"] = "other-client" }},
		{"bad issuer", http.StatusOK, func(m map[string]string) { m["iss"] = "evil.example.com" }},
		{"missing subject", http.StatusOK, func(m map[string]string) { m["sub"] = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := make(map[string]string, len(valid))
			for k, v := range valid {
				info[k] = v
			}
			if tt.mutate != nil {
				tt.mutate(info)
			}
			srv := fakeTokenInfo(t, tt.status, info)

			v := NewVerifierWithEndpoint("client-id", srv.URL)
			_, _, err := v.Verify(context.Background(), "token")
			assert.Error(t, err)
		})
	}
}

func TestSessionManager(t *testing.T) {
	m := NewSessionManager()

	session := m.Create("user-1", "a@example.com")
	require.NotEmpty(t, session.Token)

	got := m.Get(session.Token)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)

	assert.True(t, m.SetOpenAIKey(session.Token, "sk-test"))
	assert.Equal(t, "sk-test", m.Get(session.Token).OpenAIKey)
	assert.False(t, m.SetOpenAIKey("unknown-token", "sk-test"))

	m.Delete(session.Token)
	assert.Nil(t, m.Get(session.Token))

	assert.Nil(t, m.Get("never-issued"))
}
