//nolint:funlen,errcheck // ok for tests
package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/lanerace-service-go/pkg/config"
)

// newProvider serves a minimal OIDC provider supporting the device flow.
// idToken is called with the issuer url and returns the id_token to hand out.
func newProvider(t *testing.T, key *rsa.PrivateKey, idToken func(issuer string) string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"issuer":                                srv.URL,
			"authorization_endpoint":                srv.URL + "/auth",
			"token_endpoint":                        srv.URL + "/token",
			"device_authorization_endpoint":         srv.URL + "/device",
			"jwks_uri":                              srv.URL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, jose.JSONWebKeySet{Keys: []jose.JSONWebKey{
			{Key: &key.PublicKey, KeyID: "k1", Algorithm: string(jose.RS256), Use: "sig"},
		}})
	})
	mux.HandleFunc("/device", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"device_code":      "dev-1",
			"user_code":        "ABCD-EFGH",
			"verification_uri": srv.URL + "/activate",
			"expires_in":       60,
			"interval":         1,
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"access_token": "at-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if raw := idToken(srv.URL); raw != "" {
			body["id_token"] = raw
		}
		writeJSON(w, body)
	})
	return srv
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims map[string]any) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", "k1"))
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	jws, err := signer.Sign(payload)
	require.NoError(t, err)
	raw, err := jws.CompactSerialize()
	require.NoError(t, err)
	return raw
}

func TestLogin(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var issued string
	srv := newProvider(t, key, func(issuer string) string {
		issued = signToken(t, key, map[string]any{
			"iss": issuer,
			"sub": "p7",
			"aud": "lanerace",
			"iat": time.Now().Unix(),
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		return issued
	})
	config.OIDCIssuerURL = srv.URL
	config.OIDCClientID = "lanerace"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var out, info bytes.Buffer
	require.NoError(t, login(ctx, &out, &info))

	assert.Equal(t, issued, strings.TrimSpace(out.String()))
	assert.Contains(t, info.String(), "ABCD-EFGH")
	assert.Contains(t, info.String(), "Logged in as player p7")
}

func TestLogin_NoIDToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := newProvider(t, key, func(string) string { return "" })
	config.OIDCIssuerURL = srv.URL
	config.OIDCClientID = "lanerace"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var out, info bytes.Buffer
	assert.ErrorIs(t, login(ctx, &out, &info), errNoIDToken)
	assert.Empty(t, out.String())
}

func TestLogin_IssuerRequired(t *testing.T) {
	config.OIDCIssuerURL = ""
	var out, info bytes.Buffer
	assert.Error(t, login(context.Background(), &out, &info))
}
