package google

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/labaccess-backend/pkg/config"
)

func serviceAccountJSON(t *testing.T, tokenURL string) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	raw, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "labaccess-test",
		"private_key_id": "kid-1",
		"private_key":    string(pemKey),
		"client_email":   "pipeline@labaccess-test.iam.gserviceaccount.com",
		"client_id":      "1234",
		"token_uri":      tokenURL,
	})
	require.NoError(t, err)
	return string(raw)
}

type tokenServer struct {
	mu         sync.Mutex
	assertions []string
}

func (s *tokenServer) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(body))
	s.mu.Lock()
	s.assertions = append(s.assertions, form.Get("assertion"))
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"Bearer","expires_in":3600}`))
}

func decodeClaims(t *testing.T, assertion string) map[string]any {
	t.Helper()
	parts := strings.Split(assertion, ".")
	require.Len(t, parts, 3)
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	claims := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &claims))
	return claims
}

func TestHTTPClientImpersonatesSubject(t *testing.T) {
	ts := &tokenServer{}
	tokenSrv := httptest.NewServer(http.HandlerFunc(ts.handler))
	defer tokenSrv.Close()

	var authHeader string
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer apiSrv.Close()

	gcp := config.GCPConfig{CredentialsJSON: serviceAccountJSON(t, tokenSrv.URL)}
	client, err := HTTPClient(context.Background(), gcp, "labmanager@utexas.edu", ScopeGmailSend)
	require.NoError(t, err)

	resp, err := client.Get(apiSrv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "Bearer tok-123", authHeader)
	require.Len(t, ts.assertions, 1)
	claims := decodeClaims(t, ts.assertions[0])
	assert.Equal(t, "labmanager@utexas.edu", claims["sub"])
	assert.Equal(t, ScopeGmailSend, claims["scope"])
}

func TestCredentialsJSONPrefersInline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o600))

	data, err := CredentialsJSON(config.GCPConfig{CredentialsJSON: `{"from":"inline"}`, ApplicationCredentials: path})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"inline"}`, string(data))

	data, err = CredentialsJSON(config.GCPConfig{ApplicationCredentials: path})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"file"}`, string(data))

	data, err = CredentialsJSON(config.GCPConfig{})
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestCredentialsJSONMissingFile(t *testing.T) {
	_, err := CredentialsJSON(config.GCPConfig{ApplicationCredentials: filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)
}

func TestTokenSourceRejectsImpersonationWithoutKey(t *testing.T) {
	_, err := TokenSource(context.Background(), config.GCPConfig{}, "someone@utexas.edu", ScopeSpreadsheets)
	require.ErrorIs(t, err, errImpersonationNeedsKey)
}

func TestTokenSourceRejectsMalformedKey(t *testing.T) {
	_, err := TokenSource(context.Background(), config.GCPConfig{CredentialsJSON: `{"type":"service_account"`}, "someone@utexas.edu", ScopeSpreadsheets)
	require.Error(t, err)
}

func TestClientOptionsAddsQuotaProject(t *testing.T) {
	gcp := config.GCPConfig{
		ProjectID:       "labaccess-test",
		CredentialsJSON: serviceAccountJSON(t, "https://oauth2.example.com/token"),
	}
	opts, err := ClientOptions(context.Background(), gcp, "", ScopeDrive)
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}
