package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiancehq/medspa-waitlist/internal/waitlist"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := waitlist.NewService(waitlist.ServiceDeps{
		Store: waitlist.NewMemoryStore(),
		Guard: waitlist.NewMemoryGuard(),
	}, waitlist.Config{})
	return New(&Config{
		WaitlistHandler: waitlist.NewHandler(svc, nil),
		AdminAuthSecret: "test-secret",
	})
}

func adminToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestAdminRoutesRequireJWT(t *testing.T) {
	h := newTestRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/waitlist", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJoinWaitlist(t *testing.T) {
	h := newTestRouter(t)

	body, _ := json.Marshal(map[string]any{
		"patient_id":   "c7b1f0a2-9d34-4f7e-8e61-2a5b6c9d0e11",
		"patient_name": "Dana Smith",
		"phone":        "+15550001111",
		"service_id":   "facial",
		"tier":         "gold",
	})
	req := httptest.NewRequest(http.MethodPost, "/admin/waitlist", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "test-secret"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var entry waitlist.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, waitlist.EntryActive, entry.Status)
}

func TestPublicOfferLookupUnknownToken(t *testing.T) {
	h := newTestRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/offers/does-not-exist", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
