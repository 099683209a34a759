package waitlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	*fixture
	router chi.Router
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := newFixture(t, nil)
	h := NewHandler(f.svc, nil)
	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	r.Route("/admin", h.RegisterAdminRoutes)
	return &handlerFixture{fixture: f, router: r}
}

func (hf *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	hf.router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerJoinAndList(t *testing.T) {
	hf := newHandlerFixture(t)

	rec := hf.do(t, http.MethodPost, "/admin/waitlist", map[string]any{
		"patient_id":   uuid.NewString(),
		"patient_name": "Dana Smith",
		"phone":        "+15550001111",
		"service_id":   "botox",
		"tier":         "platinum",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var entry Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, EntryActive, entry.Status)

	rec = hf.do(t, http.MethodGet, "/admin/waitlist?status=active", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Entries []*Entry `json:"entries"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Count)
}

func TestHandlerJoinValidation(t *testing.T) {
	hf := newHandlerFixture(t)

	rec := hf.do(t, http.MethodPost, "/admin/waitlist", map[string]any{
		"patient_name": "No Phone",
		"service_id":   "botox",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/admin/waitlist", bytes.NewBufferString("{"))
	rec = httptest.NewRecorder()
	hf.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerOfferSlot(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.join(t, "amy", TierGold)

	slotBody := map[string]any{
		"service_id":      "botox",
		"practitioner_id": "dr-lee",
		"slot_start":      hf.clock.Time.Add(24 * time.Hour).Format(time.RFC3339),
		"slot_end":        hf.clock.Time.Add(25 * time.Hour).Format(time.RFC3339),
	}
	rec := hf.do(t, http.MethodPost, "/admin/slots/offer", slotBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Offered bool   `json:"offered"`
		Offer   *Offer `json:"offer"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Offered)
	require.NotNil(t, created.Offer)
	assert.Equal(t, OfferPending, created.Offer.Status)

	// Same slot again: held, so conflict.
	rec = hf.do(t, http.MethodPost, "/admin/slots/offer", slotBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerOfferSlotNoCandidates(t *testing.T) {
	hf := newHandlerFixture(t)

	rec := hf.do(t, http.MethodPost, "/admin/slots/offer", map[string]any{
		"service_id": "botox",
		"slot_start": hf.clock.Time.Add(24 * time.Hour).Format(time.RFC3339),
		"slot_end":   hf.clock.Time.Add(25 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"offered":false`)
}

func TestHandlerOfferSlotRejectsBadWindow(t *testing.T) {
	hf := newHandlerFixture(t)

	rec := hf.do(t, http.MethodPost, "/admin/slots/offer", map[string]any{
		"service_id": "botox",
		"slot_start": hf.clock.Time.Add(25 * time.Hour).Format(time.RFC3339),
		"slot_end":   hf.clock.Time.Add(24 * time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerOfferTokenFlow(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.join(t, "amy", TierGold)

	offer, err := hf.svc.OfferSlot(context.Background(), hf.slot())
	require.NoError(t, err)

	rec := hf.do(t, http.MethodGet, "/offers/"+offer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "amy")

	// The token itself never leaks in response bodies.
	assert.NotContains(t, rec.Body.String(), offer.Token)

	rec = hf.do(t, http.MethodPost, fmt.Sprintf("/offers/%s/respond", offer.Token), map[string]any{
		"action": "accept",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result RespondResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.AppointmentID)

	// Replay is a conflict.
	rec = hf.do(t, http.MethodPost, fmt.Sprintf("/offers/%s/respond", offer.Token), map[string]any{
		"action": "accept",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerExpiredOfferIsGone(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.join(t, "amy", TierGold)

	offer, err := hf.svc.OfferSlot(context.Background(), hf.slot())
	require.NoError(t, err)

	hf.clock.Advance(31 * time.Minute)

	rec := hf.do(t, http.MethodPost, fmt.Sprintf("/offers/%s/respond", offer.Token), map[string]any{
		"action": "accept",
	})
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestHandlerUnknownToken(t *testing.T) {
	hf := newHandlerFixture(t)

	rec := hf.do(t, http.MethodGet, "/offers/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = hf.do(t, http.MethodPost, "/offers/nope/respond", map[string]any{"action": "accept"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRespondRejectsUnknownAction(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.join(t, "amy", TierGold)

	offer, err := hf.svc.OfferSlot(context.Background(), hf.slot())
	require.NoError(t, err)

	rec := hf.do(t, http.MethodPost, fmt.Sprintf("/offers/%s/respond", offer.Token), map[string]any{
		"action": "maybe",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRemoveEntry(t *testing.T) {
	hf := newHandlerFixture(t)
	entry := hf.join(t, "amy", TierGold)

	rec := hf.do(t, http.MethodDelete, "/admin/waitlist/"+entry.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = hf.do(t, http.MethodDelete, "/admin/waitlist/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = hf.do(t, http.MethodDelete, "/admin/waitlist/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExpireSweep(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.join(t, "amy", TierGold)

	_, err := hf.svc.OfferSlot(context.Background(), hf.slot())
	require.NoError(t, err)
	hf.clock.Advance(31 * time.Minute)

	rec := hf.do(t, http.MethodPost, "/admin/offers/expire", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"expired":1`)
}
