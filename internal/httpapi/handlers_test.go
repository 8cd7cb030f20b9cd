package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanzleiwerk/aktenregister/internal/casefile"
	"github.com/kanzleiwerk/aktenregister/internal/settings"
	"github.com/kanzleiwerk/aktenregister/internal/store"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv := NewServer(st, casefile.NewRepository(st, nil), settings.NewStore(st, nil), nil)
	return srv.Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createInsuranceCase(t *testing.T, router *gin.Engine, externalRef string) casefile.Case {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/cases", casefile.CreateInput{
		Family:      "insurance",
		ClientName:  "Mustermann, Erika",
		ExternalRef: externalRef,
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body)

	var c casefile.Case
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	return c
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateCase_Created(t *testing.T) {
	router := newTestRouter(t)

	c := createInsuranceCase(t, router, "DJ00123456")
	assert.Equal(t, "IY000001", c.Reference)
	assert.Equal(t, int64(1), c.Version)
	assert.Equal(t, casefile.StateOpen, c.State)
}

func TestCreateCase_ValidationIs400(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/cases", casefile.CreateInput{
		Family: "insurance",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "VALIDATION", payload["kind"])
	assert.NotEmpty(t, payload["field"])
}

func TestCreateCase_DuplicateIs409(t *testing.T) {
	router := newTestRouter(t)
	createInsuranceCase(t, router, "DJ00123456")

	w := doJSON(t, router, http.MethodPost, "/api/cases", casefile.CreateInput{
		Family:      "insurance",
		ClientName:  "Zweiter, Klient",
		ExternalRef: "DJ00123456",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	g := goldie.New(t)
	g.Assert(t, "duplicate_ref", w.Body.Bytes())
}

func TestUpdateCase_VersionMismatchIs409(t *testing.T) {
	router := newTestRouter(t)
	c := createInsuranceCase(t, router, "DJ00123456")

	expected := int64(5)
	w := doJSON(t, router, http.MethodPatch, "/api/cases/"+c.ID, updateRequest{
		UpdateInput:     casefile.UpdateInput{Notes: strPtr("stale edit")},
		ExpectedVersion: &expected,
	})
	require.Equal(t, http.StatusConflict, w.Code)

	g := goldie.New(t)
	g.Assert(t, "version_mismatch", w.Body.Bytes())
}

func TestUpdateCase_HappyPath(t *testing.T) {
	router := newTestRouter(t)
	c := createInsuranceCase(t, router, "DJ00123456")

	expected := int64(1)
	w := doJSON(t, router, http.MethodPatch, "/api/cases/"+c.ID, updateRequest{
		UpdateInput:     casefile.UpdateInput{Notes: strPtr("spoke to the insurer")},
		ExpectedVersion: &expected,
	})
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body)

	var updated casefile.Case
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "spoke to the insurer", updated.Notes)
}

func TestGetCase_NotFoundIs404(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/api/cases/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSettings_Roundtrip(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var before map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &before))
	assert.Contains(t, before, "fee_base_rate")

	w = doJSON(t, router, http.MethodPut, "/api/settings", map[string]string{
		"fee_base_rate": "240.00",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var after map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Equal(t, "240.00", after["fee_base_rate"])
}

func TestSettings_InvalidBatchIs400AndUnapplied(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var before map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &before))

	w = doJSON(t, router, http.MethodPut, "/api/settings", map[string]string{
		"fee_base_rate": "250.00",
		"office_email":  "not-an-address",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var after map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Equal(t, before, after)
}

func TestAdmin_Checkpoint(t *testing.T) {
	router := newTestRouter(t)
	createInsuranceCase(t, router, "DJ00123456")

	w := doJSON(t, router, http.MethodPost, "/api/admin/checkpoint", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.True(t, payload["flushed"])
}

func TestAdmin_Integrity(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/admin/integrity", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.True(t, payload["ok"])
}

func strPtr(s string) *string { return &s }
