package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/introhq/introhq/internal/importer"
	"github.com/introhq/introhq/internal/store"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeImporter struct {
	summary   *importer.Summary
	err       error
	gotUser   string
	gotPolicy importer.ConflictPolicy
}

func (f *fakeImporter) Run(_ context.Context, userID string, _ io.Reader, policy importer.ConflictPolicy) (*importer.Summary, error) {
	f.gotUser = userID
	f.gotPolicy = policy
	return f.summary, f.err
}

type fakeSweeps struct {
	users []string
	err   error
}

func (f *fakeSweeps) EnqueueSweep(userID string) error {
	f.users = append(f.users, userID)
	return f.err
}

type fakeGeocode struct {
	pending  int
	progress *store.GeocodeProgress
}

func (f *fakeGeocode) CountContactsNeedingGeocode(context.Context, string) (int, error) {
	return f.pending, nil
}

func (f *fakeGeocode) GeocodeProgress(context.Context, string) (*store.GeocodeProgress, error) {
	return f.progress, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestRouter(t *testing.T, h *Handlers) http.Handler {
	t.Helper()
	return NewRouter(h, []string{"*"})
}

func csvUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// ---------------------------------------------------------------------------
// ImportCSV
// ---------------------------------------------------------------------------

func TestImportCSV(t *testing.T) {
	imp := &fakeImporter{summary: &importer.Summary{TotalRows: 3, Created: 2, Skipped: 1}}
	router := newTestRouter(t, NewHandlers(imp, &fakeSweeps{}, nil, nil, &fakeGeocode{}))

	buf, contentType := csvUpload(t, "contacts.csv", "firstname,lastname\nAda,Lovelace\n")
	req := httptest.NewRequest(http.MethodPost, "/contacts/import-csv?policy=update", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "u-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Import completed", body["message"])
	assert.EqualValues(t, 3, body["totalRecords"])

	assert.Equal(t, "u-1", imp.gotUser)
	assert.Equal(t, importer.PolicyUpdate, imp.gotPolicy)
}

func TestImportCSV_MissingUser(t *testing.T) {
	router := newTestRouter(t, NewHandlers(&fakeImporter{}, &fakeSweeps{}, nil, nil, &fakeGeocode{}))

	buf, contentType := csvUpload(t, "contacts.csv", "firstname\n")
	req := httptest.NewRequest(http.MethodPost, "/contacts/import-csv", buf)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Missing user identity", body["message"])
}

func TestImportCSV_RejectsUnknownExtension(t *testing.T) {
	router := newTestRouter(t, NewHandlers(&fakeImporter{}, &fakeSweeps{}, nil, nil, &fakeGeocode{}))

	buf, contentType := csvUpload(t, "contacts.xlsx", "not a csv")
	req := httptest.NewRequest(http.MethodPost, "/contacts/import-csv", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "u-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Only .csv and .txt files are accepted", body["message"])
}

func TestImportCSV_RejectsUnknownPolicy(t *testing.T) {
	router := newTestRouter(t, NewHandlers(&fakeImporter{}, &fakeSweeps{}, nil, nil, &fakeGeocode{}))

	buf, contentType := csvUpload(t, "contacts.csv", "firstname\n")
	req := httptest.NewRequest(http.MethodPost, "/contacts/import-csv?policy=merge", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "u-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ---------------------------------------------------------------------------
// Geocoding endpoints
// ---------------------------------------------------------------------------

func TestGeocodePending_DispatchesSweep(t *testing.T) {
	sweeps := &fakeSweeps{}
	router := newTestRouter(t, NewHandlers(&fakeImporter{}, sweeps, nil, nil, &fakeGeocode{pending: 5}))

	req := httptest.NewRequest(http.MethodPost, "/contacts/geocode-pending", nil)
	req.Header.Set("X-User-ID", "u-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Geocoding job dispatched", body["message"])
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 5, data["contactsNeedingGeocoding"])
	assert.Equal(t, []string{"u-1"}, sweeps.users)
}

func TestGeocodePending_NothingToDo(t *testing.T) {
	sweeps := &fakeSweeps{}
	router := newTestRouter(t, NewHandlers(&fakeImporter{}, sweeps, nil, nil, &fakeGeocode{pending: 0}))

	req := httptest.NewRequest(http.MethodPost, "/contacts/geocode-pending", nil)
	req.Header.Set("X-User-ID", "u-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "No contacts need geocoding", body["message"])
	assert.Empty(t, sweeps.users, "no sweep dispatched when nothing is pending")
}

func TestGeocodingStatus(t *testing.T) {
	geocode := &fakeGeocode{progress: &store.GeocodeProgress{TotalContacts: 10, WithCoordinates: 4}}
	router := newTestRouter(t, NewHandlers(&fakeImporter{}, &fakeSweeps{}, nil, nil, geocode))

	req := httptest.NewRequest(http.MethodGet, "/contacts/geocoding-status", nil)
	req.Header.Set("X-User-ID", "u-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.EqualValues(t, 10, data["totalContacts"])
	assert.EqualValues(t, 4, data["contactsWithCoordinates"])
	assert.EqualValues(t, 6, data["contactsNeedingGeocoding"])
	assert.Equal(t, "40%", data["geocodingProgress"])
}

func TestGeocodingStatus_EmptyContactBook(t *testing.T) {
	geocode := &fakeGeocode{progress: &store.GeocodeProgress{}}
	router := newTestRouter(t, NewHandlers(&fakeImporter{}, &fakeSweeps{}, nil, nil, geocode))

	req := httptest.NewRequest(http.MethodGet, "/contacts/geocoding-status", nil)
	req.Header.Set("X-User-ID", "u-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "100%", data["geocodingProgress"])
}
