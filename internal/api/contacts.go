package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/introhq/introhq/internal/importer"
)

// maxUploadBytes caps CSV uploads at 20MB.
const maxUploadBytes = 20 << 20

// ImportCSV handles POST /contacts/import-csv. The upload is a
// multipart "file" field; ?policy=skip|update picks duplicate handling.
// Per-row failures come back in the summary, not as an HTTP error.
func (h *Handlers) ImportCSV(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		respondValidation(w, "Missing user identity")
		return
	}

	policy, err := importer.ParseConflictPolicy(r.URL.Query().Get("policy"))
	if err != nil {
		respondValidation(w, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondValidation(w, "File exceeds the 20MB limit or is not valid multipart data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondValidation(w, "Missing file upload")
		return
	}
	defer file.Close() //nolint:errcheck

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv", ".txt":
	default:
		respondValidation(w, "Only .csv and .txt files are accepted")
		return
	}

	summary, err := h.importer.Run(r.Context(), userID, file, policy)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"message":      "Import completed",
		"totalRecords": summary.TotalRows,
		"data": map[string]any{
			"summary": summary,
		},
	})
}

// GeocodePending handles POST /contacts/geocode-pending: counts the
// contacts still missing coordinates and dispatches a sweep when there
// are any.
func (h *Handlers) GeocodePending(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		respondValidation(w, "Missing user identity")
		return
	}

	pending, err := h.geocode.CountContactsNeedingGeocode(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	if pending == 0 {
		respondSuccess(w, "No contacts need geocoding", map[string]any{
			"contactsNeedingGeocoding": 0,
		})
		return
	}

	if err := h.sweeps.EnqueueSweep(userID); err != nil {
		respondError(w, err)
		return
	}

	respondSuccess(w, "Geocoding job dispatched", map[string]any{
		"contactsNeedingGeocoding": pending,
	})
}

// GeocodingStatus handles GET /contacts/geocoding-status.
func (h *Handlers) GeocodingStatus(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		respondValidation(w, "Missing user identity")
		return
	}

	progress, err := h.geocode.GeocodeProgress(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	percent := 100.0
	if progress.TotalContacts > 0 {
		percent = float64(progress.WithCoordinates) / float64(progress.TotalContacts) * 100
	}

	respondSuccess(w, "", map[string]any{
		"totalContacts":            progress.TotalContacts,
		"contactsWithCoordinates":  progress.WithCoordinates,
		"contactsNeedingGeocoding": progress.TotalContacts - progress.WithCoordinates,
		"geocodingProgress":        fmt.Sprintf("%.0f%%", percent),
	})
}
