package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/introhq/introhq/internal/model"
	"github.com/introhq/introhq/internal/referral"
)

// partyPayload is one participant in a make-an-intro request.
type partyPayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (p partyPayload) toModel() model.Party {
	return model.Party{
		ID:        strings.TrimSpace(p.ID),
		Email:     strings.ToLower(strings.TrimSpace(p.Email)),
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
	}
}

// CreateIntroductions handles POST /introductions: the connector
// introduces one party to each recipient. ?groupId marks the batch as
// group-gated (request approval required).
func (h *Handlers) CreateIntroductions(w http.ResponseWriter, r *http.Request) {
	var body struct {
		From      partyPayload   `json:"from"`
		Introduce partyPayload   `json:"introduce"`
		To        []partyPayload `json:"to"`
		Message   string         `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondValidation(w, "Invalid request body")
		return
	}

	input := referral.CreateInput{
		From:       body.From.toModel(),
		Introduced: body.Introduce.toModel(),
		Message:    body.Message,
		GroupGated: r.URL.Query().Get("groupId") != "",
	}
	for _, recipient := range body.To {
		input.Recipients = append(input.Recipients, recipient.toModel())
	}

	intros, err := h.referrals.Create(r.Context(), input)
	if err != nil {
		respondError(w, err)
		return
	}

	referrals := make([]map[string]any, 0, len(intros))
	for _, intro := range intros {
		referrals = append(referrals, formatIntroduction(intro))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"count":   len(referrals),
		"data":    map[string]any{"referrals": referrals},
		"message": "Intro sent successfully",
	})
}

// ListReferrals handles GET /referrals with page/limit/status/search.
func (h *Handlers) ListReferrals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := referral.ListParams{
		Email:  callerEmail(r),
		UserID: callerID(r),
		Status: q.Get("status"),
		Search: q.Get("search"),
		Page:   intQuery(q.Get("page"), 1),
		Limit:  intQuery(q.Get("limit"), 10),
	}

	intros, total, err := h.lister.List(r.Context(), params)
	if err != nil {
		respondError(w, err)
		return
	}

	referrals := make([]map[string]any, 0, len(intros))
	for i := range intros {
		referrals = append(referrals, formatIntroduction(&intros[i]))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"totalRecords": total,
		"totalPages":   int(math.Ceil(float64(total) / float64(params.Limit))),
		"currentPage":  params.Page,
		"limit":        params.Limit,
		"count":        len(referrals),
		"data":         map[string]any{"referrals": referrals},
		"message":      "Success",
	})
}

// GetReferral handles GET /referrals/{id}. The caller must be a party.
func (h *Handlers) GetReferral(w http.ResponseWriter, r *http.Request) {
	intro, err := h.referrals.Get(r.Context(), chi.URLParam(r, "id"), callerID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, "Success", formatIntroduction(intro))
}

// UpdateReferralStatus handles PATCH /referrals/{id}/status.
func (h *Handlers) UpdateReferralStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondValidation(w, "Invalid request body")
		return
	}

	intro, err := h.referrals.UpdateStatus(r.Context(),
		chi.URLParam(r, "id"), callerID(r), model.PartyStatus(strings.ToLower(strings.TrimSpace(body.Status))))
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, "Status updated", formatIntroduction(intro))
}

// UpdateRequestStatus handles PATCH /referrals/{id}/request-status.
func (h *Handlers) UpdateRequestStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondValidation(w, "Invalid request body")
		return
	}

	intro, err := h.referrals.UpdateRequestStatus(r.Context(),
		chi.URLParam(r, "id"), model.RequestStatus(strings.ToLower(strings.TrimSpace(body.Status))))
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, "Request status updated", formatIntroduction(intro))
}

// SendReminder handles POST /referrals/{id}/reminder.
func (h *Handlers) SendReminder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondValidation(w, "Invalid request body")
		return
	}

	if err := h.referrals.SendReminder(r.Context(), chi.URLParam(r, "id"), callerID(r), body.Message); err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, "Reminder email sent to user.", nil)
}

// RevokeReferral handles POST /referrals/{id}/revoke?revoke=bool.
func (h *Handlers) RevokeReferral(w http.ResponseWriter, r *http.Request) {
	flag := true
	if raw := r.URL.Query().Get("revoke"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondValidation(w, "Invalid revoke value")
			return
		}
		flag = parsed
	}

	if err := h.referrals.Revoke(r.Context(), chi.URLParam(r, "id"), callerID(r), flag); err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, "Referral revoked successfully", nil)
}

// formatIntroduction mirrors the wire shape the frontend consumes.
func formatIntroduction(intro *model.Introduction) map[string]any {
	out := map[string]any{
		"introduced": map[string]any{
			"id":                  intro.Introduced.ID,
			"email":               intro.Introduced.Email,
			"name":                fullName(intro.Introduced),
			"firstName":           intro.Introduced.FirstName,
			"lastName":            intro.Introduced.LastName,
			"introducedStatus":    intro.IntroducedStatus,
			"introducedIsAttempt": intro.IntroducedIsAttempt,
			"introducedMessage":   intro.IntroducedMessage,
		},
		"introducedTo": map[string]any{
			"id":                    intro.IntroducedTo.ID,
			"email":                 intro.IntroducedTo.Email,
			"name":                  fullName(intro.IntroducedTo),
			"firstName":             intro.IntroducedTo.FirstName,
			"lastName":              intro.IntroducedTo.LastName,
			"introducedToStatus":    intro.IntroducedToStatus,
			"introducedToIsAttempt": intro.IntroducedToIsAttempt,
			"introducedToMessage":   intro.IntroducedToMessage,
		},
		"introducedFrom": map[string]any{
			"id":        intro.From.ID,
			"email":     intro.From.Email,
			"name":      fullName(intro.From),
			"firstName": intro.From.FirstName,
			"lastName":  intro.From.LastName,
		},
		"message":          intro.Message,
		"reminder_message": intro.ReminderMessage,
		"created_at":       intro.CreatedAt.Format(time.RFC3339),
		"overAllStatus":    intro.OverallStatus,
		"introductionId":   intro.ID,
		"revoke":           intro.Revoked,
	}
	if intro.RequestStatus != "" {
		out["requestStatus"] = intro.RequestStatus
	}
	return out
}

func fullName(p model.Party) string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

func intQuery(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
