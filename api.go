package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNoData):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no data found"})
	case errors.Is(err, errLedgerUnavailable):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "ledger unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (a *api) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// getCatalogHandler serves the projected catalog. ?force=true bypasses
// the cache and always hits the ledger.
func (a *api) getCatalogHandler(w http.ResponseWriter, r *http.Request) {
	force := strings.EqualFold(r.URL.Query().Get("force"), "true")

	records, err := a.listCatalog(r.Context(), force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *api) getItemsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := a.listItems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"items": items})
}

// checkCodeHandler answers whether a code has been used, from the same
// cached code registry the registration path consults.
func (a *api) checkCodeHandler(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	writeJSON(w, http.StatusOK, map[string]bool{
		"status": a.reg.codeRegistered(r.Context(), code),
	})
}

// validateSubmission rejects malformed payloads at the boundary so the
// registration protocol only ever sees well-formed submissions.
func validateSubmission(sub Submission) error {
	if sub.FormData.Email == "" {
		return fmt.Errorf("formData.email is required")
	}
	if sub.FormData.Name == "" {
		return fmt.Errorf("formData.name is required")
	}
	for i, item := range sub.Items {
		if item.ID == "" {
			return fmt.Errorf("items[%d].id is required", i)
		}
	}
	return nil
}

// sendEmailHandler is the registration endpoint: dedup check, append,
// then confirmation email. The response mirrors status_code as the HTTP
// status, keeping the frontend contract of the original form.
func (a *api) sendEmailHandler(w http.ResponseWriter, r *http.Request) {
	var sub Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, submissionResponse{
			StatusCode: http.StatusBadRequest,
			Message:    "invalid json body",
		})
		return
	}
	if err := validateSubmission(sub); err != nil {
		writeJSON(w, http.StatusBadRequest, submissionResponse{
			StatusCode: http.StatusBadRequest,
			Message:    err.Error(),
		})
		return
	}

	out := a.reg.register(r.Context(), sub)
	slog.Info("registration handled", "request_id", GetRequestID(r.Context()), "outcome", out)

	switch out {
	case outcomeAlreadyRegistered:
		writeJSON(w, http.StatusOK, submissionResponse{
			StatusCode: http.StatusOK,
			Message:    "code already registered",
		})
		return
	case outcomePersistenceFailed:
		writeJSON(w, http.StatusInternalServerError, submissionResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    "registration could not be saved",
		})
		return
	case outcomeRegisteredNoNotification:
		writeJSON(w, http.StatusOK, submissionResponse{
			StatusCode: http.StatusOK,
			Message:    "registration recorded",
		})
		return
	}

	// Registered: send the confirmation. The row is already persisted,
	// so a mail failure is reported but nothing is rolled back.
	status := a.sendConfirmation(r, sub)
	msg := "email sent successfully"
	if status != http.StatusAccepted {
		msg = "email not sent"
	}
	writeJSON(w, status, submissionResponse{StatusCode: status, Message: msg})
}

func (a *api) sendConfirmation(r *http.Request, sub Submission) int {
	qr, err := qrDataURI(qrPayload(sub))
	if err != nil {
		slog.Error("qr generation failed", "error", err)
		return http.StatusInternalServerError
	}
	msg, err := renderConfirmation(sub, qr)
	if err != nil {
		slog.Error("render confirmation failed", "error", err)
		return http.StatusInternalServerError
	}
	return a.mail.send(r.Context(), msg)
}
