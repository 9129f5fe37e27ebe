package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"agencydesk.io/internal/directory"
)

type updateActivityRequest struct {
	Content map[string]any `json:"content"`
}

func (a *API) handleActivities(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
		if clientID == "" {
			writeErrorCode(w, r, http.StatusBadRequest, codeValidation, "client_id query parameter is required")
			return
		}
		activities, err := a.dir.ListActivities(r.Context(), p, clientID)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
	case http.MethodPost:
		var input directory.ActivityInput
		if err := decodeJSON(r, &input); err != nil {
			writeErrorCode(w, r, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		activity, err := a.dir.CreateActivity(r.Context(), p, input)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/api/client-activities/%s", activity.ID))
		writeJSON(w, http.StatusCreated, activity)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleActivityScoped(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	activityID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/client-activities/"), "/")
	if activityID == "" || strings.Contains(activityID, "/") {
		writeErrorCode(w, r, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		activity, err := a.dir.GetActivity(r.Context(), p, activityID)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, activity)
	case http.MethodPut:
		var req updateActivityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErrorCode(w, r, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		activity, err := a.dir.UpdateActivity(r.Context(), p, activityID, req.Content)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, activity)
	case http.MethodDelete:
		if err := a.dir.DeleteActivity(r.Context(), p, activityID); err != nil {
			a.writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
