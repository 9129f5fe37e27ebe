package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"agencydesk.io/internal/directory"
)

type updateUserRequest struct {
	Role       *string `json:"role"`
	Status     *string `json:"status"`
	Department *string `json:"department"`
}

type assignUserRequest struct {
	UserID string `json:"user_id"`
}

func (a *API) handleClients(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		clients, err := a.dir.ListClients(r.Context(), p)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
	case http.MethodPost:
		var input directory.ClientInput
		if err := decodeJSON(r, &input); err != nil {
			writeErrorCode(w, r, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		client, err := a.dir.CreateClient(r.Context(), p, input)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/api/clients/%s", client.ID))
		writeJSON(w, http.StatusCreated, client)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleClientScoped routes /api/clients/{id} and
// /api/clients/{id}/assignments[/{userID}].
func (a *API) handleClientScoped(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/clients/"), "/")
	if path == "" {
		writeErrorCode(w, r, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	clientID := parts[0]

	switch {
	case len(parts) == 1:
		a.handleClientByID(w, r, clientID)
	case len(parts) == 2 && parts[1] == "assignments":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		var req assignUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErrorCode(w, r, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		assignment, err := a.dir.AssignClient(r.Context(), p, clientID, req.UserID)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, assignment)
	case len(parts) == 3 && parts[1] == "assignments":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		if err := a.dir.UnassignClient(r.Context(), p, clientID, parts[2]); err != nil {
			a.writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeErrorCode(w, r, http.StatusNotFound, codeNotFound, "resource not found")
	}
}

func (a *API) handleClientByID(w http.ResponseWriter, r *http.Request, clientID string) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		client, err := a.dir.GetClient(r.Context(), p, clientID)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, client)
	case http.MethodPut:
		var input directory.ClientInput
		if err := decodeJSON(r, &input); err != nil {
			writeErrorCode(w, r, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		client, err := a.dir.UpdateClient(r.Context(), p, clientID, input)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, client)
	case http.MethodDelete:
		if err := a.dir.DeleteClient(r.Context(), p, clientID); err != nil {
			a.writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	userID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/users/"), "/")
	if userID == "" || strings.Contains(userID, "/") {
		writeErrorCode(w, r, http.StatusNotFound, codeNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	user, err := a.dir.UpdateUser(r.Context(), p, userID, directory.UserUpdate{
		Role:       req.Role,
		Status:     req.Status,
		Department: req.Department,
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
