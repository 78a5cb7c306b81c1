package api

import (
	"net/http"

	"github.com/relaymesh/promptgate/internal/routing"
)

// handleRoute implements POST /v1/route.
func (d *Dependencies) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Provider == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "provider is required"})
		return
	}

	routeReq := routing.Request{
		WorkspaceID:       req.WorkspaceID,
		UserID:            req.UserID,
		TraceID:           req.TraceID,
		Prompt:            req.Prompt,
		Provider:          req.Provider,
		Model:             req.Model,
		UserRegion:        req.UserRegion,
		PreferredRegion:   req.PreferredRegion,
		EnforceCompliance: req.EnforceCompliance,
		Plan:              req.Plan,
		DataResidency:     req.DataResidency,
		ComplianceTags:    req.ComplianceTags,
	}
	if org := orgFromContext(r.Context()); org != nil {
		routeReq.OrgID = org.OrgID
	}

	decision := d.Router.Route(r.Context(), routeReq)

	writeJSON(w, http.StatusOK, RouteResponse{
		Decision: decision,
		Action:   decision.Action.String(),
	})
}
