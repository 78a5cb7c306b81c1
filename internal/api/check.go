package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/relaymesh/promptgate/internal/abuse"
	"github.com/relaymesh/promptgate/internal/flags"
	"github.com/relaymesh/promptgate/internal/promptlen"
	"github.com/relaymesh/promptgate/internal/similarity"
	"github.com/relaymesh/promptgate/internal/verdict"
)

// handleCheckAbuse implements POST /v1/check/abuse.
func (d *Dependencies) handleCheckAbuse(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CheckAbuseRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "prompt is required"})
		return
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.New().String()
	}

	// Disabled check passes everything through.
	if !d.flagEnabled(r.Context(), flags.FlagAbuseDetection, "", "") {
		writeJSON(w, http.StatusOK, CheckAbuseResponse{
			Verdict:   abuse.Verdict{Action: verdict.ActionAllow},
			Action:    verdict.ActionAllow.String(),
			TraceID:   traceID,
			LatencyMs: float64(time.Since(start)) / float64(time.Millisecond),
		})
		return
	}

	v := d.Abuse.Check(r.Context(), req.Prompt)

	writeJSON(w, http.StatusOK, CheckAbuseResponse{
		Verdict:   v,
		Action:    v.Action.String(),
		TraceID:   traceID,
		LatencyMs: float64(time.Since(start)) / float64(time.Millisecond),
	})
}

// handleCheckSimilarity implements POST /v1/check/similarity.
func (d *Dependencies) handleCheckSimilarity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CheckSimilarityRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "prompt is required"})
		return
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.New().String()
	}

	if !d.flagEnabled(r.Context(), flags.FlagSimilarityCheck, "", req.WorkspaceID) {
		writeJSON(w, http.StatusOK, CheckSimilarityResponse{
			Action:    "allowed",
			TraceID:   traceID,
			LatencyMs: float64(time.Since(start)) / float64(time.Millisecond),
		})
		return
	}

	reqCtx := similarity.Context{
		WorkspaceID: req.WorkspaceID,
		TraceID:     traceID,
	}
	if org := orgFromContext(r.Context()); org != nil {
		reqCtx.OrgID = org.OrgID
	}

	v, err := d.Similarity.Check(r.Context(), req.Prompt, req.KnownPrompts, reqCtx, req.Threshold, similarity.Method(req.Method))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	}

	action := "allowed"
	if v.Similar {
		action = "blocked"
	}
	writeJSON(w, http.StatusOK, CheckSimilarityResponse{
		Verdict:   v,
		Action:    action,
		TraceID:   traceID,
		LatencyMs: float64(time.Since(start)) / float64(time.Millisecond),
	})
}

// handleCheckLength implements POST /v1/check/length.
func (d *Dependencies) handleCheckLength(w http.ResponseWriter, r *http.Request) {
	var req CheckLengthRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	v := promptlen.Classify(req.Prompt, req.Provider, d.Length)

	writeJSON(w, http.StatusOK, CheckLengthResponse{
		Verdict: v,
		Action:  v.Action.String(),
	})
}
