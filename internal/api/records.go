package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/relaymesh/promptgate/internal/auditread"
	"go.uber.org/zap"
)

// AuditRecordResp is one audit record in the inspection API.
type AuditRecordResp struct {
	Kind          string    `json:"kind"`
	TraceID       string    `json:"trace_id"`
	OrgID         string    `json:"org_id"`
	WorkspaceID   *string   `json:"workspace_id"`
	Timestamp     time.Time `json:"timestamp"`
	Score         *float64  `json:"score"`
	ThresholdUsed *float64  `json:"threshold_used"`
	MethodUsed    *string   `json:"method_used"`
	ActionTaken   *string   `json:"action_taken"`
	Provider      *string   `json:"provider"`
	Model         *string   `json:"model"`
	Region        *string   `json:"region"`
	Action        *string   `json:"action"`
	Reason        *string   `json:"reason"`
	Factors       []string  `json:"factors"`
	Warnings      []string  `json:"warnings"`
}

// AuditListResp is the paginated list response for GET /v1/audit.
type AuditListResp struct {
	Records  []AuditRecordResp `json:"records"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

func (d *Dependencies) handleListAuditRecords(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	q := r.URL.Query()
	orgID := requestOrgID(r, q)
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "org_id query parameter is required"})
		return
	}

	params := auditread.ListParams{
		OrgID:    orgID,
		Page:     queryInt(q, "page", 1),
		PageSize: queryInt(q, "page_size", 50),
	}
	if params.PageSize > 200 {
		params.PageSize = 200
	}
	if params.Page < 1 {
		params.Page = 1
	}

	if v := q.Get("kind"); v != "" {
		params.Kind = &v
	}
	if v := q.Get("action"); v != "" {
		params.Action = &v
	}
	if v := q.Get("region"); v != "" {
		params.Region = &v
	}
	if v := q.Get("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.StartTime = &t
		}
	}
	if v := q.Get("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.EndTime = &t
		}
	}

	records, total, err := d.Reader.ListRecords(r.Context(), params)
	if err != nil {
		d.Logger.Error("failed to list audit records", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list audit records"})
		return
	}

	resp := AuditListResp{
		Records:  make([]AuditRecordResp, 0, len(records)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for _, rec := range records {
		resp.Records = append(resp.Records, recordRowToResp(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleGetAuditRecord(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	traceID := r.PathValue("trace_id")
	orgID := requestOrgID(r, r.URL.Query())
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "org_id query parameter is required"})
		return
	}

	rec, err := d.Reader.GetRecord(r.Context(), orgID, traceID)
	if err != nil {
		d.Logger.Error("failed to get audit record", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get audit record"})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Audit record not found."})
		return
	}

	writeJSON(w, http.StatusOK, recordRowToResp(*rec))
}

func (d *Dependencies) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	q := r.URL.Query()
	orgID := requestOrgID(r, q)
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "org_id query parameter is required"})
		return
	}

	days := queryInt(q, "days", 7)
	if days < 1 {
		days = 1
	}
	if days > 90 {
		days = 90
	}

	result, err := d.Reader.GetAnalytics(r.Context(), orgID, days)
	if err != nil {
		d.Logger.Error("failed to get analytics", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get analytics"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// requestOrgID resolves the org for read endpoints: the authenticated
// org wins, the org_id query parameter is the unauthenticated fallback.
func requestOrgID(r *http.Request, q url.Values) string {
	if org := orgFromContext(r.Context()); org != nil {
		return org.OrgID
	}
	return q.Get("org_id")
}

// recordRowToResp converts a ClickHouse RecordRow to the API response,
// eliding the fields the record kind leaves zero.
func recordRowToResp(rec auditread.RecordRow) AuditRecordResp {
	resp := AuditRecordResp{
		Kind:        rec.Kind,
		TraceID:     rec.TraceID,
		OrgID:       rec.OrgID,
		WorkspaceID: nilIfEmpty(rec.WorkspaceID),
		Timestamp:   rec.Timestamp,
		MethodUsed:  nilIfEmpty(rec.MethodUsed),
		ActionTaken: nilIfEmpty(rec.ActionTaken),
		Provider:    nilIfEmpty(rec.Provider),
		Model:       nilIfEmpty(rec.Model),
		Region:      nilIfEmpty(rec.Region),
		Action:      nilIfEmpty(rec.Action),
		Reason:      nilIfEmpty(rec.Reason),
		Factors:     rec.Factors,
		Warnings:    rec.Warnings,
	}
	if rec.Kind == "similarity_check" {
		score := rec.Score
		threshold := rec.ThresholdUsed
		resp.Score = &score
		resp.ThresholdUsed = &threshold
	}
	return resp
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func queryInt(q url.Values, key string, defaultVal int) int {
	v := q.Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
