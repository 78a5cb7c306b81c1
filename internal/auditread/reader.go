// Package auditread provides read access to the routing_audit table for
// the inspection and analytics endpoints. Reads go through a dedicated
// connection so a slow dashboard query never contends with the write
// batcher.
package auditread

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read access to the ClickHouse routing_audit table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}

	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// RecordRow represents a single row from the routing_audit table.
// Embeddings are deliberately excluded from reads; they are write-only
// evidence.
type RecordRow struct {
	Kind          string
	TraceID       string
	OrgID         string
	WorkspaceID   string
	Timestamp     time.Time
	Score         float64
	ThresholdUsed float64
	MethodUsed    string
	ActionTaken   string
	Provider      string
	Model         string
	Region        string
	Action        string
	Reason        string
	Factors       []string
	Warnings      []string
}

const recordColumns = "kind, trace_id, org_id, workspace_id, timestamp, " +
	"score, threshold_used, method_used, action_taken, " +
	"provider, model, region, action, reason, factors, warnings"

func scanRecord(row driver.Row, rec *RecordRow) error {
	return row.Scan(
		&rec.Kind, &rec.TraceID, &rec.OrgID, &rec.WorkspaceID, &rec.Timestamp,
		&rec.Score, &rec.ThresholdUsed, &rec.MethodUsed, &rec.ActionTaken,
		&rec.Provider, &rec.Model, &rec.Region, &rec.Action, &rec.Reason,
		&rec.Factors, &rec.Warnings,
	)
}

// ListParams holds filters and pagination for audit record listing.
type ListParams struct {
	OrgID     string
	Kind      *string
	Action    *string
	Region    *string
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
}

// ListRecords returns paginated, filtered audit records and the total count.
func (r *Reader) ListRecords(ctx context.Context, params ListParams) ([]RecordRow, int, error) {
	conditions := []string{"org_id = @org_id"}
	args := []any{
		clickhouse.Named("org_id", params.OrgID),
	}

	if params.Kind != nil {
		conditions = append(conditions, "kind = @kind")
		args = append(args, clickhouse.Named("kind", *params.Kind))
	}
	if params.Action != nil {
		conditions = append(conditions, "(action = @action OR action_taken = @action)")
		args = append(args, clickhouse.Named("action", *params.Action))
	}
	if params.Region != nil {
		conditions = append(conditions, "region = @region")
		args = append(args, clickhouse.Named("region", *params.Region))
	}
	if params.StartTime != nil {
		conditions = append(conditions, "timestamp >= @start_time")
		args = append(args, clickhouse.Named("start_time", *params.StartTime))
	}
	if params.EndTime != nil {
		conditions = append(conditions, "timestamp <= @end_time")
		args = append(args, clickhouse.Named("end_time", *params.EndTime))
	}

	where := strings.Join(conditions, " AND ")
	offset := (params.Page - 1) * params.PageSize

	// Count query
	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM routing_audit WHERE %s", where)
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListRecords count: %w", err)
	}

	// Data query
	dataQuery := fmt.Sprintf(
		"SELECT %s FROM routing_audit WHERE %s "+
			"ORDER BY timestamp DESC "+
			"LIMIT @limit OFFSET @offset",
		recordColumns, where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(params.PageSize)),
		clickhouse.Named("offset", uint32(offset)),
	)

	rows, err := r.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListRecords query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []RecordRow
	for rows.Next() {
		var rec RecordRow
		if err := rows.Scan(
			&rec.Kind, &rec.TraceID, &rec.OrgID, &rec.WorkspaceID, &rec.Timestamp,
			&rec.Score, &rec.ThresholdUsed, &rec.MethodUsed, &rec.ActionTaken,
			&rec.Provider, &rec.Model, &rec.Region, &rec.Action, &rec.Reason,
			&rec.Factors, &rec.Warnings,
		); err != nil {
			return nil, 0, fmt.Errorf("ListRecords scan: %w", err)
		}
		records = append(records, rec)
	}

	return records, int(total), rows.Err()
}

// GetRecord returns a single audit record by org and trace ID, or nil if
// not found.
func (r *Reader) GetRecord(ctx context.Context, orgID, traceID string) (*RecordRow, error) {
	row := r.conn.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM routing_audit "+
			"WHERE org_id = @org_id AND trace_id = @trace_id "+
			"ORDER BY timestamp DESC LIMIT 1", recordColumns),
		clickhouse.Named("org_id", orgID),
		clickhouse.Named("trace_id", traceID),
	)

	var rec RecordRow
	if err := scanRecord(row, &rec); err != nil {
		// ClickHouse doesn't return sql.ErrNoRows, so check for empty result
		return nil, fmt.Errorf("GetRecord: %w", err)
	}
	if rec.TraceID == "" {
		return nil, nil
	}
	return &rec, nil
}

// SummaryStats holds aggregate decision counts.
type SummaryStats struct {
	TotalDecisions int `json:"total_decisions"`
	Blocks         int `json:"blocks"`
	Warns          int `json:"warns"`
	Allows         int `json:"allows"`
}

// TimeSeriesBucket holds an hourly count.
type TimeSeriesBucket struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// FactorCount holds a routing factor and its count.
type FactorCount struct {
	Factor string `json:"factor"`
	Count  int    `json:"count"`
}

// RegionCount holds a region and its count.
type RegionCount struct {
	Region string `json:"region"`
	Count  int    `json:"count"`
}

// ScoreStats holds similarity score percentiles.
type ScoreStats struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// AnalyticsResult holds all analytics aggregations.
type AnalyticsResult struct {
	Summary          SummaryStats       `json:"summary"`
	BlocksOverTime   []TimeSeriesBucket `json:"blocks_over_time"`
	TopFactors       []FactorCount      `json:"top_factors"`
	Regions          []RegionCount      `json:"regions"`
	SimilarityScores ScoreStats         `json:"similarity_scores"`
}

// GetAnalytics returns aggregated analytics for an org over the given
// number of days.
func (r *Reader) GetAnalytics(ctx context.Context, orgID string, days int) (*AnalyticsResult, error) {
	now := time.Now().UTC()
	rangeStart := now.Add(-time.Duration(days) * 24 * time.Hour)

	baseArgs := []any{
		clickhouse.Named("org_id", orgID),
		clickhouse.Named("range_start", rangeStart),
	}

	result := &AnalyticsResult{}

	// Summary counts
	var total, blocks, warns, allows uint64
	err := r.conn.QueryRow(ctx,
		"SELECT count() as total, "+
			"countIf(action = 'block' OR action_taken = 'blocked') as blocks, "+
			"countIf(action = 'warn') as warns, "+
			"countIf(action = 'allow' OR action_taken = 'allowed') as allows "+
			"FROM routing_audit "+
			"WHERE org_id = @org_id AND timestamp >= @range_start",
		baseArgs...,
	).Scan(&total, &blocks, &warns, &allows)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics summary: %w", err)
	}
	result.Summary = SummaryStats{
		TotalDecisions: int(total),
		Blocks:         int(blocks),
		Warns:          int(warns),
		Allows:         int(allows),
	}

	// Blocks over time (hourly)
	botRows, err := r.conn.Query(ctx,
		"SELECT toStartOfHour(timestamp) as hour, count() as count "+
			"FROM routing_audit "+
			"WHERE org_id = @org_id AND (action = 'block' OR action_taken = 'blocked') "+
			"AND timestamp >= @range_start "+
			"GROUP BY hour ORDER BY hour",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics blocks_over_time: %w", err)
	}
	defer func() { _ = botRows.Close() }()
	for botRows.Next() {
		var hour time.Time
		var count uint64
		if err := botRows.Scan(&hour, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics blocks_over_time scan: %w", err)
		}
		result.BlocksOverTime = append(result.BlocksOverTime, TimeSeriesBucket{
			Hour:  hour.Format(time.RFC3339),
			Count: int(count),
		})
	}

	// Top routing factors
	factorRows, err := r.conn.Query(ctx,
		"SELECT arrayJoin(factors) as factor, count() as count "+
			"FROM routing_audit "+
			"WHERE org_id = @org_id AND timestamp >= @range_start "+
			"GROUP BY factor ORDER BY count DESC LIMIT 10",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics top_factors: %w", err)
	}
	defer func() { _ = factorRows.Close() }()
	for factorRows.Next() {
		var factor string
		var count uint64
		if err := factorRows.Scan(&factor, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics top_factors scan: %w", err)
		}
		result.TopFactors = append(result.TopFactors, FactorCount{
			Factor: factor, Count: int(count),
		})
	}

	// Region distribution
	regionRows, err := r.conn.Query(ctx,
		"SELECT region, count() as count "+
			"FROM routing_audit "+
			"WHERE org_id = @org_id AND region != '' AND timestamp >= @range_start "+
			"GROUP BY region ORDER BY count DESC",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics regions: %w", err)
	}
	defer func() { _ = regionRows.Close() }()
	for regionRows.Next() {
		var region string
		var count uint64
		if err := regionRows.Scan(&region, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics regions scan: %w", err)
		}
		result.Regions = append(result.Regions, RegionCount{
			Region: region, Count: int(count),
		})
	}

	// Similarity score percentiles
	var p50, p95, p99 float64
	err = r.conn.QueryRow(ctx,
		"SELECT quantile(0.5)(score) as p50, "+
			"quantile(0.95)(score) as p95, "+
			"quantile(0.99)(score) as p99 "+
			"FROM routing_audit "+
			"WHERE org_id = @org_id AND kind = 'similarity_check' "+
			"AND timestamp >= @range_start",
		baseArgs...,
	).Scan(&p50, &p95, &p99)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics scores: %w", err)
	}
	result.SimilarityScores = ScoreStats{
		P50: safeFloat(p50), P95: safeFloat(p95), P99: safeFloat(p99),
	}

	// Ensure slices are non-nil for JSON serialization
	if result.BlocksOverTime == nil {
		result.BlocksOverTime = []TimeSeriesBucket{}
	}
	if result.TopFactors == nil {
		result.TopFactors = []FactorCount{}
	}
	if result.Regions == nil {
		result.Regions = []RegionCount{}
	}

	return result, nil
}

// safeFloat replaces NaN/Inf with 0.0.
// ClickHouse returns NaN for quantile() on empty result sets.
func safeFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0.0
	}
	return f
}
