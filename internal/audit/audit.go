// Package audit persists decision records for later inspection. Writes
// are strictly best-effort: Record never blocks the caller and a sink
// failure never alters the verdict that produced the record.
package audit

import "time"

// Record kinds.
const (
	KindSimilarityCheck = "similarity_check"
	KindRoutingDecision = "routing_decision"
)

// Record is a single auditable decision. One flat struct covers both
// similarity checks and routing decisions; unused fields stay zero.
type Record struct {
	Kind        string
	TraceID     string
	OrgID       string
	WorkspaceID string
	Timestamp   time.Time

	// Similarity check fields.
	PromptEmbedding  []float32
	MatchedEmbedding []float32
	Score            float64
	ThresholdUsed    float64
	MethodUsed       string
	ActionTaken      string // "blocked" or "allowed"

	// Routing decision fields.
	Provider string
	Model    string
	Region   string
	Action   string
	Reason   string
	Factors  []string
	Warnings []string
}

// Sink accepts audit records. Record must never block and must never
// surface an error to the caller; failures are logged internally.
type Sink interface {
	Record(rec *Record)
	Close()
}

// NopSink discards every record. Used when auditing is disabled.
type NopSink struct{}

func (NopSink) Record(*Record) {}
func (NopSink) Close()         {}
