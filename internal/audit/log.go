package audit

import "go.uber.org/zap"

// LogSink is a fallback Sink for local development. It logs records as
// structured JSON to stdout via zap. Embeddings are elided: only their
// dimensions are logged.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink that writes records to the given logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(rec *Record) {
	s.logger.Info("audit_record",
		zap.String("kind", rec.Kind),
		zap.String("trace_id", rec.TraceID),
		zap.String("org_id", rec.OrgID),
		zap.String("workspace_id", rec.WorkspaceID),
		zap.Float64("score", rec.Score),
		zap.Float64("threshold_used", rec.ThresholdUsed),
		zap.String("method_used", rec.MethodUsed),
		zap.String("action_taken", rec.ActionTaken),
		zap.Int("prompt_embedding_dims", len(rec.PromptEmbedding)),
		zap.String("provider", rec.Provider),
		zap.String("model", rec.Model),
		zap.String("region", rec.Region),
		zap.String("action", rec.Action),
		zap.String("reason", rec.Reason),
		zap.Strings("factors", rec.Factors),
	)
}

func (s *LogSink) Close() {}
