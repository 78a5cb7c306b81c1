package audit

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const (
	bufferSize    = 10_000
	flushInterval = 100 * time.Millisecond
	flushBatch    = 1000
	drainTimeout  = 2 * time.Second
)

// ClickHouseSink writes audit records to ClickHouse asynchronously.
// Record() is non-blocking: records are buffered and batch-inserted in
// a background goroutine.
type ClickHouseSink struct {
	conn    driver.Conn
	buffer  chan *Record
	done    chan struct{}
	flushed chan struct{} // closed by flushLoop when it returns
	logger  *zap.Logger
}

// NewClickHouseSink connects to ClickHouse and starts the background
// flush loop.
func NewClickHouseSink(dsn string, logger *zap.Logger) (*ClickHouseSink, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	// ParseDSN sets TLS when ?secure=true is in the DSN; enforce it
	// here as a safety net for cloud deployments on port 9440.
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	s := &ClickHouseSink{
		conn:    conn,
		buffer:  make(chan *Record, bufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}

	go s.flushLoop()
	return s, nil
}

// Record queues an audit record for async insertion.
// Non-blocking: drops the record if the buffer is full.
func (s *ClickHouseSink) Record(rec *Record) {
	select {
	case s.buffer <- rec:
	default:
		s.logger.Warn("audit buffer full, dropping record",
			zap.String("kind", rec.Kind),
			zap.String("trace_id", rec.TraceID),
		)
	}
}

// Close signals the flush loop to drain remaining records, waits for it
// to finish (up to drainTimeout), and then returns. Safe to call once.
func (s *ClickHouseSink) Close() {
	close(s.done)
	<-s.flushed
}

func (s *ClickHouseSink) flushLoop() {
	defer close(s.flushed)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*Record, 0, flushBatch)

	for {
		select {
		case rec := <-s.buffer:
			batch = append(batch, rec)
			if len(batch) >= flushBatch {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-s.done:
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case rec := <-s.buffer:
					batch = append(batch, rec)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				s.flush(batch)
			}
			return
		}
	}
}

func (s *ClickHouseSink) flush(records []*Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO routing_audit (
			kind, trace_id, org_id, workspace_id, timestamp,
			prompt_embedding, matched_embedding, score, threshold_used, method_used, action_taken,
			provider, model, region, action, reason, factors, warnings
		)
	`)
	if err != nil {
		s.logger.Error("audit prepare batch failed", zap.Error(err))
		return
	}

	for _, r := range records {
		if err := batch.Append(
			r.Kind,
			r.TraceID,
			r.OrgID,
			r.WorkspaceID,
			r.Timestamp,
			r.PromptEmbedding,
			r.MatchedEmbedding,
			r.Score,
			r.ThresholdUsed,
			r.MethodUsed,
			r.ActionTaken,
			r.Provider,
			r.Model,
			r.Region,
			r.Action,
			r.Reason,
			r.Factors,
			r.Warnings,
		); err != nil {
			s.logger.Error("audit append record failed",
				zap.String("trace_id", r.TraceID),
				zap.Error(err),
			)
		}
	}

	if err := batch.Send(); err != nil {
		s.logger.Error("audit batch send failed",
			zap.Int("batch_size", len(records)),
			zap.Error(err),
		)
	}
}
