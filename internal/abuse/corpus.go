package abuse

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/relaymesh/promptgate/internal/embed"
	"go.uber.org/zap"
)

// defaultExemplars is the static list of short abuse exemplars embedded
// once at service start. The corpus never grows at runtime.
var defaultExemplars = []string{
	"phishing attempt click this link to verify your account",
	"hate speech targeting a protected group",
	"instructions for creating malware",
	"social engineering attack to obtain passwords",
	"scam message promising free money",
	"harassment and threatening messages",
	"generate spam content for mass distribution",
	"steal personal information from users",
}

// CorpusEntry pairs a reference text with its embedding. Entries are
// immutable once the corpus is built.
type CorpusEntry struct {
	ReferenceText string
	Embedding     []float32
}

// Corpus is the known-abuse reference set. It transitions once from
// empty to built (or stays empty forever if the build fails); after
// that it is read-only and safe for concurrent use without locking.
type Corpus struct {
	exemplars []string
	provider  embed.Provider
	logger    *zap.Logger

	buildOnce sync.Once
	entries   atomic.Pointer[[]CorpusEntry]
}

// NewCorpus creates an unbuilt corpus over the given exemplars. A nil
// or empty exemplar list falls back to the built-in defaults.
func NewCorpus(exemplars []string, provider embed.Provider, logger *zap.Logger) *Corpus {
	if len(exemplars) == 0 {
		exemplars = defaultExemplars
	}
	return &Corpus{
		exemplars: exemplars,
		provider:  provider,
		logger:    logger,
	}
}

// Build embeds every exemplar exactly once, no matter how many callers
// race here. A failed build is logged and leaves the corpus empty for
// the process lifetime; there is no retry. Known limitation: an
// embedding outage at startup permanently disables the semantic signal
// until restart.
func (c *Corpus) Build(ctx context.Context) {
	c.buildOnce.Do(func() {
		if c.provider == nil {
			c.logger.Info("no embedding provider, known-abuse corpus disabled")
			return
		}

		entries := make([]CorpusEntry, 0, len(c.exemplars))
		for _, text := range c.exemplars {
			vec, err := c.provider.Embed(ctx, text)
			if err != nil {
				c.logger.Warn("known-abuse corpus build failed, semantic check disabled",
					zap.String("exemplar", text),
					zap.Error(err),
				)
				return
			}
			entries = append(entries, CorpusEntry{ReferenceText: text, Embedding: vec})
		}

		c.entries.Store(&entries)
		c.logger.Info("known-abuse corpus built",
			zap.Int("entries", len(entries)),
		)
	})
}

// Entries returns the read-only built entries, or nil if the corpus was
// never built or its build failed.
func (c *Corpus) Entries() []CorpusEntry {
	p := c.entries.Load()
	if p == nil {
		return nil
	}
	return *p
}
