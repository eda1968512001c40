// Package consolidation turns completed conversations into durable knowledge.
// The pipeline runs in four stages per candidate: a deterministic quality
// gate, a similarity search over the user's existing corpus, a merge-or-create
// decision, and provenance recording. Extraction and merging are delegated to
// an external language-model collaborator behind narrow interfaces; the gate
// and the decision rule never consult it.
package consolidation

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"mnemos/internal/logging"
	"mnemos/internal/memory"
	"mnemos/internal/similarity"
	"mnemos/internal/store"
)

// Candidate is one unit of extracted knowledge proposed for consolidation.
type Candidate struct {
	Topic      string
	Content    string
	Confidence float64
}

// Extractor proposes knowledge candidates from a finished conversation.
type Extractor interface {
	Extract(ctx context.Context, messages []memory.Message) ([]Candidate, error)
}

// Merger combines an incoming candidate with a sufficiently similar existing
// item into one coherent content body.
type Merger interface {
	Merge(ctx context.Context, existing, incoming string) (string, error)
}

// Embedder is the slice of the embedding engine the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config tunes the quality gate and the merge decision.
type Config struct {
	// MinConfidence is exclusive: a candidate at exactly this value is rejected.
	MinConfidence float64
	// MinContentLength is exclusive, in characters.
	MinContentLength int
	// MergeThreshold is the inclusive similarity score at or above which the
	// best match absorbs the candidate instead of a new item being created.
	MergeThreshold float64
	// TopK bounds the similarity search.
	TopK int
	// CollaboratorTimeout bounds each individual extractor, embedder, and
	// merger call.
	CollaboratorTimeout time.Duration
}

// DefaultConfig returns the standard pipeline tuning.
func DefaultConfig() Config {
	return Config{
		MinConfidence:       0.7,
		MinContentLength:    20,
		MergeThreshold:      0.8,
		TopK:                3,
		CollaboratorTimeout: 30 * time.Second,
	}
}

// Report counts candidate outcomes for one pipeline run. Every candidate
// lands in exactly one bucket.
type Report struct {
	Rejected int
	Created  int
	Merged   int
	Failed   int
}

// Total returns the number of candidates the run classified.
func (r Report) Total() int { return r.Rejected + r.Created + r.Merged + r.Failed }

// Pipeline is the knowledge consolidation pipeline.
type Pipeline struct {
	store     *store.Store
	extractor Extractor
	merger    Merger
	embedder  Embedder
	cfg       Config
}

// NewPipeline assembles a pipeline over the shared store and collaborators.
func NewPipeline(st *store.Store, ex Extractor, mg Merger, em Embedder, cfg Config) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = 30 * time.Second
	}
	return &Pipeline{store: st, extractor: ex, merger: mg, embedder: em, cfg: cfg}
}

// Topics carrying no retrievable meaning. Candidates filed under them are
// rejected at the gate.
var genericTopics = map[string]struct{}{
	"general": {},
	"misc":    {},
	"other":   {},
	"unknown": {},
}

// gateReject returns a non-empty reason when the candidate fails the
// deterministic quality gate. Same candidate, same verdict, always.
func (p *Pipeline) gateReject(c Candidate) string {
	if utf8.RuneCountInString(c.Content) <= p.cfg.MinContentLength {
		return "content too short"
	}
	if c.Confidence <= p.cfg.MinConfidence {
		return "confidence too low"
	}
	topic := strings.ToLower(strings.TrimSpace(c.Topic))
	if topic == "" {
		return "blank topic"
	}
	if _, generic := genericTopics[topic]; generic {
		return "generic topic"
	}
	return ""
}

// Consolidate runs the full pipeline for one finished conversation. Failures
// are isolated per candidate: one failed embed or write never aborts the
// remaining candidates. An extraction failure fails the whole run, since
// there is nothing to iterate.
//
// Cancellation is honored between candidates; the candidate in flight is
// allowed to finish its current collaborator call.
func (p *Pipeline) Consolidate(ctx context.Context, userID, conversationID string, messages []memory.Message) (Report, error) {
	timer := logging.StartTimer(logging.CategoryConsolidation, "Consolidate")
	defer timer.Stop()

	var report Report

	if len(messages) == 0 {
		logging.Consolidation("Nothing to consolidate: conversation=%s is empty", conversationID)
		return report, nil
	}

	candidates, err := p.extract(ctx, messages)
	if err != nil {
		logging.ConsolidationError("Extraction failed for conversation=%s: %v", conversationID, err)
		return report, &memory.CollaboratorError{Collaborator: "extractor", Err: err}
	}

	logging.Consolidation("Consolidating conversation=%s user=%s candidates=%d",
		conversationID, userID, len(candidates))

	existing, err := p.store.KnowledgeByUser(ctx, userID)
	if err != nil {
		return report, err
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			logging.ConsolidationWarn("Consolidation cancelled after %d/%d candidates: %v",
				report.Total(), len(candidates), err)
			return report, err
		}

		if reason := p.gateReject(c); reason != "" {
			logging.ConsolidationDebug("Rejected candidate topic=%q: %s", c.Topic, reason)
			report.Rejected++
			continue
		}

		outcome, item := p.consolidateOne(ctx, userID, conversationID, c, existing)
		switch outcome {
		case outcomeCreated:
			report.Created++
			existing = append(existing, *item)
		case outcomeMerged:
			report.Merged++
		default:
			report.Failed++
		}
	}

	logging.Consolidation("Consolidation done: conversation=%s rejected=%d created=%d merged=%d failed=%d",
		conversationID, report.Rejected, report.Created, report.Merged, report.Failed)
	return report, nil
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeCreated
	outcomeMerged
)

// consolidateOne takes a gated candidate through embed, search, and
// merge-or-create. On creation the new item is returned so the caller can add
// it to the in-memory candidate set for subsequent searches in the same run.
func (p *Pipeline) consolidateOne(ctx context.Context, userID, conversationID string, c Candidate, corpus []memory.KnowledgeItem) (outcome, *memory.KnowledgeItem) {
	vector, err := p.embed(ctx, c.Content)
	if err != nil {
		logging.ConsolidationError("Embedding failed for topic=%q: %v", c.Topic, err)
		return outcomeFailed, nil
	}

	cands := make([]similarity.Candidate, 0, len(corpus))
	byID := make(map[int64]*memory.KnowledgeItem, len(corpus))
	for i := range corpus {
		cands = append(cands, similarity.Candidate{
			ID:        corpus[i].ID,
			Embedding: corpus[i].Embedding,
			UpdatedAt: corpus[i].UpdatedAt,
		})
		byID[corpus[i].ID] = &corpus[i]
	}

	matches := similarity.Rank(vector, cands, p.cfg.TopK, p.cfg.MergeThreshold)
	if len(matches) > 0 {
		best := byID[matches[0].ID]
		if p.merge(ctx, conversationID, c, best, matches[0].Score) {
			return outcomeMerged, nil
		}
		logging.ConsolidationWarn("Merge failed for topic=%q, creating new item instead", c.Topic)
	}

	item := &memory.KnowledgeItem{
		UserID:     userID,
		Topic:      c.Topic,
		Content:    c.Content,
		Embedding:  vector,
		Confidence: c.Confidence,
	}
	item.AppendProvenance(conversationID)

	if _, err := p.store.InsertKnowledgeItem(ctx, item); err != nil {
		logging.ConsolidationError("Insert failed for topic=%q: %v", c.Topic, err)
		return outcomeFailed, nil
	}
	item.UpdatedAt = time.Now().UTC()
	return outcomeCreated, item
}

// merge folds the candidate into an existing item and persists the result.
// Merged confidence is the max of the two: merging adds evidence, it never
// weakens an item. Returns false when the collaborator or the write failed,
// in which case the caller falls back to creating a new item.
func (p *Pipeline) merge(ctx context.Context, conversationID string, c Candidate, best *memory.KnowledgeItem, score float64) bool {
	logging.ConsolidationDebug("Merging topic=%q into item=%d (score=%.3f)", c.Topic, best.ID, score)

	merged, err := p.runMerge(ctx, best.Content, c.Content)
	if err != nil {
		logging.ConsolidationError("Merge collaborator failed for item=%d: %v", best.ID, err)
		return false
	}

	confidence := best.Confidence
	if c.Confidence > confidence {
		confidence = c.Confidence
	}
	best.Content = merged
	best.Confidence = confidence
	best.AppendProvenance(conversationID)

	if err := p.store.UpdateKnowledgeItem(ctx, best.ID, best.UserID, merged, confidence, best.Provenance); err != nil {
		logging.ConsolidationError("Merge write failed for item=%d: %v", best.ID, err)
		return false
	}
	best.UpdatedAt = time.Now().UTC()
	return true
}

// Collaborator calls get a per-call timeout and one retry. Cancellation from
// the parent context is never retried.

func (p *Pipeline) extract(ctx context.Context, messages []memory.Message) ([]Candidate, error) {
	var out []Candidate
	err := p.withRetry(ctx, "extract", func(callCtx context.Context) error {
		var err error
		out, err = p.extractor.Extract(callCtx, messages)
		return err
	})
	return out, err
}

func (p *Pipeline) embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := p.withRetry(ctx, "embed", func(callCtx context.Context) error {
		var err error
		out, err = p.embedder.Embed(callCtx, text)
		return err
	})
	if err != nil {
		return nil, &memory.CollaboratorError{Collaborator: "embedder", Err: err}
	}
	return out, nil
}

func (p *Pipeline) runMerge(ctx context.Context, existing, incoming string) (string, error) {
	var out string
	err := p.withRetry(ctx, "merge", func(callCtx context.Context) error {
		var err error
		out, err = p.merger.Merge(callCtx, existing, incoming)
		return err
	})
	if err != nil {
		return "", &memory.CollaboratorError{Collaborator: "merger", Err: err}
	}
	return out, nil
}

func (p *Pipeline) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	const attempts = 2

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.CollaboratorTimeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return err
		}
		if attempt < attempts {
			logging.ConsolidationWarn("%s attempt %d failed, retrying: %v", op, attempt, err)
		}
	}
	return lastErr
}
