// Package session implements generation-session orchestration
// (component C11): the prefill+decode loop that drives engine.Forward
// over a kvcache.Cache, applies sample.Sample at each decode step
// against an optional constraint.* mask, and evaluates stop conditions
// in a fixed priority order every step.
package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/smallmind-run/smallmind/engine"
	"github.com/smallmind-run/smallmind/kvcache"
	"github.com/smallmind-run/smallmind/sample"
	"github.com/smallmind-run/smallmind/tokenizer"
	"github.com/smallmind-run/smallmind/workerpool"
)

// DoneReason explains why generation stopped.
type DoneReason int

const (
	DoneReasonMaxTokens DoneReason = iota
	DoneReasonStopToken
	DoneReasonStopString
	DoneReasonConstraintComplete
	DoneReasonCancelled
)

func (d DoneReason) String() string {
	switch d {
	case DoneReasonStopToken:
		return "stop_token"
	case DoneReasonStopString:
		return "stop_string"
	case DoneReasonConstraintComplete:
		return "constraint_complete"
	case DoneReasonCancelled:
		return "cancelled"
	default:
		return "max_tokens"
	}
}

// Event is one streamed decode step.
type Event struct {
	TokenID int
	Text    string
	Done    bool
	Reason  DoneReason
}

// ConstraintMasker is the subset of a constraint enforcer a session
// needs: masking, tracking the accepted token, and reporting
// completion. constraint.RegexEnforcer and constraint.GrammarMask both
// satisfy it, in addition to sample.ConstraintMasker.
type ConstraintMasker interface {
	sample.ConstraintMasker
	Accept(id int)
	Complete() bool
}

// Session is one independent generation over one model: a dedicated
// KV cache and sampling state, matching the spec's single-session,
// single-sequence model.
type Session struct {
	ID    string
	model *engine.Model
	vocab *tokenizer.Vocabulary
	cache *kvcache.Cache

	pool *workerpool.Pool
}

// New starts a session against model/vocab, with a worker pool sized
// by numThreads (0 resolves to runtime.NumCPU()). The pool is built
// once here and passed explicitly into every Forward call — the
// spec's "explicit per-engine handle, not a hidden global".
func New(model *engine.Model, vocab *tokenizer.Vocabulary, numThreads int) *Session {
	cfg := model.Config
	return &Session{
		ID:    uuid.NewString(),
		model: model,
		vocab: vocab,
		cache: kvcache.New(cfg.NumLayers, cfg.MaxContext, cfg.NumKVHeads, cfg.HeadDim),
		pool:  workerpool.New(numThreads),
	}
}

// Generate runs prefill then decode to completion and returns the full
// generated text plus why it stopped.
func (s *Session) Generate(ctx context.Context, prompt string, opts sample.Options, mask ConstraintMasker) (string, DoneReason, error) {
	var out []byte
	var reason DoneReason

	for ev, err := range s.GenerateStreaming(ctx, prompt, opts, mask) {
		if err != nil {
			return string(out), reason, err
		}
		out = append(out, ev.Text...)
		if ev.Done {
			reason = ev.Reason
		}
	}

	return string(out), reason, nil
}
