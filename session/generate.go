package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/smallmind-run/smallmind/engine"
	"github.com/smallmind-run/smallmind/sample"
	"github.com/smallmind-run/smallmind/smerr"
)

// prefillChunk bounds how many prompt tokens one Forward call ingests
// at a time, giving the cancellation point "before a prefill chunk" a
// concrete granularity to land on for long prompts.
const prefillChunk = 512

// GenerateStreaming runs prefill over prompt, then decodes one token
// per step until a stop condition fires, yielding an Event per step.
// Stop conditions are checked in a fixed priority every step:
// cancellation, then a stop token id, then a stop string, then the
// constraint mask reporting completion, then the max-new-tokens
// budget. Cancellation is additionally checked before each prefill
// chunk and before each decode step; engine.Forward itself checks
// between decoder layers mid-chunk.
func (s *Session) GenerateStreaming(ctx context.Context, prompt string, opts sample.Options, mask ConstraintMasker) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		promptIDs, err := s.vocab.Encode(prompt)
		if err != nil {
			yield(Event{}, err)
			return
		}
		if len(promptIDs) == 0 {
			yield(Event{}, smerr.ErrValidation)
			return
		}
		if maxContext := s.model.Config.MaxContext; len(promptIDs) > maxContext {
			yield(Event{}, fmt.Errorf("%w: prompt of %d tokens exceeds max_context %d", smerr.ErrContextOverflow, len(promptIDs), maxContext))
			return
		}

		st := sample.NewState(opts.Seed, opts.PenaltyWindow)
		for _, id := range promptIDs {
			st.Record(id)
		}

		lastLogits, pos, cancelled, err := s.prefill(ctx, promptIDs)
		if cancelled {
			yield(Event{Done: true, Reason: DoneReasonCancelled}, nil)
			return
		}
		if err != nil {
			yield(Event{}, err)
			return
		}
		if lastLogits == nil {
			yield(Event{}, errForwardFailed)
			return
		}

		var generated strings.Builder
		count := 0
		logits := lastLogits

		for {
			if ctx.Err() != nil {
				yield(Event{Done: true, Reason: DoneReasonCancelled}, nil)
				return
			}

			id := sample.Sample(logits, opts, st, mask)
			st.Record(id)
			if mask != nil {
				mask.Accept(id)
			}
			count++

			text := s.vocab.Decode([]int{id})
			generated.WriteString(text)

			done, reason := checkStop(count, id, generated.String(), opts, mask)
			ev := Event{TokenID: id, Text: text, Done: done, Reason: reason}
			if !yield(ev, nil) || done {
				return
			}

			next, err := engine.Forward(ctx, s.model, s.cache, []int{id}, engine.Options{
				StartPos:    pos,
				Pool:        s.pool,
				OnlyLastRow: true,
			})
			pos++
			if err != nil {
				if errors.Is(err, smerr.ErrCancelled) {
					yield(Event{Done: true, Reason: DoneReasonCancelled}, nil)
					return
				}
				yield(Event{}, err)
				return
			}
			logits = next
		}
	}
}

var errForwardFailed = errors.New("smallmind: prefill produced no logits")

// prefill ingests promptIDs in bounded chunks, returning the final
// chunk's last-row logits (used to sample the first generated token)
// and the next free cache position. Any error engine.Forward raises
// (context overflow, shape mismatch, a non-finite kernel result) is
// returned to the caller rather than swallowed, except cancellation,
// which is reported separately via the cancelled flag.
func (s *Session) prefill(ctx context.Context, promptIDs []int) (logits []float32, pos int, cancelled bool, err error) {
	for pos < len(promptIDs) {
		if ctx.Err() != nil {
			return nil, pos, true, nil
		}

		end := pos + prefillChunk
		if end > len(promptIDs) {
			end = len(promptIDs)
		}

		out, err := engine.Forward(ctx, s.model, s.cache, promptIDs[pos:end], engine.Options{
			StartPos:    pos,
			Pool:        s.pool,
			OnlyLastRow: true,
		})
		if err != nil {
			if errors.Is(err, smerr.ErrCancelled) {
				return nil, pos, true, nil
			}
			return nil, pos, false, err
		}

		logits = out
		pos = end
	}

	return logits, pos, false, nil
}

// checkStop evaluates every stop condition in priority order:
// stop-token, stop-string, constraint-complete, then max-new-tokens.
// Cancellation is checked by the caller, outside this function, since
// it takes priority over all of these.
func checkStop(count, id int, generated string, opts sample.Options, mask ConstraintMasker) (bool, DoneReason) {
	for _, stopID := range opts.StopTokenIDs {
		if id == stopID {
			return true, DoneReasonStopToken
		}
	}

	for _, s := range opts.StopStrings {
		if s != "" && strings.Contains(generated, s) {
			return true, DoneReasonStopString
		}
	}

	if mask != nil && mask.Complete() {
		return true, DoneReasonConstraintComplete
	}

	if count >= opts.MaxNewTokens {
		return true, DoneReasonMaxTokens
	}

	return false, DoneReasonMaxTokens
}
