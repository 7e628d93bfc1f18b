package features

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/mcqa-data/mcqa/dataset"
	"github.com/ZanzyTHEbar/mcqa-data/mcqa/tokenizer"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// Encoder turns examples into fixed-width features using an external
// pair tokenizer.
type Encoder struct {
	tok    tokenizer.PairEncoder
	opts   Options
	logger zerolog.Logger
}

// NewEncoder validates opts and returns an Encoder.
func NewEncoder(tok tokenizer.PairEncoder, opts Options, logger zerolog.Logger) (*Encoder, error) {
	if tok == nil {
		return nil, fmt.Errorf("%w: tokenizer is required", ErrInvalidOptions)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Workers == 0 {
		opts.Workers = 1
	}
	return &Encoder{
		tok:    tok,
		opts:   opts,
		logger: logger.With().Str("component", "encoder").Logger(),
	}, nil
}

// ConvertExamplesToFeatures is a one-shot helper around Encoder.Convert.
func ConvertExamplesToFeatures(ctx context.Context, examples []dataset.Example, labels []int,
	tok tokenizer.PairEncoder, opts Options, logger zerolog.Logger,
) ([]Feature, error) {
	enc, err := NewEncoder(tok, opts, logger)
	if err != nil {
		return nil, err
	}
	return enc.Convert(ctx, examples, labels)
}

// Convert returns one feature per example, in input order.
func (e *Encoder) Convert(ctx context.Context, examples []dataset.Example, labels []int) ([]Feature, error) {
	out, _, err := e.ConvertWithStats(ctx, examples, labels)
	return out, err
}

// ConvertWithStats is Convert plus length and truncation statistics. Any
// error aborts the whole conversion; no partial result is returned.
func (e *Encoder) ConvertWithStats(ctx context.Context, examples []dataset.Example, labels []int) ([]Feature, *Stats, error) {
	labelMap := make(map[int]int, len(labels))
	for i, l := range labels {
		labelMap[l] = i
	}

	out := make([]Feature, len(examples))
	per := make([]exampleStats, len(examples))
	var warnOnce sync.Once

	convert := func(i int) error {
		f, es, err := e.convertOne(i, examples[i], labelMap)
		if err != nil {
			return fmt.Errorf("example %d (%s): %w", i, examples[i].GUID, err)
		}
		if es.truncated > 0 {
			warnOnce.Do(func() {
				e.logger.Warn().Int("example_index", i).Int("max_length", e.opts.MaxLength).
					Msg("cropping tokens; consider a larger max sequence length")
			})
		}
		if e.opts.ProgressEvery > 0 && i%e.opts.ProgressEvery == 0 {
			e.logger.Info().Int("example_index", i).Msg("convert")
		}
		out[i] = f
		per[i] = es
		return nil
	}

	if e.opts.Workers <= 1 {
		for i := range examples {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			if err := convert(i); err != nil {
				return nil, nil, err
			}
		}
	} else {
		p := pool.New().WithMaxGoroutines(e.opts.Workers).WithContext(ctx).
			WithCancelOnError().WithFirstError()
		for i := range examples {
			i := i
			p.Go(func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				return convert(i)
			})
		}
		if err := p.Wait(); err != nil {
			return nil, nil, err
		}
	}
	return out, newStats(per), nil
}

func (e *Encoder) convertOne(index int, ex dataset.Example, labelMap map[int]int) (Feature, exampleStats, error) {
	f := Feature{SequenceID: ex.SequenceID, LabelID: -1}
	var es exampleStats
	encodeOpts := tokenizer.EncodeOptions{
		AddSpecialTokens:  true,
		MaxLength:         e.opts.MaxLength,
		ReturnOverflowing: true,
	}

	for c, choice := range ex.Choices {
		enc, err := e.tok.EncodePair(choice, ex.Context, encodeOpts)
		if err != nil {
			return Feature{}, es, fmt.Errorf("choice %d: %w", c, err)
		}
		cf, err := padChoice(enc.InputIDs, enc.TokenTypeIDs, e.opts)
		if err != nil {
			return Feature{}, es, fmt.Errorf("choice %d: %w", c, err)
		}
		if index == 0 {
			cf.Tokens = e.tok.ConvertIDsToTokens(enc.InputIDs)
		}
		f.Choices[c] = cf
		es.lengths[c] = len(enc.InputIDs)
		es.truncated += enc.NumTruncated
	}

	if ex.Label != nil {
		id, ok := labelMap[*ex.Label]
		if !ok {
			return Feature{}, es, fmt.Errorf("%w: %d", ErrUnknownLabel, *ex.Label)
		}
		f.LabelID = id
	}

	if index == 0 {
		e.dumpExample(f)
	}
	return f, es, nil
}

// dumpExample logs every id sequence of the first feature for inspection.
func (e *Encoder) dumpExample(f Feature) {
	e.logger.Info().Int64("example_id", f.SequenceID).Msg("*** Example ***")
	for c, cf := range f.Choices {
		e.logger.Info().
			Int("choice", c).
			Str("tokens", strings.Join(cf.Tokens, " ")).
			Str("input_ids", joinInts(cf.InputIDs)).
			Str("input_mask", joinInts(cf.AttentionMask)).
			Str("segment_ids", joinInts(cf.SegmentIDs)).
			Int("label", f.LabelID).
			Msg("example choice")
	}
}

func joinInts(seq []int64) string {
	parts := make([]string, len(seq))
	for i, v := range seq {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, " ")
}
