package features

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ZanzyTHEbar/mcqa-data/mcqa/dataset"
	"github.com/ZanzyTHEbar/mcqa-data/mcqa/tokenizer"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokenizer maps every whitespace word to 1000+len(word) and wraps the
// pair as [CLS]=101 text [SEP]=102 pair [SEP]=102.
type fakeTokenizer struct {
	ignoreMaxLength bool
	shortSegments   bool
	failOn          string
	calls           atomic.Int64
}

func (f *fakeTokenizer) EncodePair(text, pair string, opts tokenizer.EncodeOptions) (*tokenizer.Encoding, error) {
	f.calls.Add(1)
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("malformed text")
	}
	enc := &tokenizer.Encoding{}
	push := func(id, seg int64) {
		enc.InputIDs = append(enc.InputIDs, id)
		enc.TokenTypeIDs = append(enc.TokenTypeIDs, seg)
	}
	push(101, 0)
	for _, w := range strings.Fields(text) {
		push(int64(1000+len(w)), 0)
	}
	push(102, 0)
	for _, w := range strings.Fields(pair) {
		push(int64(1000+len(w)), 1)
	}
	push(102, 1)

	if !f.ignoreMaxLength && opts.MaxLength > 0 && len(enc.InputIDs) > opts.MaxLength {
		cut := len(enc.InputIDs) - opts.MaxLength
		enc.InputIDs = append(enc.InputIDs[:opts.MaxLength-1], 102)
		enc.TokenTypeIDs = append(enc.TokenTypeIDs[:opts.MaxLength-1], 1)
		if opts.ReturnOverflowing {
			enc.NumTruncated = cut
		}
	}
	if f.shortSegments {
		enc.TokenTypeIDs = enc.TokenTypeIDs[:len(enc.TokenTypeIDs)-1]
	}
	return enc, nil
}

func (f *fakeTokenizer) ConvertIDsToTokens(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fmt.Sprintf("t%d", id)
	}
	return out
}

func intp(v int) *int { return &v }

func labeled(label int, context string, choices ...string) dataset.Example {
	ex := dataset.Example{Context: context, Label: intp(label)}
	copy(ex.Choices[:], choices)
	return ex
}

func testOptions(maxLen int) Options {
	opts := DefaultOptions()
	opts.MaxLength = maxLen
	return opts
}

func TestConvertFixedWidth(t *testing.T) {
	examples := []dataset.Example{
		labeled(3, "the article text", "a b", "c", "d e f", "g"),
		labeled(0, "short", "x", "y", "z", "w"),
	}
	feats, err := ConvertExamplesToFeatures(context.Background(), examples, dataset.Labels,
		&fakeTokenizer{}, testOptions(12), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, feats, 2)

	for i, f := range feats {
		for c, cf := range f.Choices {
			assert.Len(t, cf.InputIDs, 12, "example %d choice %d", i, c)
			assert.Len(t, cf.AttentionMask, 12, "example %d choice %d", i, c)
			assert.Len(t, cf.SegmentIDs, 12, "example %d choice %d", i, c)
		}
	}

	first := feats[0].Choices[0]
	assert.Equal(t, []int64{101, 1001, 1001, 102, 1003, 1007, 1004, 102, 0, 0, 0, 0}, first.InputIDs)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0}, first.AttentionMask)
	assert.Equal(t, []int64{0, 0, 0, 0, 1, 1, 1, 1, 0, 0, 0, 0}, first.SegmentIDs)
	assert.Equal(t, 3, feats[0].LabelID)
	assert.Equal(t, 0, feats[1].LabelID)
}

func TestConvertPadOnLeftInvertedMask(t *testing.T) {
	opts := testOptions(6)
	opts.PadOnLeft = true
	opts.PadToken = 9
	opts.PadTokenSegmentID = 4
	opts.MaskPaddingWithZero = false

	feats, err := ConvertExamplesToFeatures(context.Background(),
		[]dataset.Example{labeled(1, "ctx", "a", "b", "c", "d")}, dataset.Labels,
		&fakeTokenizer{}, opts, zerolog.Nop())
	require.NoError(t, err)

	cf := feats[0].Choices[0]
	assert.Equal(t, []int64{9, 101, 1001, 102, 1003, 102}, cf.InputIDs)
	assert.Equal(t, []int64{1, 0, 0, 0, 0, 0}, cf.AttentionMask)
	assert.Equal(t, []int64{4, 0, 0, 0, 1, 1}, cf.SegmentIDs)
}

func TestConvertLabels(t *testing.T) {
	test := dataset.Example{Context: "c", SequenceID: 424242}
	copy(test.Choices[:], []string{"a", "b", "c", "d"})

	examples := []dataset.Example{
		labeled(4, "c", "a", "b", "c", "d"),
		test,
		labeled(3, "c", "a", "b", "c", "d"),
	}
	feats, err := ConvertExamplesToFeatures(context.Background(), examples, dataset.Labels,
		&fakeTokenizer{}, testOptions(16), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 4, feats[0].LabelID)
	assert.Equal(t, -1, feats[1].LabelID)
	assert.Equal(t, int64(424242), feats[1].SequenceID)
	assert.Equal(t, 3, feats[2].LabelID)
	assert.Equal(t, int64(0), feats[2].SequenceID)
}

func TestConvertLabelMapUsesListOrder(t *testing.T) {
	feats, err := ConvertExamplesToFeatures(context.Background(),
		[]dataset.Example{labeled(3, "c", "a", "b", "c", "d")}, []int{3, 2, 1, 0, 4},
		&fakeTokenizer{}, testOptions(16), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, feats[0].LabelID)
}

func TestConvertUnknownLabel(t *testing.T) {
	_, err := ConvertExamplesToFeatures(context.Background(),
		[]dataset.Example{labeled(7, "c", "a", "b", "c", "d")}, dataset.Labels,
		&fakeTokenizer{}, testOptions(16), zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnknownLabel)
}

func TestConvertTokensOnlyForFirstExample(t *testing.T) {
	examples := []dataset.Example{
		labeled(0, "c", "a", "b", "c", "d"),
		labeled(1, "c", "a", "b", "c", "d"),
	}
	feats, err := ConvertExamplesToFeatures(context.Background(), examples, dataset.Labels,
		&fakeTokenizer{}, testOptions(8), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"t101", "t1001", "t102", "t1001", "t102"}, feats[0].Choices[0].Tokens)
	for _, cf := range feats[1].Choices {
		assert.Nil(t, cf.Tokens)
	}
}

func TestConvertLengthInvariant(t *testing.T) {
	examples := []dataset.Example{labeled(0, "one two three four", "a", "b", "c", "d")}

	_, err := ConvertExamplesToFeatures(context.Background(), examples, dataset.Labels,
		&fakeTokenizer{ignoreMaxLength: true}, testOptions(4), zerolog.Nop())
	assert.ErrorIs(t, err, ErrLengthInvariant)

	_, err = ConvertExamplesToFeatures(context.Background(), examples, dataset.Labels,
		&fakeTokenizer{shortSegments: true}, testOptions(16), zerolog.Nop())
	assert.ErrorIs(t, err, ErrLengthInvariant)
}

func TestConvertTokenizerFailureAborts(t *testing.T) {
	examples := []dataset.Example{
		labeled(0, "c", "a", "b", "c", "d"),
		labeled(0, "c", "a", "BAD", "c", "d"),
		labeled(0, "c", "a", "b", "c", "d"),
	}
	feats, err := ConvertExamplesToFeatures(context.Background(), examples, dataset.Labels,
		&fakeTokenizer{failOn: "BAD"}, testOptions(16), zerolog.Nop())
	require.Error(t, err)
	assert.Nil(t, feats)
	assert.Contains(t, err.Error(), "example 1")
	assert.Contains(t, err.Error(), "choice 1")
}

func TestConvertParallelKeepsOrder(t *testing.T) {
	examples := make([]dataset.Example, 200)
	for i := range examples {
		examples[i] = labeled(i%5, strings.Repeat("w ", i%7), "a", "bb", "ccc", "dddd")
		examples[i].SequenceID = int64(i)
	}

	seq, err := ConvertExamplesToFeatures(context.Background(), examples, dataset.Labels,
		&fakeTokenizer{}, testOptions(16), zerolog.Nop())
	require.NoError(t, err)

	opts := testOptions(16)
	opts.Workers = 8
	par, err := ConvertExamplesToFeatures(context.Background(), examples, dataset.Labels,
		&fakeTokenizer{}, opts, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, seq, par)
	for i, f := range par {
		assert.Equal(t, int64(i), f.SequenceID)
	}
}

func TestConvertParallelFailure(t *testing.T) {
	examples := make([]dataset.Example, 50)
	for i := range examples {
		examples[i] = labeled(0, "c", "a", "b", "c", "d")
	}
	examples[25].Choices[2] = "BAD"

	opts := testOptions(16)
	opts.Workers = 4
	feats, err := ConvertExamplesToFeatures(context.Background(), examples, dataset.Labels,
		&fakeTokenizer{failOn: "BAD"}, opts, zerolog.Nop())
	require.Error(t, err)
	assert.Nil(t, feats)
}

func TestConvertCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tok := &fakeTokenizer{}
	_, err := ConvertExamplesToFeatures(ctx, []dataset.Example{labeled(0, "c", "a", "b", "c", "d")},
		dataset.Labels, tok, testOptions(16), zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, tok.calls.Load())
}

func TestConvertEmpty(t *testing.T) {
	feats, stats, err := mustEncoder(t, &fakeTokenizer{}, testOptions(8)).
		ConvertWithStats(context.Background(), nil, dataset.Labels)
	require.NoError(t, err)
	assert.Empty(t, feats)
	assert.Equal(t, 0, stats.Examples)
	assert.Equal(t, 0, stats.TruncatedExamples())
}

func TestConvertLogsFirstExampleOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	examples := []dataset.Example{
		labeled(2, "c", "a", "b", "c", "d"),
		labeled(1, "c", "a", "b", "c", "d"),
		labeled(1, "c", "a", "b", "c", "d"),
	}
	opts := testOptions(8)
	opts.ProgressEvery = 2

	_, err := ConvertExamplesToFeatures(context.Background(), examples, dataset.Labels, &fakeTokenizer{}, opts, logger)
	require.NoError(t, err)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "*** Example ***"))
	assert.Equal(t, 4, strings.Count(out, `"message":"example choice"`))
	assert.Contains(t, out, `"input_ids":"101 1001 102 1001 102 0 0 0"`)
	assert.Contains(t, out, `"input_mask":"1 1 1 1 1 0 0 0"`)
	assert.Contains(t, out, `"label":2`)
	assert.Equal(t, 2, strings.Count(out, `"message":"convert"`))
}

func TestNewEncoderValidation(t *testing.T) {
	_, err := NewEncoder(nil, testOptions(8), zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = NewEncoder(&fakeTokenizer{}, testOptions(0), zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidOptions)

	opts := testOptions(8)
	opts.Workers = -1
	_, err = NewEncoder(&fakeTokenizer{}, opts, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestConvertWithWordPiece(t *testing.T) {
	vocab := "[PAD]\n[UNK]\n[CLS]\n[SEP]\n他\n喜\n欢\n猫\n狗\n。\n"
	wp, err := tokenizer.NewWordPiece(strings.NewReader(vocab), 10, tokenizer.LongestFirst)
	require.NoError(t, err)

	ex := labeled(1, "他喜欢猫。", "他 喜欢 猫", "他 喜欢 狗", "猫", "狗")
	feats, err := ConvertExamplesToFeatures(context.Background(), []dataset.Example{ex}, dataset.Labels,
		wp, testOptions(10), zerolog.Nop())
	require.NoError(t, err)

	cf := feats[0].Choices[2]
	assert.Equal(t, []int64{2, 7, 3, 4, 5, 6, 7, 9, 3, 0}, cf.InputIDs)
	assert.Equal(t, []int64{0, 0, 0, 1, 1, 1, 1, 1, 1, 0}, cf.SegmentIDs)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 1, 1, 1, 1, 0}, cf.AttentionMask)
	assert.Equal(t, []string{"[CLS]", "猫", "[SEP]", "他", "喜", "欢", "猫", "。", "[SEP]"}, cf.Tokens)
}

func mustEncoder(t *testing.T, tok tokenizer.PairEncoder, opts Options) *Encoder {
	t.Helper()
	enc, err := NewEncoder(tok, opts, zerolog.Nop())
	require.NoError(t, err)
	return enc
}
