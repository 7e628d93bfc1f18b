package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	"github.com/sugarme/tokenizer/processor"
)

// SugarWordPiece wraps sugarme/tokenizer (BERT-style) for pair encoding.
// Truncation is configured once at construction; the tokenizers are only read
// while encoding, so one instance serves concurrent callers.
type SugarWordPiece struct {
	t *tk.Tokenizer
	// full encodes without truncation to measure how many tokens t dropped.
	full      *tk.Tokenizer
	maxSeqLen int
}

// NewSugarWordPiece loads vocab.txt (or a directory containing it) and builds
// a BERT WordPiece tokenizer with [CLS] a [SEP] b [SEP] post-processing.
func NewSugarWordPiece(vocabPath string, maxSeq int, strategy TruncationStrategy) (*SugarWordPiece, error) {
	vocabFile := vocabPath
	if fi, err := os.Stat(vocabPath); err == nil && fi.IsDir() {
		vocabFile = filepath.Join(vocabPath, "vocab.txt")
	}
	if _, err := os.Stat(vocabFile); err != nil {
		return nil, fmt.Errorf("%w: vocab file %s: %v", ErrUnsupported, vocabFile, err)
	}
	clsID, sepID, err := specialIDs(vocabFile)
	if err != nil {
		return nil, err
	}

	t := newBertTokenizer(vocabFile, clsID, sepID)
	if err := withTruncation(t, maxSeq, strategy); err != nil {
		return nil, err
	}
	return &SugarWordPiece{t: t, full: newBertTokenizer(vocabFile, clsID, sepID), maxSeqLen: maxSeq}, nil
}

func newBertTokenizer(vocabFile string, clsID, sepID int) *tk.Tokenizer {
	wp, err := wordpiece.NewWordPieceFromFile(vocabFile, "[UNK]")
	if err != nil {
		wp = wordpiece.NewWordPieceBuilder().Files(vocabFile).Build()
	}

	t := tk.NewTokenizer(wp)
	t.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())
	t.WithPostProcessor(processor.NewBertProcessing(
		processor.PostToken{Value: "[SEP]", Id: sepID},
		processor.PostToken{Value: "[CLS]", Id: clsID},
	))
	return t
}

// NewSugarPretrained loads a HuggingFace tokenizer.json. Its own normalizer
// and post-processor are kept; truncation is overridden and padding is
// switched off since the encoder pads itself.
func NewSugarPretrained(path string, maxSeq int, strategy TruncationStrategy) (*SugarWordPiece, error) {
	file := path
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		file = filepath.Join(path, "tokenizer.json")
	}
	t, err := pretrained.FromFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrUnsupported, file, err)
	}
	full, err := pretrained.FromFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrUnsupported, file, err)
	}
	t.WithPadding(nil)
	full.WithPadding(nil)
	full.WithTruncation(nil)
	if err := withTruncation(t, maxSeq, strategy); err != nil {
		return nil, err
	}
	return &SugarWordPiece{t: t, full: full, maxSeqLen: maxSeq}, nil
}

func withTruncation(t *tk.Tokenizer, maxSeq int, strategy TruncationStrategy) error {
	var s tk.TruncationStrategy
	switch strategy {
	case LongestFirst, "":
		s = tk.LongestFirst
	case OnlyFirst:
		s = tk.OnlyFirst
	case OnlySecond:
		s = tk.OnlySecond
	default:
		return fmt.Errorf("%w: truncation strategy %q", ErrUnsupported, strategy)
	}
	t.WithTruncation(&tk.TruncationParams{MaxLength: maxSeq, Strategy: s})
	return nil
}

func pairInput(text, pair string) tk.EncodeInput {
	return tk.NewDualEncodeInput(tk.NewInputSequence(text), tk.NewInputSequence(pair))
}

// EncodePair encodes (text, pair). MaxLength must match the length the
// tokenizer was built with.
func (s *SugarWordPiece) EncodePair(text, pair string, opts EncodeOptions) (*Encoding, error) {
	if opts.MaxLength > 0 && opts.MaxLength != s.maxSeqLen {
		return nil, fmt.Errorf("%w: tokenizer built for max length %d, asked for %d", ErrUnsupported, s.maxSeqLen, opts.MaxLength)
	}
	enc, err := s.t.Encode(pairInput(text, pair), opts.AddSpecialTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pair: %w", err)
	}

	out := &Encoding{
		InputIDs:     toInt64(enc.GetIds()),
		TokenTypeIDs: toInt64(enc.GetTypeIds()),
		Tokens:       enc.GetTokens(),
	}
	// Overflow pieces repeat tokens and specials, so the dropped count is
	// the untruncated length minus the kept one.
	if opts.ReturnOverflowing && len(out.InputIDs) >= s.maxSeqLen {
		full, err := s.full.Encode(pairInput(text, pair), opts.AddSpecialTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to encode untruncated pair: %w", err)
		}
		if n := len(full.GetIds()) - len(out.InputIDs); n > 0 {
			out.NumTruncated = n
		}
	}
	return out, nil
}

func (s *SugarWordPiece) ConvertIDsToTokens(ids []int64) []string {
	tokens := make([]string, len(ids))
	for i, id := range ids {
		tok, ok := s.t.IdToToken(int(id))
		if !ok {
			tok = "[UNK]"
		}
		tokens[i] = tok
	}
	return tokens
}

// specialIDs finds the [CLS] and [SEP] ids by line order in vocab.txt,
// falling back to the bert-base ids.
func specialIDs(vocabFile string) (clsID, sepID int, err error) {
	clsID, sepID = 101, 102
	f, err := os.Open(vocabFile)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open vocab %s: %w", vocabFile, err)
	}
	defer f.Close()

	idx := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tok := strings.TrimSpace(scanner.Text())
		if tok == "" {
			continue
		}
		switch tok {
		case "[CLS]":
			clsID = idx
		case "[SEP]":
			sepID = idx
		}
		idx++
	}
	return clsID, sepID, scanner.Err()
}

func toInt64(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}
