package tokenizer

import (
	"fmt"
	"strings"
)

// PairEncoder jointly encodes a (text, pair) sequence pair for a
// pretrained encoder and can map ids back to token strings.
type PairEncoder interface {
	EncodePair(text, pair string, opts EncodeOptions) (*Encoding, error)
	ConvertIDsToTokens(ids []int64) []string
}

// EncodeOptions mirrors the flags a pretrained tokenizer accepts per call.
type EncodeOptions struct {
	AddSpecialTokens  bool
	MaxLength         int
	ReturnOverflowing bool
}

// Encoding is the unpadded result of encoding one pair.
type Encoding struct {
	InputIDs     []int64
	TokenTypeIDs []int64
	Tokens       []string
	// NumTruncated counts tokens dropped to respect MaxLength. It is only
	// filled when ReturnOverflowing was requested.
	NumTruncated int
}

// TruncationStrategy selects which sequence of a pair is shortened.
type TruncationStrategy string

const (
	LongestFirst TruncationStrategy = "longest_first"
	OnlyFirst    TruncationStrategy = "only_first"
	OnlySecond   TruncationStrategy = "only_second"
)

// ParseTruncationStrategy accepts the snake_case names used in config files.
func ParseTruncationStrategy(s string) (TruncationStrategy, error) {
	switch TruncationStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", LongestFirst:
		return LongestFirst, nil
	case OnlyFirst:
		return OnlyFirst, nil
	case OnlySecond:
		return OnlySecond, nil
	}
	return "", fmt.Errorf("%w: truncation strategy %q", ErrUnsupported, s)
}

// Config holds basic tokenizer settings
type Config struct {
	// Kind is one of "wordpiece", "pretrained" or "vocab".
	Kind       string
	Path       string
	MaxSeqLen  int
	Truncation TruncationStrategy
}

// ErrUnsupported indicates the tokenizer could not be initialized
var ErrUnsupported = fmt.Errorf("unsupported tokenizer configuration")

// New builds a PairEncoder for the configured kind. wordpiece and pretrained
// use sugarme/tokenizer. The vocab kind is the in-package WordPiece, a test
// and fallback path without BERT normalization; it is not for production.
func New(cfg Config) (PairEncoder, error) {
	if cfg.MaxSeqLen <= 0 {
		return nil, fmt.Errorf("%w: max sequence length must be positive, got %d", ErrUnsupported, cfg.MaxSeqLen)
	}
	var (
		enc PairEncoder
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "wordpiece", "bert", "":
		enc, err = NewSugarWordPiece(cfg.Path, cfg.MaxSeqLen, cfg.Truncation)
	case "pretrained", "tokenizer.json", "hf":
		enc, err = NewSugarPretrained(cfg.Path, cfg.MaxSeqLen, cfg.Truncation)
	case "vocab", "basic":
		enc, err = LoadWordPieceFromVocab(cfg.Path, cfg.MaxSeqLen, cfg.Truncation)
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnsupported, cfg.Kind)
	}
	if err != nil {
		return nil, err
	}
	return enc, nil
}
