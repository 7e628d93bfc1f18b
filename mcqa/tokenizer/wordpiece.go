package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

const (
	unkToken = "[UNK]"
	clsToken = "[CLS]"
	sepToken = "[SEP]"
	// maxCharsPerWord matches the BERT reference: longer words become [UNK].
	maxCharsPerWord = 100
)

// WordPiece is a minimal greedy WordPiece tokenizer over a vocab.txt, used by
// tests and the vocab kind of New. It has no normalizer beyond
// whitespace/punctuation/CJK splitting; use SugarWordPiece for real models.
type WordPiece struct {
	vocab     map[string]int64
	inv       []string
	unkID     int64
	maxSeqLen int
	strategy  TruncationStrategy
}

func LoadWordPieceFromVocab(path string, maxSeq int, strategy TruncationStrategy) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewWordPiece(f, maxSeq, strategy)
}

// NewWordPiece reads one token per line; the line order defines the ids.
func NewWordPiece(r io.Reader, maxSeq int, strategy TruncationStrategy) (*WordPiece, error) {
	if strategy == "" {
		strategy = LongestFirst
	}
	vocab := make(map[string]int64, 60000)
	var inv []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tok := strings.TrimSpace(scanner.Text())
		if tok == "" {
			continue
		}
		vocab[tok] = int64(len(inv))
		inv = append(inv, tok)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, special := range []string{unkToken, clsToken, sepToken} {
		if _, ok := vocab[special]; !ok {
			return nil, fmt.Errorf("%w: vocab has no %s token", ErrUnsupported, special)
		}
	}
	return &WordPiece{
		vocab:     vocab,
		inv:       inv,
		unkID:     vocab[unkToken],
		maxSeqLen: maxSeq,
		strategy:  strategy,
	}, nil
}

// EncodePair produces [CLS] text [SEP] pair [SEP] with segment ids 0 for the
// first part and 1 for the second, truncating tokens per the strategy.
func (w *WordPiece) EncodePair(text, pair string, opts EncodeOptions) (*Encoding, error) {
	a := w.tokenize(text)
	b := w.tokenize(pair)

	maxLen := opts.MaxLength
	if maxLen <= 0 {
		maxLen = w.maxSeqLen
	}
	special := 0
	if opts.AddSpecialTokens {
		special = 3
	}

	var truncated int
	if maxLen > 0 {
		var err error
		a, b, truncated, err = truncatePair(a, b, maxLen-special, w.strategy)
		if err != nil {
			return nil, err
		}
	}

	enc := &Encoding{}
	push := func(tok string, segment int64) {
		enc.Tokens = append(enc.Tokens, tok)
		enc.InputIDs = append(enc.InputIDs, w.id(tok))
		enc.TokenTypeIDs = append(enc.TokenTypeIDs, segment)
	}
	if opts.AddSpecialTokens {
		push(clsToken, 0)
	}
	for _, tok := range a {
		push(tok, 0)
	}
	if opts.AddSpecialTokens {
		push(sepToken, 0)
	}
	for _, tok := range b {
		push(tok, 1)
	}
	if opts.AddSpecialTokens {
		push(sepToken, 1)
	}
	if opts.ReturnOverflowing {
		enc.NumTruncated = truncated
	}
	return enc, nil
}

func (w *WordPiece) ConvertIDsToTokens(ids []int64) []string {
	tokens := make([]string, len(ids))
	for i, id := range ids {
		if id >= 0 && int(id) < len(w.inv) {
			tokens[i] = w.inv[id]
		} else {
			tokens[i] = unkToken
		}
	}
	return tokens
}

func (w *WordPiece) id(tok string) int64 {
	if id, ok := w.vocab[tok]; ok {
		return id
	}
	return w.unkID
}

// tokenize splits on whitespace, punctuation and CJK ideographs, then applies
// greedy longest-match-first WordPiece to each word.
func (w *WordPiece) tokenize(text string) []string {
	var out []string
	for _, word := range splitWords(text) {
		out = append(out, w.wordPieces(word)...)
	}
	return out
}

func (w *WordPiece) wordPieces(word string) []string {
	runes := []rune(word)
	if len(runes) > maxCharsPerWord {
		return []string{unkToken}
	}
	var pieces []string
	for start := 0; start < len(runes); {
		end := len(runes)
		found := ""
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := w.vocab[sub]; ok {
				found = sub
				break
			}
			end--
		}
		if found == "" {
			return []string{unkToken}
		}
		pieces = append(pieces, found)
		start = end
	}
	return pieces
}

func splitWords(text string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.Is(unicode.Han, r):
			flush()
			words = append(words, string(r))
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

// truncatePair removes tokens from the end of a and/or b until
// len(a)+len(b) <= budget.
func truncatePair(a, b []string, budget int, strategy TruncationStrategy) ([]string, []string, int, error) {
	if budget < 0 {
		return nil, nil, 0, fmt.Errorf("%w: max length too small for special tokens", ErrUnsupported)
	}
	excess := len(a) + len(b) - budget
	if excess <= 0 {
		return a, b, 0, nil
	}
	switch strategy {
	case OnlyFirst:
		if excess > len(a) {
			return nil, nil, 0, fmt.Errorf("%w: cannot truncate first sequence by %d tokens", ErrUnsupported, excess)
		}
		return a[:len(a)-excess], b, excess, nil
	case OnlySecond:
		if excess > len(b) {
			return nil, nil, 0, fmt.Errorf("%w: cannot truncate second sequence by %d tokens", ErrUnsupported, excess)
		}
		return a, b[:len(b)-excess], excess, nil
	}
	for i := 0; i < excess; i++ {
		if len(a) > len(b) {
			a = a[:len(a)-1]
		} else {
			b = b[:len(b)-1]
		}
	}
	return a, b, excess, nil
}
