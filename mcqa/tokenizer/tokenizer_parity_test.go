package tokenizer

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSugarWordPiecePairParity compares pair encodings against the reference
// HuggingFace tokenizer (Python). Skipped when python or transformers is not
// available.
func TestSugarWordPiecePairParity(t *testing.T) {
	py, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not found; skipping parity test")
	}

	dumpVocab := `import json
from transformers import AutoTokenizer
t=AutoTokenizer.from_pretrained("bert-base-uncased")
v=t.get_vocab()
print(json.dumps([k for k,_ in sorted(v.items(), key=lambda kv:kv[1])]))`

	out, err := exec.Command(py, "-c", dumpVocab).Output()
	if err != nil {
		t.Skipf("python transformers not available or network issue: %v", err)
	}
	var tokens []string
	require.NoError(t, json.Unmarshal(out, &tokens))

	vocab := filepath.Join(t.TempDir(), "vocab.txt")
	f, err := os.Create(vocab)
	require.NoError(t, err)
	for _, tok := range tokens {
		_, err := f.WriteString(tok + "\n")
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	const maxLen = 16
	swp, err := NewSugarWordPiece(vocab, maxLen, LongestFirst)
	require.NoError(t, err)

	pairs := [][2]string{
		{"the cat sat", "hello world"},
		{"a dog", "the quick brown fox jumps over the lazy dog and keeps on running"},
	}

	pyEnc := `import json
from transformers import AutoTokenizer
t=AutoTokenizer.from_pretrained("bert-base-uncased")
p=[("the cat sat","hello world"),("a dog","the quick brown fox jumps over the lazy dog and keeps on running")]
print(json.dumps([t(a, b, truncation='longest_first', max_length=16) for a,b in p], default=dict))`

	out2, err := exec.Command(py, "-c", pyEnc).Output()
	if err != nil {
		t.Skipf("python encode failed: %v", err)
	}
	var pyRes []struct {
		InputIDs     []int64 `json:"input_ids"`
		TokenTypeIDs []int64 `json:"token_type_ids"`
	}
	require.NoError(t, json.Unmarshal(out2, &pyRes))
	require.Len(t, pyRes, len(pairs))

	for i, p := range pairs {
		enc, err := swp.EncodePair(p[0], p[1], EncodeOptions{AddSpecialTokens: true, MaxLength: maxLen})
		require.NoError(t, err)
		assert.Equal(t, pyRes[i].InputIDs, enc.InputIDs, "pair %d ids", i)
		assert.Equal(t, pyRes[i].TokenTypeIDs, enc.TokenTypeIDs, "pair %d segments", i)
	}
}

func TestSugarWordPieceMaxLengthMismatch(t *testing.T) {
	vocab := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(vocab, []byte("[PAD]\n[UNK]\n[CLS]\n[SEP]\ncat\n"), 0o644))

	swp, err := NewSugarWordPiece(vocab, 8, LongestFirst)
	require.NoError(t, err)

	_, err = swp.EncodePair("cat", "cat", EncodeOptions{AddSpecialTokens: true, MaxLength: 16})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestNewSugarWordPieceMissingVocab(t *testing.T) {
	_, err := NewSugarWordPiece(filepath.Join(t.TempDir(), "nope.txt"), 8, LongestFirst)
	assert.ErrorIs(t, err, ErrUnsupported)
}
