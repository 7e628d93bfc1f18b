package features

import (
	"errors"
	"fmt"

	internal "github.com/ZanzyTHEbar/mcqa-data/mcqa"
	"github.com/ZanzyTHEbar/mcqa-data/mcqa/dataset"
)

var (
	// ErrLengthInvariant means a padded sequence is not exactly MaxLength
	// long, i.e. the tokenizer and the encoder options disagree.
	ErrLengthInvariant = errors.New("padded sequence length does not match max length")
	ErrUnknownLabel    = errors.New("label not in label vocabulary")
	ErrInvalidOptions  = errors.New("invalid encoder options")
)

// ChoiceFeature is one (choice, context) encoding padded to MaxLength.
type ChoiceFeature struct {
	// Tokens is only kept for the first example of a conversion.
	Tokens        []string `json:"tokens,omitempty"`
	InputIDs      []int64  `json:"input_ids"`
	AttentionMask []int64  `json:"attention_mask"`
	SegmentIDs    []int64  `json:"segment_ids"`
}

// Feature holds the model inputs for one example.
type Feature struct {
	SequenceID int64                             `json:"example_id"`
	Choices    [dataset.NumChoices]ChoiceFeature `json:"choices_features"`
	// LabelID is -1 when the example has no label.
	LabelID    int                               `json:"label_id"`
}

// Options configures padding and conversion.
type Options struct {
	MaxLength           int
	PadOnLeft           bool
	PadToken            int64
	PadTokenSegmentID   int64
	MaskPaddingWithZero bool
	// Workers > 1 converts examples concurrently; output order is unchanged.
	Workers             int
	ProgressEvery       int
}

// DefaultOptions returns the huggingface-transformers v2.2 defaults.
func DefaultOptions() Options {
	return Options{
		MaxLength:           internal.DefaultMaxLength,
		PadOnLeft:           false,
		PadToken:            0,
		PadTokenSegmentID:   0,
		MaskPaddingWithZero: true,
		Workers:             1,
		ProgressEvery:       internal.DefaultProgressEvery,
	}
}

func (o Options) validate() error {
	if o.MaxLength <= 0 {
		return fmt.Errorf("%w: max length must be positive, got %d", ErrInvalidOptions, o.MaxLength)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidOptions, o.Workers)
	}
	return nil
}

// maskValues returns the mask value for real tokens and for padding.
func (o Options) maskValues() (realMask, padMask int64) {
	if o.MaskPaddingWithZero {
		return 1, 0
	}
	return 0, 1
}
