package dataset

import "fmt"

// NumChoices is the number of answer options attached to every question.
const NumChoices = 4

// Split names one partition of the corpus.
type Split string

const (
	SplitTrain Split = "train"
	SplitDev   Split = "dev"
	SplitTest  Split = "test"
)

// splitFiles maps a split to its JSON-lines file relative to the corpus root.
// The test directory casing is kept as published with the corpus.
var splitFiles = map[Split]string{
	SplitTrain: "training_data/train.json",
	SplitDev:   "training_data/dev.json",
	SplitTest:  "test_Data/test.json",
}

// ParseSplit validates a split name.
func ParseSplit(name string) (Split, error) {
	s := Split(name)
	if _, ok := splitFiles[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSplit, name)
	}
	return s, nil
}

// RelPath returns the split file path relative to the corpus root.
func (s Split) RelPath() string {
	return splitFiles[s]
}

func (s Split) String() string { return string(s) }

// Example is one normalized question: the article used as context and the
// four candidate sentences built from the question and its options.
type Example struct {
	GUID       string
	Context    string
	Choices    [NumChoices]string
	// Label is nil for the test split.
	Label      *int
	// SequenceID is the record's q_id on the test split and 0 otherwise.
	SequenceID int64
}

// HasLabel reports whether the example carries a gold label.
func (e Example) HasLabel() bool {
	return e.Label != nil
}

// Record is the on-disk schema of a single JSON-lines row. Pointer fields
// distinguish a missing key from a zero value.
type Record struct {
	Article  *string `json:"article"`
	Question *string `json:"question"`
	Option0  *string `json:"option_0"`
	Option1  *string `json:"option_1"`
	Option2  *string `json:"option_2"`
	Option3  *string `json:"option_3"`
	Label    *int    `json:"label,omitempty"`
	QID      *int64  `json:"q_id,omitempty"`
}

// Labels is the fixed label vocabulary. It has five classes although every
// question has four options.
var Labels = []int{0, 1, 2, 3, 4}
