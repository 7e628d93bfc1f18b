package dataset

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Processor loads corpus splits from a fixed directory layout.
type Processor struct {
	dataDir string
	logger  zerolog.Logger
}

// NewProcessor creates a processor rooted at dataDir.
func NewProcessor(dataDir string, logger zerolog.Logger) *Processor {
	return &Processor{
		dataDir: dataDir,
		logger:  logger.With().Str("component", "processor").Logger(),
	}
}

// GetLabels returns the label vocabulary. The returned slice is a copy.
func (p *Processor) GetLabels() []int {
	out := make([]int, len(Labels))
	copy(out, Labels)
	return out
}

func (p *Processor) GetTrainExamples() ([]Example, error) {
	return p.GetExamples(SplitTrain)
}

func (p *Processor) GetDevExamples() ([]Example, error) {
	return p.GetExamples(SplitDev)
}

func (p *Processor) GetTestExamples() ([]Example, error) {
	return p.GetExamples(SplitTest)
}

// GetExamples reads the split file and converts every record to an Example.
// The first bad record aborts the load.
func (p *Processor) GetExamples(split Split) ([]Example, error) {
	rel := split.RelPath()
	if rel == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSplit, string(split))
	}
	path := filepath.Join(p.dataDir, rel)
	p.logger.Info().Str("split", split.String()).Str("path", path).Msg("loading examples")

	records, err := readRecords(path, split)
	if err != nil {
		return nil, err
	}
	examples := createExamples(records, split)
	p.logger.Debug().Str("split", split.String()).Int("count", len(examples)).Msg("examples loaded")
	return examples, nil
}

// createExamples maps validated records to examples in input order.
func createExamples(records []Record, split Split) []Example {
	examples := make([]Example, 0, len(records))
	for i := range records {
		rec := &records[i]
		ex := Example{
			GUID:    fmt.Sprintf("%s-%d", split, i),
			Context: *rec.Article,
		}
		for j, opt := range rec.options() {
			ex.Choices[j] = ReplacePlaceholder(*rec.Question, opt)
		}
		if split == SplitTest {
			ex.SequenceID = *rec.QID
		} else {
			label := *rec.Label
			ex.Label = &label
		}
		examples = append(examples, ex)
	}
	return examples
}
