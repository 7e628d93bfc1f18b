package features

import (
	"sort"

	"github.com/ZanzyTHEbar/mcqa-data/mcqa/dataset"

	"github.com/RoaringBitmap/roaring"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes unpadded choice lengths and truncation for one
// conversion. It helps pick a MaxLength for a corpus.
type Stats struct {
	Examples        int
	Choices         int
	MeanLength      float64
	P95Length       float64
	LongestSequence int
	TruncatedTokens int
	// Truncated holds the indices of examples with at least one truncated choice.
	Truncated       *roaring.Bitmap
}

type exampleStats struct {
	lengths   [dataset.NumChoices]int
	truncated int
}

func newStats(per []exampleStats) *Stats {
	s := &Stats{
		Examples:  len(per),
		Truncated: roaring.New(),
	}
	lengths := make([]float64, 0, len(per)*dataset.NumChoices)
	for i, es := range per {
		for _, l := range es.lengths {
			lengths = append(lengths, float64(l))
		}
		if es.truncated > 0 {
			s.TruncatedTokens += es.truncated
			s.Truncated.Add(uint32(i))
		}
	}
	s.Choices = len(lengths)
	if len(lengths) == 0 {
		return s
	}
	sort.Float64s(lengths)
	s.MeanLength = stat.Mean(lengths, nil)
	s.P95Length = stat.Quantile(0.95, stat.Empirical, lengths, nil)
	s.LongestSequence = int(floats.Max(lengths))
	return s
}

// TruncatedExamples returns how many examples lost tokens to truncation.
func (s *Stats) TruncatedExamples() int {
	return int(s.Truncated.GetCardinality())
}
