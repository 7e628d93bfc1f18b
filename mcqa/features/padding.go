package features

import "fmt"

// pad extends seq with value up to length, on the left or the right.
// seq is never modified.
func pad(seq []int64, length int, value int64, left bool) []int64 {
	n := length - len(seq)
	if n <= 0 {
		out := make([]int64, len(seq))
		copy(out, seq)
		return out
	}
	out := make([]int64, 0, length)
	if left {
		for i := 0; i < n; i++ {
			out = append(out, value)
		}
		return append(out, seq...)
	}
	out = append(out, seq...)
	for i := 0; i < n; i++ {
		out = append(out, value)
	}
	return out
}

// padChoice builds the fixed-width ids, mask and segment ids for one
// unpadded encoding.
func padChoice(inputIDs, segmentIDs []int64, opts Options) (ChoiceFeature, error) {
	if len(inputIDs) > opts.MaxLength {
		return ChoiceFeature{}, fmt.Errorf("%w: tokenizer returned %d ids for max length %d",
			ErrLengthInvariant, len(inputIDs), opts.MaxLength)
	}
	if len(segmentIDs) != len(inputIDs) {
		return ChoiceFeature{}, fmt.Errorf("%w: tokenizer returned %d segment ids for %d input ids",
			ErrLengthInvariant, len(segmentIDs), len(inputIDs))
	}
	realMask, padMask := opts.maskValues()
	mask := make([]int64, len(inputIDs))
	for i := range mask {
		mask[i] = realMask
	}

	cf := ChoiceFeature{
		InputIDs:      pad(inputIDs, opts.MaxLength, opts.PadToken, opts.PadOnLeft),
		AttentionMask: pad(mask, opts.MaxLength, padMask, opts.PadOnLeft),
		SegmentIDs:    pad(segmentIDs, opts.MaxLength, opts.PadTokenSegmentID, opts.PadOnLeft),
	}
	for name, seq := range map[string][]int64{
		"input_ids":      cf.InputIDs,
		"attention_mask": cf.AttentionMask,
		"segment_ids":    cf.SegmentIDs,
	} {
		if len(seq) != opts.MaxLength {
			return ChoiceFeature{}, fmt.Errorf("%w: %s has length %d, want %d",
				ErrLengthInvariant, name, len(seq), opts.MaxLength)
		}
	}
	return cf, nil
}
