package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// readRecords opens a JSON-lines file and decodes every non-blank line.
func readRecords(path string, split Split) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return decodeRecords(f, split)
}

// decodeRecords reads records from r. Lines can hold whole articles, so the
// reader grows its buffer instead of using a fixed-size scanner.
func decodeRecords(r io.Reader, split Split) ([]Record, error) {
	var records []Record
	br := bufio.NewReader(r)
	line := 0
	for {
		raw, err := br.ReadBytes('\n')
		if len(raw) > 0 {
			line++
			raw = bytes.TrimSpace(raw)
			if len(raw) > 0 {
				var rec Record
				if uerr := json.Unmarshal(raw, &rec); uerr != nil {
					return nil, &RecordError{
						Split: split,
						Line:  line,
						Err:   fmt.Errorf("%w: %v", ErrMalformedRecord, uerr),
					}
				}
				if verr := rec.validate(split, line); verr != nil {
					return nil, verr
				}
				records = append(records, rec)
			}
		}
		if err != nil {
			if err == io.EOF {
				return records, nil
			}
			return nil, fmt.Errorf("failed to read %s records: %w", split, err)
		}
	}
}

func (r *Record) validate(split Split, line int) error {
	required := []struct {
		name  string
		value *string
	}{
		{"article", r.Article},
		{"question", r.Question},
		{"option_0", r.Option0},
		{"option_1", r.Option1},
		{"option_2", r.Option2},
		{"option_3", r.Option3},
	}
	for _, f := range required {
		if f.value == nil {
			return missingField(split, line, f.name)
		}
	}
	if split == SplitTest {
		if r.QID == nil {
			return missingField(split, line, "q_id")
		}
		return nil
	}
	if r.Label == nil {
		return missingField(split, line, "label")
	}
	return nil
}

func (r *Record) options() [NumChoices]string {
	return [NumChoices]string{*r.Option0, *r.Option1, *r.Option2, *r.Option3}
}
