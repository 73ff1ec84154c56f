package eval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// GroundTruth is one labeled evaluation case: a question paired with the
// reference answer the pipeline response is graded against.
type GroundTruth struct {
	Question string `json:"question"`
	Truth    string `json:"truth"`
}

// maxLineBytes caps a single JSONL line. Reference answers can be long,
// but a megabyte per case is a data error, not a use case.
const maxLineBytes = 1 << 20

// ReadGroundTruth parses ground-truth JSONL: one {"question", "truth"}
// object per line. Blank lines are skipped.
func ReadGroundTruth(r io.Reader) ([]GroundTruth, error) {
	var cases []GroundTruth

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		var gt GroundTruth
		if err := json.Unmarshal([]byte(text), &gt); err != nil {
			return nil, fmt.Errorf("parsing ground truth line %d: %w", line, err)
		}
		if gt.Question == "" {
			return nil, fmt.Errorf("ground truth line %d: question is empty", line)
		}
		cases = append(cases, gt)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ground truth: %w", err)
	}
	return cases, nil
}

// WriteJSONL writes rows as JSON Lines, one object per line.
func WriteJSONL[T any](w io.Writer, rows []T) error {
	enc := json.NewEncoder(w)
	for i, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("writing result line %d: %w", i+1, err)
		}
	}
	return nil
}
