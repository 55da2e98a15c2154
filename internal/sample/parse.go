// Package sample parses sensor feed lines into numeric sample vectors.
// The feed emits one reading per line, either as comma-separated floats
// or as a JSON object with a "values" array.
package sample

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var ErrEmptyLine = fmt.Errorf("empty feed line")

// Reading is the JSON form of a feed line.
type Reading struct {
	SensorID string    `json:"sensor_id,omitempty"`
	Values   []float64 `json:"values"`
}

// Classification tokens for feed payloads.
const (
	PayloadJSON    = "json"
	PayloadCSV     = "csv"
	PayloadComment = "comment"
)

// Classify inspects a payload string and returns a simple payload type
// token. Lines starting with '#' are feed comments (mock fixtures use
// them for annotations).
func Classify(payload string) string {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "#") {
		return PayloadComment
	}
	if strings.HasPrefix(payload, "{") {
		return PayloadJSON
	}
	return PayloadCSV
}

// Parse converts a feed line into a sample vector. Comment and blank
// lines return ErrEmptyLine so callers can skip them cheaply. Length
// validation is left to the tracker, which owns the dimensionality
// contract.
func Parse(line string) ([]float64, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, ErrEmptyLine
	}

	switch Classify(line) {
	case PayloadComment:
		return nil, ErrEmptyLine

	case PayloadJSON:
		var r Reading
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON reading: %w", err)
		}
		if len(r.Values) == 0 {
			return nil, fmt.Errorf("JSON reading has no values: %q", line)
		}
		return r.Values, nil

	default:
		segments := strings.Split(line, ",")
		values := make([]float64, 0, len(segments))
		for i, seg := range segments {
			v, err := strconv.ParseFloat(strings.TrimSpace(seg), 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse field %d of %q: %w", i, line, err)
			}
			values = append(values, v)
		}
		return values, nil
	}
}
