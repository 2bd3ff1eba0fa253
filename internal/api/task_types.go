package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Assignee identifies a Jira user by account id.
type Assignee struct {
	AccountID string `json:"accountId,omitempty"`
}

// SprintValue holds whatever the client sent for a sprint id. Numbers and
// numeric strings coerce to an integer id; anything else is not numeric.
type SprintValue struct {
	raw json.RawMessage
}

var (
	ErrSprintNotNumeric = errors.New("sprint is not numeric")
	ErrSprintOutOfRange = errors.New("sprint id is out of range")
)

// MaxSprintID is the largest id a JSON number carries without loss.
const MaxSprintID = 1<<53 - 1

// SprintID builds a numeric SprintValue.
func SprintID(id int64) SprintValue {
	return SprintValue{raw: json.RawMessage(strconv.FormatInt(id, 10))}
}

// RawSprint builds a SprintValue from an arbitrary JSON literal.
func RawSprint(raw string) SprintValue {
	return SprintValue{raw: json.RawMessage(raw)}
}

// UnmarshalJSON keeps the literal; coercion happens in ID.
func (s *SprintValue) UnmarshalJSON(data []byte) error {
	s.raw = append(s.raw[:0], data...)
	return nil
}

// MarshalJSON writes the literal back.
func (s SprintValue) MarshalJSON() ([]byte, error) {
	if len(s.raw) == 0 {
		return []byte("null"), nil
	}
	return s.raw, nil
}

// String returns the literal as sent.
func (s SprintValue) String() string {
	return string(bytes.TrimSpace(s.raw))
}

// ID returns the sprint id, truncating fractions toward zero. Zero and
// negative ids are returned as is; callers decide what they mean.
func (s SprintValue) ID() (int64, error) {
	raw := bytes.TrimSpace(s.raw)
	if len(raw) == 0 {
		return 0, ErrSprintNotNumeric
	}

	var text string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, ErrSprintNotNumeric
		}
		text = strings.TrimSpace(text)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		text = string(raw)
	default:
		return 0, ErrSprintNotNumeric
	}

	id, err := strconv.ParseInt(text, 10, 64)
	switch {
	case err == nil:
		return checkSprintRange(id)
	case errors.Is(err, strconv.ErrRange):
		return 0, ErrSprintOutOfRange
	}

	f, err := strconv.ParseFloat(text, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, ErrSprintOutOfRange
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrSprintNotNumeric
	}
	if math.Abs(f) > MaxSprintID {
		return 0, ErrSprintOutOfRange
	}
	return int64(f), nil
}

func checkSprintRange(id int64) (int64, error) {
	if id > MaxSprintID || id < -MaxSprintID {
		return 0, ErrSprintOutOfRange
	}
	return id, nil
}

// TaskCreateRequest is the simplified task shape accepted on create.
type TaskCreateRequest struct {
	Summary     string                `json:"summary"`
	Description Optional[string]      `json:"description,omitzero"`
	Labels      Optional[[]string]    `json:"labels,omitzero"`
	Assignee    Optional[Assignee]    `json:"assignee,omitzero"`
	Priority    Optional[string]      `json:"priority,omitzero"`
	Status      Optional[string]      `json:"status,omitzero"`
	Sprint      Optional[SprintValue] `json:"sprint,omitzero"`
}

// TaskUpdateRequest is a partial task; every field is independently optional.
type TaskUpdateRequest struct {
	Summary     Optional[string]      `json:"summary,omitzero"`
	Description Optional[string]      `json:"description,omitzero"`
	Labels      Optional[[]string]    `json:"labels,omitzero"`
	Assignee    Optional[Assignee]    `json:"assignee,omitzero"`
	Priority    Optional[string]      `json:"priority,omitzero"`
	Status      Optional[string]      `json:"status,omitzero"`
	Sprint      Optional[SprintValue] `json:"sprint,omitzero"`
}

// TaskUpdateResponse acknowledges an update; Jira returns no body for it.
type TaskUpdateResponse struct {
	Success       bool     `json:"success"`
	IgnoredFields []string `json:"ignored_fields,omitempty"`
}
