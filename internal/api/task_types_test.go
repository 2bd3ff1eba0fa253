package api

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestTaskUpdateRequestTriState(t *testing.T) {
	var req TaskUpdateRequest
	if err := json.Unmarshal([]byte(`{"summary":"New","description":null,"assignee":{}}`), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if summary, ok := req.Summary.Get(); !ok || summary != "New" {
		t.Fatalf("expected summary New, got %q (set=%v)", summary, ok)
	}
	if !req.Description.IsClear() || req.Description.IsUnset() {
		t.Fatal("expected description to be cleared")
	}
	if assignee, ok := req.Assignee.Get(); !ok || assignee.AccountID != "" {
		t.Fatalf("expected empty assignee to be set, got %+v (set=%v)", assignee, ok)
	}
	if !req.Labels.IsUnset() || !req.Sprint.IsUnset() {
		t.Fatal("expected labels and sprint to stay unset")
	}
}

func TestTaskUpdateRequestMarshalKeepsPresence(t *testing.T) {
	req := TaskUpdateRequest{
		Summary:  Set("Renamed"),
		Priority: Clear[string](),
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(data); got != `{"summary":"Renamed","priority":null}` {
		t.Fatalf("unexpected JSON %s", got)
	}
}

func TestOptionalRejectsWrongType(t *testing.T) {
	var req TaskUpdateRequest
	if err := json.Unmarshal([]byte(`{"labels":"not-a-list"}`), &req); err == nil {
		t.Fatal("expected decode error for non-list labels")
	}
}

func TestSprintValueID(t *testing.T) {
	cases := []struct {
		raw     string
		want    int64
		wantErr error
	}{
		{raw: `7`, want: 7},
		{raw: `"12"`, want: 12},
		{raw: `" 3 "`, want: 3},
		{raw: `4.9`, want: 4},
		{raw: `"1e2"`, want: 100},
		{raw: `-2`, want: -2},
		{raw: `0`, want: 0},
		{raw: `3000000000`, want: 3000000000},
		{raw: `9007199254740991`, want: MaxSprintID},
		{raw: `9007199254740992`, wantErr: ErrSprintOutOfRange},
		{raw: `"99999999999999999999"`, wantErr: ErrSprintOutOfRange},
		{raw: `1e20`, wantErr: ErrSprintOutOfRange},
		{raw: `1e400`, wantErr: ErrSprintOutOfRange},
		{raw: `"abc"`, wantErr: ErrSprintNotNumeric},
		{raw: `"inf"`, wantErr: ErrSprintNotNumeric},
		{raw: `""`, wantErr: ErrSprintNotNumeric},
		{raw: `true`, wantErr: ErrSprintNotNumeric},
		{raw: `[1]`, wantErr: ErrSprintNotNumeric},
		{raw: `{"id":1}`, wantErr: ErrSprintNotNumeric},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			var req TaskCreateRequest
			if err := json.Unmarshal([]byte(`{"summary":"x","sprint":`+tc.raw+`}`), &req); err != nil {
				t.Fatalf("decode: %v", err)
			}
			value, ok := req.Sprint.Get()
			if !ok {
				t.Fatal("expected sprint to be set")
			}
			got, err := value.ID()
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("ID() error = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr == nil && got != tc.want {
				t.Fatalf("ID() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSprintNullIsClear(t *testing.T) {
	var req TaskCreateRequest
	if err := json.Unmarshal([]byte(`{"summary":"x","sprint":null}`), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := req.Sprint.Get(); ok || !req.Sprint.IsClear() {
		t.Fatal("expected null sprint to be cleared")
	}
}

func TestSprintIDRoundTrip(t *testing.T) {
	if got, err := SprintID(42).ID(); err != nil || got != 42 {
		t.Fatalf("SprintID(42).ID() = %d, %v", got, err)
	}
	if got, err := SprintID(3000000000).ID(); err != nil || got != 3000000000 {
		t.Fatalf("SprintID(3000000000).ID() = %d, %v", got, err)
	}
	if _, err := RawSprint(`"next"`).ID(); !errors.Is(err, ErrSprintNotNumeric) {
		t.Fatalf("expected ErrSprintNotNumeric, got %v", err)
	}
}
