package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func changedSet(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return func(name string) bool { return set[name] }
}

func TestCreateRequestFromFlags(t *testing.T) {
	flags := taskFlags{priority: "3", labels: []string{"a", "b"}, sprint: 7, description: "ignored"}

	req := flags.createRequest("Fix bug", changedSet("priority", "label", "sprint"))
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(body); got != `{"summary":"Fix bug","labels":["a","b"],"priority":"3","sprint":7}` {
		t.Fatalf("unexpected create body %s", got)
	}
}

func TestLabelFlagRepeats(t *testing.T) {
	var f taskFlags
	fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
	f.register(fs, false)
	if err := fs.Parse([]string{"--label", "backend", "--label", "urgent,infra", "--sprint", "3000000000"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	req := f.createRequest("s", fs.Changed)
	labels, ok := req.Labels.Get()
	if !ok || strings.Join(labels, "|") != "backend|urgent|infra" {
		t.Fatalf("unexpected labels %v (set=%v)", labels, ok)
	}
	sprint, ok := req.Sprint.Get()
	if !ok {
		t.Fatal("expected sprint to be set")
	}
	if id, err := sprint.ID(); err != nil || id != 3000000000 {
		t.Fatalf("unexpected sprint %d (%v)", id, err)
	}
	if fs.Lookup("labels") != nil {
		t.Fatal("expected only the singular --label flag")
	}
}

func TestUpdateRequestFromFlags(t *testing.T) {
	flags := taskFlags{summary: "New", clear: []string{"assignee", "Sprint"}}

	req, err := flags.updateRequest(changedSet("summary", "clear"))
	if err != nil {
		t.Fatalf("update request: %v", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(body); got != `{"summary":"New","assignee":null,"sprint":null}` {
		t.Fatalf("unexpected update body %s", got)
	}
}

func TestUpdateRequestRejections(t *testing.T) {
	cases := []struct {
		flags   taskFlags
		changed []string
		want    string
	}{
		{want: "nothing to update"},
		{flags: taskFlags{clear: []string{"summary"}}, changed: []string{"clear"}, want: "cannot clear"},
		{flags: taskFlags{clear: []string{"labels"}, labels: []string{"x"}}, changed: []string{"clear", "label"}, want: "conflict"},
	}
	for _, tc := range cases {
		_, err := tc.flags.updateRequest(changedSet(tc.changed...))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("expected error containing %q, got %v", tc.want, err)
		}
	}
}
