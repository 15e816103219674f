package store

import (
	"strings"
	"testing"
)

func TestBuildListJobsQueryDefaults(t *testing.T) {
	query, args := buildListJobsQuery(ListJobsOptions{})

	if strings.Contains(query, "WHERE") {
		t.Errorf("no filters should produce no WHERE clause: %s", query)
	}
	if len(args) != 2 {
		t.Fatalf("expected limit+offset args, got %v", args)
	}
	if args[0] != 50 || args[1] != 0 {
		t.Errorf("expected default limit 50 offset 0, got %v", args)
	}
}

func TestBuildListJobsQueryFilters(t *testing.T) {
	query, args := buildListJobsQuery(ListJobsOptions{
		Search:   "engineer",
		SourceID: "indeed",
		Limit:    10,
		Offset:   20,
	})

	if !strings.Contains(query, "title ILIKE $1") || !strings.Contains(query, "source_id = $2") {
		t.Errorf("unexpected query: %s", query)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %v", args)
	}
	if args[0] != "%engineer%" || args[1] != "indeed" || args[2] != 10 || args[3] != 20 {
		t.Errorf("unexpected args: %v", args)
	}
	if !strings.Contains(query, "LIMIT $3 OFFSET $4") {
		t.Errorf("limit/offset placeholders wrong: %s", query)
	}
}

func TestBuildListJobsQueryCapsLimit(t *testing.T) {
	_, args := buildListJobsQuery(ListJobsOptions{Limit: 10000, Offset: -5})
	if args[0] != 200 {
		t.Errorf("expected limit capped at 200, got %v", args[0])
	}
	if args[1] != 0 {
		t.Errorf("expected negative offset clamped to 0, got %v", args[1])
	}
}
