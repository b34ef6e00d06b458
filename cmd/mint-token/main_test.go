package main

import (
	"testing"

	"github.com/stemsi/modexam-backend/internal/model"
)

func TestParsePermissions(t *testing.T) {
	if got := parsePermissions("  "); len(got) != len(model.AllPermissions) {
		t.Errorf("empty input should grant all, got %v", got)
	}
	got := parsePermissions("tests:read, results:read")
	if len(got) != 2 || got[0] != "tests:read" || got[1] != "results:read" {
		t.Errorf("got %v", got)
	}
	if got := parsePermissions("tests:read,root"); got != nil {
		t.Errorf("unknown permission accepted: %v", got)
	}
}
