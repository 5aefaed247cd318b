package client

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintListingRendersHeaderAndRows(t *testing.T) {
	csv := "TYPE,NAME,WORDS,CHARS,LAST_ACCESSED,OWNER\n" +
		"F,notes.txt,120,640,0,alice\n" +
		"D,projects,0,0,0,\n"

	var buf bytes.Buffer
	if err := printListing(&buf, csv); err != nil {
		t.Fatalf("printListing: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "notes.txt") || !strings.Contains(out, "alice") {
		t.Fatalf("expected file row in output, got:\n%s", out)
	}
	if !strings.Contains(out, "projects") {
		t.Fatalf("expected folder row in output, got:\n%s", out)
	}
}

func TestPrintListingHandlesHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := printListing(&buf, "TYPE,NAME,WORDS,CHARS,LAST_ACCESSED,OWNER\n"); err != nil {
		t.Fatalf("printListing: %v", err)
	}
	// No rows, but the header renders without error.
}

func TestFormatUnixFieldLeavesZeroAlone(t *testing.T) {
	if got := formatUnixField("0"); got != "0" {
		t.Fatalf("expected unset timestamp left alone, got %q", got)
	}
}

func TestFormatUnixFieldFormatsNonzero(t *testing.T) {
	got := formatUnixField("1700000000")
	if got == "1700000000" {
		t.Fatal("expected a formatted timestamp, got the raw field back")
	}
}
