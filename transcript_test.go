package chainz

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleTranscript = `Sarah: Welcome everyone, let's start the campaign kickoff.
Tom: I'll have the copy done by Friday.
Sarah: Great. Design drafts are due on the launch date.
Ana: Budget looks fine.
Tom: Let's follow up next week to review.`

func TestFilterTranscript(t *testing.T) {
	got := FilterTranscript(sampleTranscript)
	want := "Tom: I'll have the copy done by Friday.\nSarah: Great. Design drafts are due on the launch date.\nTom: Let's follow up next week to review."
	if got != want {
		t.Errorf("Unexpected filter result:\n%s", got)
	}

	if got := FilterTranscript(sampleTranscript, "BUDGET"); got != "Ana: Budget looks fine." {
		t.Errorf("Expected case-insensitive custom keyword, got %q", got)
	}
	if got := FilterTranscript("nothing relevant here"); got != "" {
		t.Errorf("Expected empty result, got %q", got)
	}
}

func TestSplitTranscript(t *testing.T) {
	chunks := SplitTranscript("aaaa\nbbbb\ncccc", 8)
	if len(chunks) != 2 || chunks[0] != "aaaa\nbbbb" || chunks[1] != "cccc" {
		t.Errorf("Unexpected chunks %q", chunks)
	}

	long := strings.Repeat("x", 20)
	chunks = SplitTranscript(long+"\nshort", 10)
	if len(chunks) != 2 || chunks[0] != long {
		t.Errorf("Expected oversized line as its own chunk, got %q", chunks)
	}

	if SplitTranscript("", 10) != nil {
		t.Error("Expected no chunks for empty text")
	}

	joined := strings.Join(SplitTranscript(sampleTranscript, 0), "\n")
	if joined != sampleTranscript {
		t.Error("Chunks should reassemble to the original text")
	}
}

func TestReadTranscript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample_meeting.txt")
	if err := os.WriteFile(path, []byte(sampleTranscript), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got, err := ReadTranscript(path)
	if err != nil || got != sampleTranscript {
		t.Errorf("Unexpected read %q, %v", got, err)
	}

	if _, err := ReadTranscript(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Expected error for missing file")
	}
}
