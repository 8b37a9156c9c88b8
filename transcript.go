package chainz

import (
	"fmt"
	"os"
	"strings"
)

// DefaultChunkSize bounds the characters per chunk produced by SplitTranscript.
const DefaultChunkSize = 1000

// DefaultTranscriptKeywords are the scheduling cues FilterTranscript keeps by default.
var DefaultTranscriptKeywords = []string{"next week", "by", "date"}

// ReadTranscript reads a whole transcript file.
func ReadTranscript(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(data), nil
}

// FilterTranscript keeps the lines that mention any keyword, case-insensitively.
// With no keywords, DefaultTranscriptKeywords are used.
func FilterTranscript(text string, keywords ...string) string {
	if len(keywords) == 0 {
		keywords = DefaultTranscriptKeywords
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		for _, k := range keywords {
			if strings.Contains(lower, strings.ToLower(k)) {
				kept = append(kept, strings.TrimRight(line, "\r"))
				break
			}
		}
	}
	return strings.Join(kept, "\n")
}

// SplitTranscript groups whole lines into chunks of at most maxLen characters,
// not counting newlines. A single line longer than maxLen becomes its own chunk.
// A non-positive maxLen uses DefaultChunkSize.
func SplitTranscript(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultChunkSize
	}
	if text == "" {
		return nil
	}

	var chunks []string
	var current []string
	size := 0
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if len(current) > 0 && size+len(line) > maxLen {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = nil
			size = 0
		}
		current = append(current, line)
		size += len(line)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}
