package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/chainz"
)

func TestBitcoinPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("ids") != "bitcoin" || r.URL.Query().Get("vs_currencies") != "idr" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"bitcoin":{"idr":1650000000}}`))
	}))
	defer server.Close()

	tool := BitcoinPrice(BitcoinConfig{BaseURL: server.URL})
	if tool.Name != "get_bitcoin_price" {
		t.Errorf("Unexpected name %s", tool.Name)
	}

	out, err := tool.Handler(context.Background(), nil, "What's the price of Bitcoin?")
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if out != "Bitcoin price is 1650000000 IDR" {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestBitcoinPriceErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "status", status: http.StatusTooManyRequests, body: `{}`, want: "status 429"},
		{name: "invalid json", status: http.StatusOK, body: `nope`, want: "invalid JSON"},
		{name: "missing currency", status: http.StatusOK, body: `{"bitcoin":{"usd":1}}`, want: "no idr price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			tool := BitcoinPrice(BitcoinConfig{BaseURL: server.URL})
			_, err := tool.Handler(context.Background(), nil, "")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestBitcoinKeywordRouting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"bitcoin":{"idr":42}}`))
	}))
	defer server.Close()

	tools, err := chainz.NewToolset(BitcoinPrice(BitcoinConfig{BaseURL: server.URL}))
	if err != nil {
		t.Fatalf("NewToolset failed: %v", err)
	}
	policy := chainz.NewKeywordPolicy(chainz.MatchAll)

	if _, ok := policy.Match("What's the price of Bitcoin?", tools); !ok {
		t.Error("Expected bitcoin price request to match")
	}
	if _, ok := policy.Match("Tell me about bitcoin", tools); ok {
		t.Error("Expected request without 'price' not to match under MatchAll")
	}
}

func TestPythonTip(t *testing.T) {
	tool := PythonTip(func(int) int { return 2 })
	out, err := tool.Handler(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if out != "Here's a Python tip: "+PythonTips[2] {
		t.Errorf("Unexpected tip %q", out)
	}

	random := PythonTip(nil)
	for i := 0; i < 20; i++ {
		out, _ := random.Handler(context.Background(), nil, "")
		if !strings.HasPrefix(out, "Here's a Python tip: ") {
			t.Fatalf("Unexpected tip %q", out)
		}
	}
}

func TestSimulatedTools(t *testing.T) {
	out, _ := AddTaskTool().Handler(context.Background(), nil, " Sarah will design the draft ")
	if out != "Task 'Sarah will design the draft' added to Notion (simulated)." {
		t.Errorf("Unexpected output %q", out)
	}

	out, _ = ScheduleMeetingTool().Handler(context.Background(), nil, "Thursday at 3PM")
	if out != "Meeting scheduled for Thursday at 3PM (simulated)." {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestLocalDrive(t *testing.T) {
	dir := t.TempDir()
	drive, err := NewLocalDrive(filepath.Join(dir, "drive"))
	if err != nil {
		t.Fatalf("NewLocalDrive failed: %v", err)
	}

	id, err := drive.Upload(context.Background(), "Meeting_Summary.txt", "summary text")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	data, err := os.ReadFile(drive.Path(id, "Meeting_Summary.txt"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "summary text" {
		t.Errorf("Unexpected content %q", data)
	}

	other, _ := drive.Upload(context.Background(), "Meeting_Summary.txt", "second")
	if other == id {
		t.Error("Expected distinct IDs for repeated uploads")
	}

	if _, err := drive.Upload(context.Background(), "  ", "x"); err == nil {
		t.Error("Expected error for empty name")
	}
}

func TestLocalCalendar(t *testing.T) {
	calendar := NewLocalCalendar(filepath.Join(t.TempDir(), "events.jsonl"))
	loc := time.UTC
	start := time.Date(2025, 4, 20, 10, 0, 0, 0, loc)

	link, err := calendar.Create(context.Background(), chainz.CalendarEvent{
		Title:    "Sync",
		Start:    start,
		End:      start.Add(time.Hour),
		TimeZone: loc.String(),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(link, "file://") {
		t.Errorf("Unexpected link %q", link)
	}

	events, err := calendar.Events()
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != 1 || events[0].Title != "Sync" || !events[0].Start.Equal(start) {
		t.Errorf("Unexpected events %+v", events)
	}
}

func TestCalendarEventTool(t *testing.T) {
	calendar := NewLocalCalendar(filepath.Join(t.TempDir(), "events.jsonl"))
	now := func() time.Time { return time.Date(2025, 4, 13, 9, 0, 0, 0, time.UTC) }
	tool := CalendarEventTool(calendar, time.UTC, now)

	out, err := tool.Handler(context.Background(), nil, "Title: Sync\nDate: 2025-04-20\nTime: 10:00 AM\nDescription: weekly check-in")
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if !strings.HasPrefix(out, "Event created: ") {
		t.Errorf("Unexpected output %q", out)
	}

	out, err = tool.Handler(context.Background(), nil, "nothing useful")
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if out != noEventInfo {
		t.Errorf("Expected missing event notice, got %q", out)
	}

	session := chainz.NewSession()
	session.Set(EventKey, "Title: Retro\nDate: \nTime: \nDescription: follow up")
	out, _ = tool.Handler(context.Background(), session, "create the event")
	if !strings.HasPrefix(out, "Event created: ") {
		t.Errorf("Unexpected output %q", out)
	}

	events, _ := calendar.Events()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	want := time.Date(2025, 4, 20, 10, 0, 0, 0, time.UTC)
	if !events[1].Start.Equal(want) {
		t.Errorf("Expected default start %v, got %v", want, events[1].Start)
	}

	session.Set(EventKey, "no markers here")
	out, _ = tool.Handler(context.Background(), session, "")
	if out != "No event info found." {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestMeetingTools(t *testing.T) {
	provider := chainz.NewMockProviderWithCallback(func(prompt string, _ float32) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "Summarize"):
			return "Campaign kickoff. Sarah drafts, Tom reviews.", nil
		case strings.HasPrefix(prompt, "Extract any follow-up"):
			return "Title: Follow-up\nDate: 2025-04-17\nTime: 15:00\nDescription: review draft", nil
		default:
			return "- Sarah: design draft", nil
		}
	})
	meeting, err := NewMeeting(provider)
	if err != nil {
		t.Fatalf("NewMeeting failed: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "sample_meeting.txt")
	transcript := "Sarah will design the draft.\nTom will review by Friday.\nLet's follow up next week."
	if err := os.WriteFile(path, []byte(transcript), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	drive, _ := NewLocalDrive(filepath.Join(dir, "drive"))
	save := SaveSummaryTool(drive)
	session := chainz.NewSession()

	out, _ := save.Handler(context.Background(), session, "Meeting_Summary.txt")
	if out != noSummary {
		t.Errorf("Expected no summary notice, got %q", out)
	}

	out, err = meeting.SummarizeFileTool().Handler(context.Background(), session, path)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if out != "Meeting summarized successfully." {
		t.Errorf("Unexpected output %q", out)
	}
	if v, _ := session.Value(SummaryKey); v != "Campaign kickoff. Sarah drafts, Tom reviews." {
		t.Errorf("Summary not stored, got %q", v)
	}
	if v, _ := session.Value(EventKey); !strings.HasPrefix(v, "Title: Follow-up") {
		t.Errorf("Event not stored, got %q", v)
	}

	out, err = save.Handler(context.Background(), session, "'Meeting_Summary.txt'")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasPrefix(out, "Summary saved to drive with ID: ") {
		t.Errorf("Unexpected output %q", out)
	}

	tasks, err := meeting.ExtractTasksTool().Handler(context.Background(), nil, transcript)
	if err != nil || tasks != "- Sarah: design draft" {
		t.Errorf("Unexpected tasks %q, %v", tasks, err)
	}
}

func TestMeetingModelFailure(t *testing.T) {
	boom := errors.New("upstream down")
	meeting, _ := NewMeeting(chainz.NewFailingMockProvider(boom))

	_, err := meeting.SummarizeTool().Handler(context.Background(), nil, "transcript")
	var invocation *chainz.ModelInvocationError
	if !errors.As(err, &invocation) {
		t.Fatalf("Expected ModelInvocationError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected cause to be preserved, got %v", err)
	}
}

func TestMeetingAnalyzeUsesClock(t *testing.T) {
	var calendarPrompt string
	provider := chainz.NewMockProviderWithCallback(func(prompt string, _ float32) (string, error) {
		if strings.HasPrefix(prompt, "Extract any follow-up") {
			calendarPrompt = prompt
		}
		return "ok", nil
	})
	meeting, _ := NewMeeting(provider)
	meeting.WithClock(func() time.Time { return time.Date(2025, 4, 13, 0, 0, 0, 0, time.UTC) })

	if _, _, err := meeting.Analyze(context.Background(), "we meet next week"); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !strings.Contains(calendarPrompt, "today's date (2025-04-13)") {
		t.Errorf("Expected today's date in prompt, got %q", calendarPrompt)
	}
}

func TestTranscriptPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	os.WriteFile(path, []byte("x"), 0o644)

	tests := map[string]string{
		path:                                   path,
		"'" + path + "'":                       path,
		"summarize the meeting from " + path:   path,
		"Summarize the meeting FROM 'a b.txt'": "a b.txt",
		"missing.txt":                          "missing.txt",
	}
	for in, want := range tests {
		if got := transcriptPath(in); got != want {
			t.Errorf("transcriptPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSummaryFileName(t *testing.T) {
	tests := map[string]string{
		"notes.txt":   "notes.txt",
		"'notes.txt'": "notes.txt",
		"Save summary to drive with filename 'Meeting_Summary.txt'": "Meeting_Summary.txt",
		"save summary": DefaultSummaryFile,
		"":             DefaultSummaryFile,
	}
	for in, want := range tests {
		if got := summaryFileName(in); got != want {
			t.Errorf("summaryFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
