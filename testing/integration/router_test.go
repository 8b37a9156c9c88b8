package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/chainz"
	chainzt "github.com/zoobzio/chainz/testing"
	"github.com/zoobzio/chainz/tools"
)

func TestRouter_BitcoinKeywordAgainstStubAPI(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"bitcoin":{"idr":1650000000}}`))
	}))
	defer api.Close()

	toolset, _ := chainz.NewToolset(tools.BitcoinPrice(tools.BitcoinConfig{BaseURL: api.URL}))
	provider := chainzt.NewCallRecorder(chainzt.NewPrefixProvider("openai", "I can't browse the web.").
		On("You asked earlier", "Bitcoin trades at about 1.65 billion IDR."))
	router, _ := chainz.NewRouter(provider, toolset, chainz.NewKeywordPolicy(chainz.MatchAll))

	answer := router.Respond(context.Background(), nil, "What's the current price of Bitcoin?")
	if answer != "Bitcoin trades at about 1.65 billion IDR." {
		t.Errorf("unexpected answer %q", answer)
	}
	if !strings.Contains(provider.Prompts()[1], "Bitcoin price is 1650000000 IDR") {
		t.Errorf("expected tool output in follow-up, got %q", provider.Prompts()[1])
	}

	answer = router.Respond(context.Background(), nil, "What's the weather like today?")
	if answer != "I can't browse the web." {
		t.Errorf("expected first answer verbatim, got %q", answer)
	}
}

func TestRouter_PromptedDecisionWithBuilder(t *testing.T) {
	toolset, _ := chainz.NewToolset(tools.PythonTip(func(int) int { return 0 }), tools.ScheduleMeetingTool())
	provider := chainzt.NewSequencedProvider(
		chainzt.NewDecisionBuilder().WithTool("schedule_next_meeting").WithArgument("Thursday at 3PM").Fenced(),
		"Your meeting is set for Thursday at 3PM.",
		chainzt.NewDecisionBuilder().WithAnswer("Happy to help!").Build(),
	)
	router, _ := chainz.NewRouter(provider, toolset, chainz.NewFunctionCallingPolicy())

	result, err := router.Handle(context.Background(), nil, "Schedule our next sync")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if result.ToolOutput != "Meeting scheduled for Thursday at 3PM (simulated)." {
		t.Errorf("unexpected tool output %q", result.ToolOutput)
	}
	if result.Text != "Your meeting is set for Thursday at 3PM." {
		t.Errorf("unexpected answer %q", result.Text)
	}

	result, _ = router.Handle(context.Background(), nil, "Thanks!")
	if result.Tool != "" || result.Text != "Happy to help!" {
		t.Errorf("expected direct answer, got %+v", result)
	}
}

func TestRouter_MeetingAssistantFlow(t *testing.T) {
	dir := t.TempDir()
	transcript := filepath.Join(dir, "sample_meeting.txt")
	if err := os.WriteFile(transcript, []byte("Sarah: drafts by Friday.\nTom: let's follow up next week."), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	provider := chainzt.NewPrefixProvider("stub", "ok").
		On("Summarize this meeting", "Kickoff summary.").
		On("Extract any follow-up", chainzt.EventText("Follow-up", "2025-04-17", "15:00", "Review drafts")).
		On("You asked earlier", "Done.")
	meeting, _ := tools.NewMeeting(provider)
	meeting.WithClock(func() time.Time { return time.Date(2025, 4, 13, 9, 0, 0, 0, time.UTC) })

	drive, _ := tools.NewLocalDrive(filepath.Join(dir, "drive"))
	calendar := tools.NewLocalCalendar(filepath.Join(dir, "calendar.jsonl"))
	toolset, _ := chainz.NewToolset(
		meeting.SummarizeFileTool(),
		tools.SaveSummaryTool(drive),
		tools.CalendarEventTool(calendar, time.UTC, nil),
	)
	router, _ := chainz.NewRouter(provider, toolset, chainz.NewKeywordPolicy(chainz.MatchAny))
	session := chainz.NewSession()

	steps := []struct {
		request string
		tool    string
		output  string
	}{
		{"summarize the meeting from " + transcript, "summarize_meeting_file", "Meeting summarized successfully."},
		{"save summary", "save_summary_to_drive", "Summary saved to drive with ID: "},
		{"add it to my calendar", "create_calendar_event", "Event created: "},
	}
	for _, step := range steps {
		result, err := router.Handle(context.Background(), session, step.request)
		if err != nil {
			t.Fatalf("%s: %v", step.request, err)
		}
		if result.Tool != step.tool || !strings.HasPrefix(result.ToolOutput, step.output) {
			t.Errorf("%s: unexpected tool %q output %q", step.request, result.Tool, result.ToolOutput)
		}
	}

	events, err := calendar.Events()
	if err != nil || len(events) != 1 {
		t.Fatalf("expected one event, got %v, %v", events, err)
	}
	if want := time.Date(2025, 4, 17, 15, 0, 0, 0, time.UTC); !events[0].Start.Equal(want) {
		t.Errorf("expected start %v, got %v", want, events[0].Start)
	}
}
