package tools

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zoobzio/chainz"
)

// Session keys shared between meeting tools.
const (
	SummaryKey  = "meeting.summary"
	EventKey    = "meeting.event"
	noSummary   = "No summary available. Please summarize the meeting first."
	noEventInfo = "No event info available. Please extract the follow-up meeting first."
)

// Prompt templates for the meeting tools.
const (
	SummaryTemplate = `Summarize this meeting transcript:

{transcript}

Provide the summary and bullet point action items.`

	CalendarTemplate = `Extract any follow-up meeting dates and times from this transcript. If a date or time is mentioned indirectly (e.g., "next week"), infer the exact date and time based on today's date ({today}). Format the output as:

Title: <title of the meeting>
Date: <YYYY-MM-DD>
Time: <HH:MM>
Description: <brief reason for the event>

Transcript:
{transcript}

If someone says 'let's follow up next week' and no date is given, default to the week after today at 10am.`

	TasksTemplate = "Extract key action items from the meeting: {transcript}"
)

// Meeting bundles the model-backed meeting helpers.
type Meeting struct {
	summary  *chainz.ChainLink
	calendar *chainz.ChainLink
	tasks    *chainz.ChainLink
	now      func() time.Time
}

// NewMeeting creates meeting helpers that call provider.
func NewMeeting(provider chainz.Provider, opts ...chainz.Option) (*Meeting, error) {
	summary, err := chainz.NewLink("meeting.summary", chainz.MustPromptStep(SummaryTemplate), provider, opts...)
	if err != nil {
		return nil, err
	}
	calendar, err := chainz.NewLink("meeting.calendar", chainz.MustPromptStep(CalendarTemplate), provider, opts...)
	if err != nil {
		return nil, err
	}
	tasks, err := chainz.NewLink("meeting.tasks", chainz.MustPromptStep(TasksTemplate), provider, opts...)
	if err != nil {
		return nil, err
	}
	summary.WithTemperature(chainz.DefaultTemperatureBalanced)
	calendar.WithTemperature(chainz.DefaultTemperatureBalanced)
	tasks.WithTemperature(chainz.DefaultTemperatureBalanced)

	return &Meeting{summary: summary, calendar: calendar, tasks: tasks, now: time.Now}, nil
}

// WithClock replaces the clock used for "today" in calendar extraction.
func (m *Meeting) WithClock(now func() time.Time) *Meeting {
	m.now = now
	return m
}

// Summarize returns a summary with action items.
func (m *Meeting) Summarize(ctx context.Context, transcript string) (string, error) {
	resp, err := m.summary.Invoke(ctx, chainz.Binding{"transcript": transcript})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// ExtractEvent asks the model for the follow-up meeting in the
// "Title: / Date: / Time: / Description:" layout.
func (m *Meeting) ExtractEvent(ctx context.Context, transcript string) (string, error) {
	resp, err := m.calendar.Invoke(ctx, chainz.Binding{
		"transcript": transcript,
		"today":      m.now().Format(time.DateOnly),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// ExtractTasks lists the action items in a transcript.
func (m *Meeting) ExtractTasks(ctx context.Context, transcript string) (string, error) {
	resp, err := m.tasks.Invoke(ctx, chainz.Binding{"transcript": transcript})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// Analyze returns the summary and the extracted event text for a transcript.
func (m *Meeting) Analyze(ctx context.Context, transcript string) (summary, event string, err error) {
	summary, err = m.Summarize(ctx, transcript)
	if err != nil {
		return "", "", err
	}
	event, err = m.ExtractEvent(ctx, transcript)
	if err != nil {
		return "", "", err
	}
	return summary, event, nil
}

// SummarizeTool summarizes the transcript passed as the argument and keeps the
// summary in the session for SaveSummaryTool.
func (m *Meeting) SummarizeTool() chainz.Tool {
	return chainz.Tool{
		Name:        "summarize_meeting",
		Description: "Summarize the meeting transcript.",
		Triggers:    []string{"summarize", "summary"},
		Handler: func(ctx context.Context, session *chainz.Session, transcript string) (string, error) {
			summary, err := m.Summarize(ctx, transcript)
			if err != nil {
				return "", err
			}
			if session != nil {
				session.Set(SummaryKey, summary)
			}
			return summary, nil
		},
	}
}

// SummarizeFileTool summarizes the transcript file named by the argument.
func (m *Meeting) SummarizeFileTool() chainz.Tool {
	return chainz.Tool{
		Name:        "summarize_meeting_file",
		Description: "Summarizes the meeting transcript from the specified file path.",
		Triggers:    []string{"summarize the meeting from"},
		Handler: func(ctx context.Context, session *chainz.Session, path string) (string, error) {
			transcript, err := chainz.ReadTranscript(transcriptPath(path))
			if err != nil {
				return "", err
			}
			summary, err := m.Summarize(ctx, transcript)
			if err != nil {
				return "", err
			}
			event, err := m.ExtractEvent(ctx, chainz.FilterTranscript(transcript))
			if err != nil {
				return "", err
			}
			if session != nil {
				session.Set(SummaryKey, summary)
				session.Set(EventKey, event)
			}
			return "Meeting summarized successfully.", nil
		},
	}
}

// ExtractTasksTool lists action items from the transcript passed as the argument.
func (m *Meeting) ExtractTasksTool() chainz.Tool {
	return chainz.Tool{
		Name:        "extract_tasks",
		Description: "Extract action items from the meeting transcript.",
		Triggers:    []string{"extract tasks", "action items"},
		Handler: func(ctx context.Context, _ *chainz.Session, transcript string) (string, error) {
			return m.ExtractTasks(ctx, transcript)
		},
	}
}

// AddTaskTool simulates adding a task to a task tracker.
func AddTaskTool() chainz.Tool {
	return chainz.Tool{
		Name:        "add_task_to_notion",
		Description: "Simulate adding a task to Notion.",
		Triggers:    []string{"notion"},
		Handler: func(_ context.Context, _ *chainz.Session, task string) (string, error) {
			return fmt.Sprintf("Task '%s' added to Notion (simulated).", strings.TrimSpace(task)), nil
		},
	}
}

// ScheduleMeetingTool simulates scheduling a meeting.
func ScheduleMeetingTool() chainz.Tool {
	return chainz.Tool{
		Name:        "schedule_next_meeting",
		Description: "Simulate scheduling the next meeting for a date.",
		Triggers:    []string{"schedule"},
		Handler: func(_ context.Context, _ *chainz.Session, date string) (string, error) {
			return fmt.Sprintf("Meeting scheduled for %s (simulated).", strings.TrimSpace(date)), nil
		},
	}
}

// SaveSummaryTool stores the session's summary in drive under the file name given
// as the argument.
func SaveSummaryTool(drive Drive) chainz.Tool {
	return chainz.Tool{
		Name:        "save_summary_to_drive",
		Description: "Saves the summary to the drive with the given filename.",
		Triggers:    []string{"save summary", "drive"},
		Handler: func(ctx context.Context, session *chainz.Session, filename string) (string, error) {
			summary, ok := sessionValue(session, SummaryKey)
			if !ok {
				return noSummary, nil
			}
			name := summaryFileName(filename)
			id, err := drive.Upload(ctx, name, summary)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Summary saved to drive with ID: %s", id), nil
		},
	}
}

// CalendarEventTool creates a calendar entry. The argument may carry event text in the
// "Title: / Date: / Time: / Description:" layout; otherwise the event extracted into
// the session is used. Unparsable events are reported in the output, not as errors.
func CalendarEventTool(calendar Calendar, loc *time.Location, now func() time.Time) chainz.Tool {
	if now == nil {
		now = time.Now
	}
	return chainz.Tool{
		Name:        "create_calendar_event",
		Description: "Creates a calendar event from structured meeting info.",
		Triggers:    []string{"calendar"},
		Handler: func(ctx context.Context, session *chainz.Session, text string) (string, error) {
			if !strings.Contains(text, "Title:") {
				stored, ok := sessionValue(session, EventKey)
				if !ok {
					return noEventInfo, nil
				}
				text = stored
			}
			link, err := CreateEvent(ctx, calendar, text, now(), loc)
			if err != nil {
				return chainz.DescribeEventError(err), nil
			}
			return "Event created: " + link, nil
		},
	}
}

// CreateEvent parses event text, schedules it, and records it in calendar.
func CreateEvent(ctx context.Context, calendar Calendar, text string, now time.Time, loc *time.Location) (string, error) {
	info, err := chainz.ParseEvent(text)
	if err != nil {
		return "", err
	}
	event, err := info.Schedule(now, loc)
	if err != nil {
		return "", err
	}
	return calendar.Create(ctx, event)
}

// DefaultSummaryFile is the drive file name used when a request names none.
const DefaultSummaryFile = "Meeting_Summary.txt"

// summaryFileName accepts a bare file name or a request such as
// "save summary to drive with filename 'notes.txt'".
func summaryFileName(arg string) string {
	name := strings.TrimSpace(arg)
	if i := strings.LastIndex(strings.ToLower(name), "filename"); i >= 0 {
		name = strings.TrimSpace(name[i+len("filename"):])
	} else if strings.ContainsRune(name, ' ') {
		name = ""
	}
	name = strings.Trim(name, `"'`)
	if name == "" {
		return DefaultSummaryFile
	}
	return name
}

// transcriptPath accepts either a bare path or a request such as
// "summarize the meeting from notes.txt".
func transcriptPath(arg string) string {
	arg = strings.Trim(strings.TrimSpace(arg), `"'`)
	if _, err := os.Stat(arg); err == nil {
		return arg
	}
	if i := strings.LastIndex(strings.ToLower(arg), " from "); i >= 0 {
		return strings.Trim(strings.TrimSpace(arg[i+len(" from "):]), `"'`)
	}
	return arg
}

func sessionValue(session *chainz.Session, key string) (string, bool) {
	if session == nil {
		return "", false
	}
	v, ok := session.Value(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
