package chainz

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseEvent(t *testing.T) {
	text := "Sure! Here is the event:\nTitle: Campaign Review\nDate: 2025-04-17\nTime: 3:00 PM\nDescription: Review the draft\nwith the whole team"

	info, err := ParseEvent(text)
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}
	if info.Title != "Campaign Review" || info.Date != "2025-04-17" || info.Time != "3:00 PM" {
		t.Errorf("Unexpected fields %+v", info)
	}
	if info.Description != "Review the draft\nwith the whole team" {
		t.Errorf("Expected multi-line description verbatim, got %q", info.Description)
	}
}

func TestParseEvent_CRLF(t *testing.T) {
	info, err := ParseEvent("Title: Sync\r\nDate: 2025-04-20\r\nTime: 10:00\r\nDescription: weekly")
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}
	if info.Time != "10:00" || info.Description != "weekly" {
		t.Errorf("Unexpected fields %+v", info)
	}
}

func TestParseEvent_MissingMarkers(t *testing.T) {
	inputs := []string{
		"Date: 2025-04-20\nTime: 10:00\nDescription: no title",
		"Let's meet next week.",
		"",
	}
	for _, in := range inputs {
		_, err := ParseEvent(in)
		var parseErr *EventParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("Expected EventParseError for %q, got %v", in, err)
		}
		if parseErr.Error() != "no event info found" {
			t.Errorf("Unexpected reason %q", parseErr.Error())
		}
	}
}

func TestEventInfo_Schedule(t *testing.T) {
	loc := time.FixedZone("WIB", 7*60*60)
	now := time.Date(2025, 4, 13, 9, 0, 0, 0, loc)

	tests := []struct {
		name string
		info EventInfo
		want time.Time
	}{
		{
			name: "12 hour clock",
			info: EventInfo{Title: "Review", Date: "2025-04-17", Time: "3:00 PM"},
			want: time.Date(2025, 4, 17, 15, 0, 0, 0, loc),
		},
		{
			name: "24 hour clock",
			info: EventInfo{Title: "Review", Date: "2025-04-17", Time: "15:30"},
			want: time.Date(2025, 4, 17, 15, 30, 0, 0, loc),
		},
		{
			name: "collapsed whitespace",
			info: EventInfo{Title: "Review", Date: " 2025-04-17 ", Time: "3:00   PM"},
			want: time.Date(2025, 4, 17, 15, 0, 0, 0, loc),
		},
		{
			name: "defaults",
			info: EventInfo{Title: "Follow-up"},
			want: time.Date(2025, 4, 20, 10, 0, 0, 0, loc),
		},
		{
			name: "default time only",
			info: EventInfo{Title: "Follow-up", Date: "2025-05-01"},
			want: time.Date(2025, 5, 1, 10, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := tt.info.Schedule(now, loc)
			if err != nil {
				t.Fatalf("Schedule failed: %v", err)
			}
			if !event.Start.Equal(tt.want) {
				t.Errorf("Expected start %v, got %v", tt.want, event.Start)
			}
			if event.End.Sub(event.Start) != DefaultEventDuration {
				t.Errorf("Expected one hour event, got %v", event.End.Sub(event.Start))
			}
			if event.TimeZone != "WIB" {
				t.Errorf("Unexpected zone %q", event.TimeZone)
			}
		})
	}
}

func TestEventInfo_ScheduleUnparsable(t *testing.T) {
	_, err := EventInfo{Title: "x", Date: "next Thursday", Time: "3PM"}.Schedule(time.Now(), time.UTC)
	var parseErr *EventParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected EventParseError, got %v", err)
	}
	if !strings.Contains(parseErr.Reason, "next Thursday 3PM") {
		t.Errorf("Expected offending value in reason, got %q", parseErr.Reason)
	}
}

func TestDescribeEventError(t *testing.T) {
	_, noInfo := ParseEvent("nothing")
	if got := DescribeEventError(noInfo); got != "No event info found." {
		t.Errorf("Unexpected text %q", got)
	}

	_, bad := EventInfo{Date: "soon"}.Schedule(time.Now(), time.UTC)
	if got := DescribeEventError(bad); !strings.HasPrefix(got, "Error parsing event: ") {
		t.Errorf("Unexpected text %q", got)
	}

	if got := DescribeEventError(errors.New("calendar offline")); got != "Error creating calendar event: calendar offline" {
		t.Errorf("Unexpected text %q", got)
	}
}

func TestLoadTimeZone(t *testing.T) {
	if loc := LoadTimeZone("Not/AZone"); loc != time.UTC {
		t.Errorf("Expected UTC fallback, got %v", loc)
	}
	if loc := LoadTimeZone("UTC"); loc.String() != "UTC" {
		t.Errorf("Expected UTC, got %v", loc)
	}
}
