package chainz

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultTimeZone is the zone events are scheduled in when none is given.
const DefaultTimeZone = "Asia/Jakarta"

// Scheduling defaults applied by EventInfo.Schedule.
const (
	DefaultEventLead     = 7 * 24 * time.Hour
	DefaultEventTime     = "10:00 AM"
	DefaultEventDuration = time.Hour
)

// Event date/time layouts accepted by Schedule, tried in order.
var eventLayouts = []string{
	"2006-01-02 3:04 PM",
	"2006-01-02 15:04",
}

var (
	eventPattern = regexp.MustCompile(`(?s)Title: (.*?)\nDate: (.*?)\nTime: (.*?)\nDescription: (.*?)$`)
	spaces       = regexp.MustCompile(`\s+`)
)

// errNoEventInfo is the reason reported when the event markers are absent.
const errNoEventInfo = "no event info found"

// EventInfo is the structured record a model writes in the
// "Title: / Date: / Time: / Description:" layout. Fields are kept verbatim.
type EventInfo struct {
	Title       string
	Date        string
	Time        string
	Description string
}

// CalendarEvent is an EventInfo resolved to concrete times.
type CalendarEvent struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	TimeZone    string    `json:"time_zone"`
}

// ParseEvent extracts an EventInfo from free-form model output.
// Extraction is best effort; output without the markers yields *EventParseError.
func ParseEvent(text string) (EventInfo, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	match := eventPattern.FindStringSubmatch(text)
	if match == nil {
		return EventInfo{}, &EventParseError{Reason: errNoEventInfo}
	}
	return EventInfo{
		Title:       match[1],
		Date:        match[2],
		Time:        match[3],
		Description: match[4],
	}, nil
}

// Schedule resolves the event against now in loc.
// An empty date means one week from now and an empty time means 10:00 AM.
// Values that are present but unparsable are an *EventParseError.
func (e EventInfo) Schedule(now time.Time, loc *time.Location) (CalendarEvent, error) {
	if loc == nil {
		loc = time.Local
	}

	date := strings.TrimSpace(e.Date)
	if date == "" {
		date = now.In(loc).Add(DefaultEventLead).Format(time.DateOnly)
	}
	clock := spaces.ReplaceAllString(strings.TrimSpace(e.Time), " ")
	if clock == "" {
		clock = DefaultEventTime
	}

	value := date + " " + clock
	var start time.Time
	var err error
	for _, layout := range eventLayouts {
		start, err = time.ParseInLocation(layout, value, loc)
		if err == nil {
			break
		}
	}
	if err != nil {
		return CalendarEvent{}, &EventParseError{
			Reason: fmt.Sprintf("unrecognized date/time format: %s", value),
			Err:    err,
		}
	}

	return CalendarEvent{
		Title:       strings.TrimSpace(e.Title),
		Description: strings.TrimSpace(e.Description),
		Start:       start,
		End:         start.Add(DefaultEventDuration),
		TimeZone:    loc.String(),
	}, nil
}

// DescribeEventError renders an event failure the way calendar tools report it.
func DescribeEventError(err error) string {
	var parseErr *EventParseError
	if errors.As(err, &parseErr) {
		if parseErr.Reason == errNoEventInfo {
			return "No event info found."
		}
		return "Error parsing event: " + parseErr.Error()
	}
	return "Error creating calendar event: " + err.Error()
}

// LoadTimeZone loads name, falling back to UTC when the zone database lacks it.
func LoadTimeZone(name string) *time.Location {
	if name == "" {
		name = DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
