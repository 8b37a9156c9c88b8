package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zoobzio/chainz"
)

// Drive stores text documents and returns their identifiers.
type Drive interface {
	Upload(ctx context.Context, name, content string) (id string, err error)
}

// Calendar records events and returns a link to the created entry.
type Calendar interface {
	Create(ctx context.Context, event chainz.CalendarEvent) (link string, err error)
}

// LocalDrive writes documents under a directory. Each upload gets a fresh ID and
// is stored as "<id>-<name>". Uploads are serialized.
type LocalDrive struct {
	dir string
	mu  sync.Mutex
}

// NewLocalDrive creates a drive rooted at dir, creating it if needed.
func NewLocalDrive(dir string) (*LocalDrive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create drive directory: %w", err)
	}
	return &LocalDrive{dir: dir}, nil
}

// Upload implements Drive.
func (d *LocalDrive) Upload(_ context.Context, name, content string) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("file name is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id := uuid.New().String()
	path := filepath.Join(d.dir, id+"-"+name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return id, nil
}

// Path returns where a document uploaded as name with id is stored.
func (d *LocalDrive) Path(id, name string) string {
	return filepath.Join(d.dir, id+"-"+filepath.Base(name))
}

// LocalCalendar appends events as JSON lines to a file. Writes are serialized.
type LocalCalendar struct {
	path string
	mu   sync.Mutex
}

// NewLocalCalendar creates a calendar backed by the file at path.
func NewLocalCalendar(path string) *LocalCalendar {
	return &LocalCalendar{path: path}
}

type calendarRecord struct {
	ID string `json:"id"`
	chainz.CalendarEvent
}

// Create implements Calendar.
func (c *LocalCalendar) Create(_ context.Context, event chainz.CalendarEvent) (string, error) {
	record := calendarRecord{ID: uuid.New().String(), CalendarEvent: event}
	line, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create calendar directory: %w", err)
		}
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open calendar: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return "", fmt.Errorf("write event: %w", err)
	}
	return "file://" + c.path + "#" + record.ID, nil
}

// Events reads back every recorded event.
func (c *LocalCalendar) Events() ([]chainz.CalendarEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}

	var events []chainz.CalendarEvent
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var record calendarRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, record.CalendarEvent)
	}
	return events, nil
}
