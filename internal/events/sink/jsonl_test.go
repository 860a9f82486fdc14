package sink

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/forgebuild/forge/internal/events"
)

func TestRunWritesOneJSONLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	ch := make(chan events.Event, 2)
	ch <- events.Event{Kind: events.BuildStarted}
	ch <- events.Event{Kind: events.TaskStarted, TaskName: "api/compile"}
	close(ch)

	if err := f.Run(ch); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	raw, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()

	scanner := bufio.NewScanner(raw)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}

	var second events.Event
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshaling second line: %v", err)
	}
	if second.Kind != events.TaskStarted || second.TaskName != "api/compile" {
		t.Fatalf("second event = %+v, want TaskStarted/api/compile", second)
	}
}
