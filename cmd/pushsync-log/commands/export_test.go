package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pushsync/pushsync-go/pkg/log"
)

func exportEvents() []log.Event {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	return []log.Event{
		{
			Timestamp: ts, SessionID: testSession, InstanceID: "inst-1", DeviceID: "device-1",
			Direction: log.DirectionOut, Layer: log.LayerTransport, Category: log.CategoryMessage,
			Request: &log.RequestEvent{Operation: "updateInterests", Attempt: 1, Interests: []string{"a", "b"}},
		},
		{
			Timestamp: ts.Add(time.Millisecond), SessionID: testSession, InstanceID: "inst-1", DeviceID: "device-1",
			Direction: log.DirectionIn, Layer: log.LayerTransport, Category: log.CategoryMessage,
			Response: &log.ResponseEvent{Operation: "updateInterests", Attempt: 1, Result: "OK", Duration: time.Millisecond},
		},
		{
			Timestamp: ts.Add(2 * time.Millisecond), SessionID: testSession,
			Direction: log.DirectionLocal, Layer: log.LayerEngine, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerEngine, Message: "boom", Kind: "RETRYABLE"},
		},
	}
}

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, exportEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	var first log.Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line is not a JSON event: %v", err)
	}
	if first.Request == nil || first.Request.Operation != "updateInterests" {
		t.Errorf("unexpected first event: %+v", first)
	}
	if first.SessionID != testSession {
		t.Errorf("expected session %s, got %s", testSession, first.SessionID)
	}
}

func TestExportToCSV(t *testing.T) {
	path := createTestLogFile(t, exportEvents())
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header and 3 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(csvHeader, ",") {
		t.Errorf("unexpected header: %v", rows[0])
	}

	req := rows[1]
	if req[7] != "request" || req[8] != "updateInterests" || req[11] != "a b" {
		t.Errorf("unexpected request row: %v", req)
	}
	resp := rows[2]
	if resp[7] != "response" || resp[10] != "OK" || resp[11] != "1ms" {
		t.Errorf("unexpected response row: %v", resp)
	}
	errRow := rows[3]
	if errRow[4] != "ERROR" || errRow[10] != "RETRYABLE" || errRow[11] != "boom" {
		t.Errorf("unexpected error row: %v", errRow)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, exportEvents())
	err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out.xml"))
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}

func TestExportJSONLToWriter(t *testing.T) {
	path := createTestLogFile(t, exportEvents()[:1])
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if err := exportJSONL(reader, &buf); err != nil {
		t.Fatalf("exportJSONL failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"Operation":"updateInterests"`) {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
