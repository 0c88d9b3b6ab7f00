// Package commands implements the pushsync-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pushsync/pushsync-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	Operation string
}

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format(timestampLayout)
	fmt.Fprintf(w, "%s [session:%s] %-5s %s %s\n",
		ts, shortenID(event.SessionID), event.Direction, event.Layer, eventType(event))

	if event.DeviceID != "" {
		fmt.Fprintf(w, "  Device: %s\n", event.DeviceID)
	}

	switch {
	case event.Request != nil:
		formatRequestDetails(w, event.Request)
	case event.Response != nil:
		formatResponseDetails(w, event.Response)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Notification != nil:
		formatNotificationDetails(w, event.Notification)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// eventType returns the label shown in the header line.
func eventType(event log.Event) string {
	switch {
	case event.Request != nil:
		return "Request"
	case event.Response != nil:
		return "Response"
	case event.StateChange != nil:
		return "State"
	case event.Notification != nil:
		return event.Notification.Type.String()
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of a UUID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatRequestDetails(w io.Writer, req *log.RequestEvent) {
	fmt.Fprintf(w, "  Operation: %s", req.Operation)
	if req.Attempt > 1 {
		fmt.Fprintf(w, " (attempt %d)", req.Attempt)
	}
	fmt.Fprintln(w)
	if req.Interests != nil {
		fmt.Fprintf(w, "  Interests: [%s]\n", strings.Join(req.Interests, ", "))
	}
	if req.UserID != "" {
		fmt.Fprintf(w, "  User: %s\n", req.UserID)
	}
}

func formatResponseDetails(w io.Writer, resp *log.ResponseEvent) {
	fmt.Fprintf(w, "  Operation: %s", resp.Operation)
	if resp.Attempt > 1 {
		fmt.Fprintf(w, " (attempt %d)", resp.Attempt)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Result: %s", resp.Result)
	if resp.Discarded {
		fmt.Fprint(w, " (discarded)")
	}
	fmt.Fprintln(w)
	if resp.Duration > 0 {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(resp.Duration))
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatNotificationDetails(w io.Writer, n *log.NotificationEvent) {
	switch n.Type {
	case log.NotificationSubscriptionsChanged:
		fmt.Fprintf(w, "  Interests: [%s]\n", strings.Join(n.Interests, ", "))
	case log.NotificationOpCompleted:
		fmt.Fprintf(w, "  Operation: %s\n", n.Operation)
		fmt.Fprintf(w, "  Result: %s\n", n.Result)
	case log.NotificationError:
		if n.Result != "" {
			fmt.Fprintf(w, "  Result: %s\n", n.Result)
		}
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer)
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Kind != "" {
		fmt.Fprintf(w, "  Kind: %s\n", err.Kind)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "engine":
		return log.LayerEngine, nil
	case "application", "app":
		return log.LayerApplication, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, engine, or application)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	case "local":
		return log.DirectionLocal, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in, out, or local)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "state":
		return log.CategoryState, nil
	case "notification":
		return log.CategoryNotification, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, state, notification, or error)", s)
	}
}

// toFilter converts the view criteria to a reader filter.
func (f ViewFilter) toFilter() log.Filter {
	return log.Filter{
		Layer:     f.Layer,
		Direction: f.Direction,
		Category:  f.Category,
		Operation: f.Operation,
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.toFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
