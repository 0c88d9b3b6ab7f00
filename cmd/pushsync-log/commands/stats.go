package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pushsync/pushsync-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Operations        map[string]*OperationStats
	Sessions          map[string]*SessionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// OperationStats holds response statistics for one client operation.
type OperationStats struct {
	Requests  int
	Results   map[string]int
	Discarded int
	Total     time.Duration
	Max       time.Duration
}

// Mean returns the mean response time.
func (o *OperationStats) Mean() time.Duration {
	n := 0
	for _, c := range o.Results {
		n += c
	}
	if n == 0 {
		return 0
	}
	return o.Total / time.Duration(n)
}

// SessionStats holds statistics for a single instance session.
type SessionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	InstanceID string
	DeviceID   string
	LastState  string
}

// Collect reads the log file at path and aggregates its events.
func Collect(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Operations:        make(map[string]*OperationStats),
		Sessions:          make(map[string]*SessionStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	sess, ok := s.Sessions[event.SessionID]
	if !ok {
		sess = &SessionStats{
			FirstSeen:  event.Timestamp,
			LastSeen:   event.Timestamp,
			InstanceID: event.InstanceID,
		}
		s.Sessions[event.SessionID] = sess
	}
	sess.Events++
	if event.Timestamp.After(sess.LastSeen) {
		sess.LastSeen = event.Timestamp
	}
	if event.DeviceID != "" {
		sess.DeviceID = event.DeviceID
	}

	switch {
	case event.Request != nil:
		s.operation(event.Request.Operation).Requests++
	case event.Response != nil:
		op := s.operation(event.Response.Operation)
		op.Results[event.Response.Result]++
		if event.Response.Discarded {
			op.Discarded++
		}
		op.Total += event.Response.Duration
		op.Max = max(op.Max, event.Response.Duration)
	case event.StateChange != nil:
		if event.StateChange.Entity == log.StateEntityInstance {
			sess.LastState = event.StateChange.NewState
		}
	case event.Error != nil:
		s.Errors++
	}
}

func (s *Stats) operation(name string) *OperationStats {
	op, ok := s.Operations[name]
	if !ok {
		op = &OperationStats{Results: make(map[string]int)}
		s.Operations[name] = op
	}
	return op
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Push Sync Event Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerEngine, log.LayerApplication} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryNotification, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Operations) > 0 {
		fmt.Fprintln(w, "Operations:")
		names := make([]string, 0, len(stats.Operations))
		for name := range stats.Operations {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			op := stats.Operations[name]
			fmt.Fprintf(w, "  %-18s %d requests, mean %s, max %s\n",
				name+":", op.Requests, formatDuration(op.Mean()), formatDuration(op.Max))

			results := make([]string, 0, len(op.Results))
			for r := range op.Results {
				results = append(results, r)
			}
			sort.Strings(results)
			for _, r := range results {
				fmt.Fprintf(w, "    %-16s %d\n", r+":", op.Results[r])
			}
			if op.Discarded > 0 {
				fmt.Fprintf(w, "    %-16s %d\n", "discarded:", op.Discarded)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenID(s.id), s.stats.Events, duration)
			if s.stats.DeviceID != "" {
				fmt.Fprintf(w, "             Device: %s\n", s.stats.DeviceID)
			}
			if s.stats.LastState != "" {
				fmt.Fprintf(w, "             State: %s\n", s.stats.LastState)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
