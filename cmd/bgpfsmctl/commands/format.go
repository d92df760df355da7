package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/trungkstn/bgpfsmd/internal/adminapi"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatSessions renders a slice of session statuses in the requested format.
func formatSessions(sessions []adminapi.SessionStatus, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(sessions)
	case formatTable:
		return formatSessionsTable(sessions), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatSession renders a single session status in the requested format.
func formatSession(session adminapi.SessionStatus, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(session)
	case formatTable:
		return formatSessionDetail(session), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatEvent renders a session event in the requested format.
func formatEvent(event adminapi.SessionEventPayload, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(event)
	case formatTable:
		return formatEventTable(event), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// --- Table formatters ---

func formatSessionsTable(sessions []adminapi.SessionStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PEER\tADMIN-STATE\tCONNECTIONS")

	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Peer, s.AdminState, connectionsSummary(s.Connections))
	}

	_ = w.Flush()
	return buf.String()
}

func formatSessionDetail(s adminapi.SessionStatus) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Peer:         %s\n", s.Peer)
	fmt.Fprintf(&buf, "Admin state:  %s\n", s.AdminState)
	fmt.Fprintln(&buf, "Connections:")
	for _, c := range s.Connections {
		fmt.Fprintf(&buf, "  %-10s %s\n", c.Ordinal, c.State)
	}
	return buf.String()
}

func formatEventTable(ev adminapi.SessionEventPayload) string {
	if ev.Err != "" {
		return fmt.Sprintf("%s\t%s\t%s\tstopped=%v\terror=%s", ev.Peer, ev.Ordinal, ev.Kind, ev.Stopped, ev.Err)
	}
	return fmt.Sprintf("%s\t%s\t%s\tstopped=%v", ev.Peer, ev.Ordinal, ev.Kind, ev.Stopped)
}

func connectionsSummary(conns []adminapi.ConnectionStatus) string {
	parts := make([]string, 0, len(conns))
	for _, c := range conns {
		parts = append(parts, c.Ordinal+"="+c.State)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

func formatJSONValue(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal JSON: %w", err)
	}
	return string(b) + "\n", nil
}
