package pgbench

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// LatencyMarker introduces the per-statement latency section of a pgbench report.
const LatencyMarker = "statement latencies in milliseconds"

// latencyPattern matches the first signed integer or decimal number of a line.
var latencyPattern = regexp.MustCompile(`[-+]?(?:\d*\.\d+|\d+)`)

// ResultParseError reports a pgbench report that could not be turned into latencies.
type ResultParseError struct {
	// Line is the offending data line, empty when the marker was not found.
	Line   string
	Reason string
}

func (e *ResultParseError) Error() string {
	if e.Line == "" {
		return "parsing pgbench report: " + e.Reason
	}

	return fmt.Sprintf("parsing pgbench report: %s: %q", e.Reason, e.Line)
}

// ParseReport extracts the per-statement latencies (milliseconds) from a
// pgbench report. Lines before the marker are ignored, every line after it
// must start a latency; the order mirrors the report.
func ParseReport(report string) ([]float64, error) {
	lines := strings.Split(strings.TrimRight(report, "\r\n"), "\n")

	found := false
	latencies := make([]float64, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")

		if !found {
			found = strings.Contains(line, LatencyMarker)

			continue
		}

		token := latencyPattern.FindString(line)
		if token == "" {
			return nil, &ResultParseError{Line: line, Reason: "unable to find time in line"}
		}

		value, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, &ResultParseError{Line: line, Reason: fmt.Sprintf("invalid number %q", token)}
		}

		latencies = append(latencies, value)
	}

	if !found {
		return nil, &ResultParseError{Reason: "no statement latencies found"}
	}

	return latencies, nil
}
