package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// FormatEventTime renders a CloudWatch Logs timestamp (Unix milliseconds)
// in local time.
func FormatEventTime(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05.000")
}

// PrintJSON writes v as indented JSON followed by a newline. Raw JSON bytes
// are re-indented rather than quoted.
func PrintJSON(w io.Writer, v any) error {
	if raw, ok := v.([]byte); ok {
		v = json.RawMessage(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("format output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
