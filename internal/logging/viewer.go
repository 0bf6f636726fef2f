package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Entry is one parsed JSON log line.
type Entry struct {
	Time    time.Time
	Level   string
	Msg     string
	Attrs   map[string]any
	Raw     string
	IsValid bool
}

// Filter selects entries by minimum level and message/attribute pattern.
type Filter struct {
	Level   string
	Pattern *regexp.Regexp
}

// Viewer reads, filters and prints log files for `autoprice logs`.
type Viewer struct {
	filter  Filter
	noColor bool
	out     io.Writer
}

var levelStyles = map[string]lipgloss.Style{
	"DEBUG": lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	"INFO":  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	"WARN":  lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
	"ERROR": lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
}

// NewViewer creates a viewer writing to out.
func NewViewer(filter Filter, noColor bool, out io.Writer) *Viewer {
	return &Viewer{filter: filter, noColor: noColor, out: out}
}

// Tail returns the matching entries among the last n lines of path.
// n <= 0 means all lines.
func (v *Viewer) Tail(path string, n int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if e := ParseLine(line); v.Matches(e) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Follow prints new matching lines appended to path until ctx is done.
func (v *Viewer) Follow(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek log file: %w", err)
	}

	reader := bufio.NewReader(f)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	var partial string
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			line = partial + strings.TrimRight(line, "\r\n")
			partial = ""
			if e := ParseLine(line); v.Matches(e) {
				_, _ = fmt.Fprintln(v.out, v.Format(e))
			}
			continue
		}
		if err != io.EOF {
			return fmt.Errorf("failed to read log file: %w", err)
		}
		partial += line

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Print writes formatted entries, one per line.
func (v *Viewer) Print(entries []Entry) {
	for _, e := range entries {
		_, _ = fmt.Fprintln(v.out, v.Format(e))
	}
}

// Format renders an entry as "15:04:05.000 LEVEL msg key=value ...".
// Lines that are not JSON are returned unchanged.
func (v *Viewer) Format(e Entry) string {
	if !e.IsValid {
		return e.Raw
	}

	var b strings.Builder
	b.WriteString(e.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(v.formatLevel(e.Level))
	b.WriteByte(' ')
	b.WriteString(e.Msg)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Attrs[k])
	}
	return b.String()
}

// Matches reports whether e passes the viewer's filter. Invalid lines
// pass only when no level filter is set.
func (v *Viewer) Matches(e Entry) bool {
	if v.filter.Level != "" {
		if !e.IsValid || LevelFromString(e.Level) < LevelFromString(v.filter.Level) {
			return false
		}
	}
	if v.filter.Pattern != nil && !v.filter.Pattern.MatchString(e.Raw) {
		return false
	}
	return true
}

func (v *Viewer) formatLevel(level string) string {
	label := fmt.Sprintf("%-5s", strings.ToUpper(level))
	if v.noColor {
		return label
	}
	style, ok := levelStyles[strings.ToUpper(level)]
	if !ok {
		return label
	}
	return style.Render(label)
}

// ParseLine decodes a slog JSON line; non-JSON lines come back with
// IsValid false and Raw set.
func ParseLine(line string) Entry {
	e := Entry{Raw: line}

	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return e
	}
	e.IsValid = true

	if s, ok := fields["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			e.Time = t
		}
	}
	e.Level, _ = fields["level"].(string)
	e.Msg, _ = fields["msg"].(string)

	delete(fields, "time")
	delete(fields, "level")
	delete(fields, "msg")
	if len(fields) > 0 {
		e.Attrs = fields
	}
	return e
}
