package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/autoprice/internal/cache"
	"github.com/Aman-CERP/autoprice/internal/history"
	"github.com/Aman-CERP/autoprice/internal/index"
	"github.com/Aman-CERP/autoprice/internal/search"
)

// Renderer writes human or JSON output for the CLI commands.
type Renderer struct {
	out    io.Writer
	styles Styles
	json   bool
	now    func() time.Time
}

// NewRenderer creates a renderer. Colors are applied only when out is a
// terminal; asJSON switches every method to indented JSON.
func NewRenderer(out io.Writer, asJSON bool) *Renderer {
	return &Renderer{
		out:    out,
		styles: GetStyles(!ShouldColor(out)),
		json:   asJSON,
		now:    time.Now,
	}
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SearchResults prints ranked results.
func (r *Renderer) SearchResults(query string, results []search.Result) error {
	if r.json {
		if results == nil {
			results = []search.Result{}
		}
		return r.JSON(results)
	}
	if len(results) == 0 {
		_, _ = fmt.Fprintf(r.out, "No matches for %q\n", query)
		return nil
	}

	_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Header.Render(fmt.Sprintf("%d result(s) for %q", len(results), query)))
	for i, res := range results {
		_, _ = fmt.Fprintf(r.out, "%3d. %s  %s  %s\n",
			i+1,
			r.styles.Title.Render(res.DisplayText),
			r.styles.Price.Render(FormatPrice(res.Price)),
			r.styles.Score.Render(fmt.Sprintf("(score %d)", res.Score)),
		)
	}
	return nil
}

// History prints the recent items, newest first.
func (r *Renderer) History(items []history.Item) error {
	if r.json {
		if items == nil {
			items = []history.Item{}
		}
		return r.JSON(items)
	}
	if len(items) == 0 {
		_, _ = fmt.Fprintln(r.out, "History is empty")
		return nil
	}

	_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Header.Render("Recent vehicles"))
	for i, it := range items {
		title := strings.TrimSpace(it.Brand + " " + it.Name)
		if it.Variant != "" {
			title += " [" + it.Variant + "]"
		}
		_, _ = fmt.Fprintf(r.out, "%3d. %s  %s  %s\n",
			i+1,
			r.styles.Title.Render(title),
			r.styles.Price.Render(FormatPrice(it.Price)),
			r.styles.Dim.Render(FormatAge(r.now(), it.InsertedAt)),
		)
	}
	return nil
}

// CacheStats prints per-tier counters and the index summary.
func (r *Renderer) CacheStats(stats cache.Stats, idx index.Stats) error {
	if r.json {
		return r.JSON(struct {
			Cache cache.Stats `json:"cache"`
			Index index.Stats `json:"index"`
		}{stats, idx})
	}

	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Cache"))
	_, _ = fmt.Fprintf(r.out, "  %-8s %6s %8s %8s %6s %6s %9s %8s %10s\n",
		"TIER", "SIZE", "CAPACITY", "TTL", "HITS", "MISSES", "EVICTIONS", "EXPIRED", "PROMOTIONS")
	for _, t := range stats.Tiers {
		_, _ = fmt.Fprintf(r.out, "  %-8s %6d %8d %8s %6d %6d %9d %8d %10d\n",
			t.Tier, t.Size, t.Capacity, t.DefaultTTL, t.Hits, t.Misses, t.Evictions, t.Expirations, t.Promotions)
	}
	_, _ = fmt.Fprintf(r.out, "\n  %s %d   %s %.1f%%\n\n",
		r.styles.Label.Render("Entries:"), stats.Entries,
		r.styles.Label.Render("Hit rate:"), stats.HitRate*100)

	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index"))
	_, _ = fmt.Fprintf(r.out, "  Generation: %d\n", idx.Generation)
	_, _ = fmt.Fprintf(r.out, "  Documents:  %d\n", idx.Documents)
	_, _ = fmt.Fprintf(r.out, "  Tokens:     %d\n", idx.Tokens)
	_, _ = fmt.Fprintf(r.out, "  Postings:   %d (%s)\n", idx.Postings, FormatBytes(int64(idx.SizeBytes)))
	return nil
}

// Message prints a one-line status in the success style.
func (r *Renderer) Message(format string, args ...any) {
	_, _ = fmt.Fprintln(r.out, r.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a one-line warning.
func (r *Renderer) Warn(format string, args ...any) {
	_, _ = fmt.Fprintln(r.out, r.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// FormatPrice renders a price with thousands separators and no decimals
// for whole amounts.
func FormatPrice(p float64) string {
	cents := int64(math.Round(math.Abs(p) * 100))
	digits := strconv.FormatInt(cents/100, 10)

	var b strings.Builder
	if p < 0 && cents > 0 {
		b.WriteByte('-')
	}
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if rem := cents % 100; rem != 0 {
		fmt.Fprintf(&b, ".%02d", rem)
	}
	return b.String()
}

// FormatAge formats how long ago t was, relative to now.
func FormatAge(now, t time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
