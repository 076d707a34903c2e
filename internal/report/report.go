// Package report renders the registry's current contents as an
// operator-facing diagnostic dump: one block per tracked entry with its
// handle state, mode, filename, and full open/close provenance.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gobwas/glob"

	"github.com/softcask/filetrack/internal/registry"
)

// Reporter writes diagnostic dumps of registry snapshots.
type Reporter struct {
	w       io.Writer
	color   bool
	pattern glob.Glob

	titleStyle  lipgloss.Style
	openStyle   lipgloss.Style
	closedStyle lipgloss.Style
	labelStyle  lipgloss.Style
	siteStyle   lipgloss.Style
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithColor enables lipgloss-styled output. Off by default so piped
// output stays plain.
func WithColor(on bool) Option {
	return func(r *Reporter) { r.color = on }
}

// WithPattern restricts the dump to entries whose filename matches the
// given glob pattern. An empty pattern matches everything.
func WithPattern(pattern string) (Option, error) {
	if pattern == "" {
		return func(*Reporter) {}, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
	}
	return func(r *Reporter) { r.pattern = g }, nil
}

// New creates a Reporter writing to w.
func New(w io.Writer, opts ...Option) *Reporter {
	r := &Reporter{w: w}
	for _, opt := range opts {
		opt(r)
	}

	if r.color {
		r.titleStyle = lipgloss.NewStyle().Bold(true)
		r.openStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
		r.closedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		r.labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
		r.siteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	}
	return r
}

// Render writes one block per entry plus a summary line. Entries are
// ordered by filename, then open site, so the dump is stable across runs.
func (r *Reporter) Render(entries []registry.Entry) error {
	filtered := entries[:0:0]
	for _, e := range entries {
		if r.pattern != nil && !r.pattern.Match(e.Filename) {
			continue
		}
		filtered = append(filtered, e)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Filename != filtered[j].Filename {
			return filtered[i].Filename < filtered[j].Filename
		}
		return filtered[i].OpenSite.String() < filtered[j].OpenSite.String()
	})

	var b strings.Builder
	open := 0
	for _, e := range filtered {
		if !e.Closed {
			open++
		}
		r.renderEntry(&b, e)
	}

	fmt.Fprintf(&b, "%s %d tracked, %d open, %d closed\n",
		r.titleStyle.Render("total:"), len(filtered), open, len(filtered)-open)

	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Reporter) renderEntry(b *strings.Builder, e registry.Entry) {
	state := r.openStyle.Render("open")
	if e.Closed {
		state = r.closedStyle.Render("closed")
	}

	fmt.Fprintf(b, "%s  %s\n", r.titleStyle.Render(e.Filename), state)
	fmt.Fprintf(b, "  %s %s", r.labelStyle.Render("mode:"), e.Mode)
	if e.NameTruncated {
		fmt.Fprintf(b, "  %s", r.labelStyle.Render("(name truncated)"))
	}
	fmt.Fprintf(b, "\n  %s %s  %s %s\n",
		r.labelStyle.Render("opened via:"), e.OpenKind,
		r.labelStyle.Render("at:"), r.siteStyle.Render(e.OpenSite.String()))

	if !e.ModeChangeSite.IsZero() {
		fmt.Fprintf(b, "  %s %s\n",
			r.labelStyle.Render("last mode change at:"),
			r.siteStyle.Render(e.ModeChangeSite.String()))
	}
	if e.Closed {
		fmt.Fprintf(b, "  %s %s  %s %s\n",
			r.labelStyle.Render("closed via:"), e.CloseKind,
			r.labelStyle.Render("at:"), r.siteStyle.Render(e.CloseSite.String()))
	}
	b.WriteByte('\n')
}

// RenderLeaks writes the shutdown sweep's findings, one line per leak.
func (r *Reporter) RenderLeaks(leaks []registry.Leak) error {
	var b strings.Builder
	if len(leaks) == 0 {
		b.WriteString("no leaked handles\n")
	}
	for _, l := range leaks {
		fmt.Fprintf(&b, "%s %s (mode %s, opened via %s at %s)",
			r.closedStyle.Render("leaked:"), r.titleStyle.Render(l.Filename),
			l.Mode, l.OpenKind, r.siteStyle.Render(l.OpenSite.String()))
		if l.CloseErr != nil {
			fmt.Fprintf(&b, "  forced close failed: %v", l.CloseErr)
		}
		b.WriteByte('\n')
	}

	_, err := io.WriteString(r.w, b.String())
	return err
}
