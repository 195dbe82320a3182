// Package infra contains infrastructure adapters for the cycle context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/solkite/triarb/business/cycle/app"
	"github.com/solkite/triarb/business/cycle/domain"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("240"))
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// ConsoleReporter renders ranked cycles as a styled table.
type ConsoleReporter struct {
	out     io.Writer
	maxRows int
}

// NewConsoleReporter creates a ConsoleReporter writing to stdout.
func NewConsoleReporter(maxRows int) *ConsoleReporter {
	if maxRows <= 0 {
		maxRows = 25
	}
	return &ConsoleReporter{out: os.Stdout, maxRows: maxRows}
}

// NewConsoleReporterTo creates a ConsoleReporter writing to w.
func NewConsoleReporterTo(w io.Writer, maxRows int) *ConsoleReporter {
	r := NewConsoleReporter(maxRows)
	r.out = w
	return r
}

// Report renders the search report.
func (r *ConsoleReporter) Report(ctx context.Context, report *app.SearchReport) error {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, titleStyle.Render("TRIANGULAR ARBITRAGE SEARCH"))
	fmt.Fprintln(r.out, strings.Repeat("=", 98))

	if len(report.Cycles) == 0 {
		fmt.Fprintln(r.out, dimStyle.Render("no cycles found"))
	} else {
		fmt.Fprintln(r.out, headStyle.Render(fmt.Sprintf(
			"%-4s %-38s %-12s %-12s %-6s %s", "#", "route", "raw %", "net %", "pass", "pools")))
		for i, c := range report.Cycles {
			if i >= r.maxRows {
				fmt.Fprintln(r.out, dimStyle.Render(fmt.Sprintf("... %d more", len(report.Cycles)-r.maxRows)))
				break
			}
			r.renderCycle(i+1, c)
		}
	}

	r.renderStats(report.Stats)
	return nil
}

func (r *ConsoleReporter) renderCycle(rank int, c *domain.Cycle) {
	pass := failStyle.Render("no")
	if c.Passes {
		pass = passStyle.Render("yes")
	}
	pools := fmt.Sprintf("%s > %s > %s",
		shortID(c.Legs[0].PoolID), shortID(c.Legs[1].PoolID), shortID(c.Legs[2].PoolID))

	fmt.Fprintf(r.out, "%-4d %-38s %-12s %-12s %-6s %s\n",
		rank,
		c.Route(),
		c.RawProfitPct.StringFixed(4),
		c.NetAfterCostsPct.StringFixed(4),
		pass,
		dimStyle.Render(pools),
	)
}

func (r *ConsoleReporter) renderStats(stats *domain.Stats) {
	fmt.Fprintln(r.out, strings.Repeat("-", 98))
	fmt.Fprintf(r.out, "pools: %d considered, %d anchor outliers removed | intermediates: %d\n",
		stats.PoolsConsidered, stats.PoolsFiltered, stats.Intermediates)
	fmt.Fprintf(r.out, "triples: %d simulated | cycles: %d emitted, %d passing | %s\n",
		stats.TriplesSimulated, stats.CyclesEmitted, stats.CyclesPassing, stats.Duration.Round(time.Millisecond))

	if len(stats.TriplesDiscarded) > 0 {
		fmt.Fprintf(r.out, "discarded: %s\n", formatCounts(stats.TriplesDiscarded))
	}
	if len(stats.ErrorsByKind) > 0 {
		fmt.Fprintf(r.out, "errors: %s\n", formatCounts(stats.ErrorsByKind))
	}
	if stats.Cancelled {
		fmt.Fprintln(r.out, failStyle.Render("search cancelled; partial results shown"))
	}
}

func formatCounts(counts map[string]int64) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
