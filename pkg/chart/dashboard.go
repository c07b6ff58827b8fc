package chart

import (
	"fmt"
	"io"
	"sync"

	"github.com/go-echarts/go-echarts/v2/components"
)

// Entry is a labelled chart on a dashboard.
type Entry struct {
	Label string
	Chart *Chart
}

// Dashboard accumulates labelled charts in insertion order.
// It is safe for concurrent use.
type Dashboard struct {
	mu      sync.RWMutex
	title   string
	entries []Entry
}

// NewDashboard creates an empty dashboard.
func NewDashboard(title string) *Dashboard {
	return &Dashboard{title: title}
}

// Add appends a chart under label. Nil charts are ignored.
func (d *Dashboard) Add(label string, c *Chart) {
	if c == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if label == "" {
		label = fmt.Sprintf("Chart %d", len(d.entries)+1)
	}
	d.entries = append(d.entries, Entry{Label: label, Chart: c})
}

// Entries returns a snapshot of the dashboard contents.
func (d *Dashboard) Entries() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Len returns the number of charts.
func (d *Dashboard) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Reset removes every chart.
func (d *Dashboard) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = nil
}

// Render writes all charts as one HTML page. Each chart is titled with its
// label and carries its own title as subtitle.
func (d *Dashboard) Render(w io.Writer) error {
	entries := d.Entries()
	if len(entries) == 0 {
		return ErrEmptyChart
	}

	page := components.NewPage().SetPageTitle(d.title)
	for _, e := range entries {
		subtitle := ""
		if e.Chart.Title != e.Label {
			subtitle = e.Chart.Title
		}
		c, err := e.Chart.build(e.Label, subtitle)
		if err != nil {
			return fmt.Errorf("chart %q: %w", e.Label, err)
		}
		page.AddCharts(c)
	}
	return page.Render(w)
}
