package render

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/rickgao/pricefeed/internal/connection"
	"github.com/rickgao/pricefeed/internal/model"
	"github.com/rickgao/pricefeed/internal/subscription"
)

// DefaultWidth is the sparkline width in cells.
const DefaultWidth = 60

var levels = []rune("▁▂▃▄▅▆▇█")

// Chart renders subscription state.
type Chart struct {
	Width     int        // Sparkline cells; the newest points are kept (default: 60)
	Formatter *Formatter // Number formatting (default: English)
}

// NewChart creates a chart with default settings.
func NewChart() *Chart {
	return &Chart{Width: DefaultWidth, Formatter: NewFormatter(language.English)}
}

// Render returns the header and sparkline for s.
func (c *Chart) Render(s subscription.State) string {
	f := c.Formatter
	if f == nil {
		f = NewFormatter(language.English)
	}

	if s.Subject == "" {
		return "No instrument selected\n"
	}

	var b strings.Builder
	switch {
	case s.Instrument != nil:
		inst := s.Instrument
		fmt.Fprintf(&b, "%s  %s\n", inst.ID, inst.Name)
		fmt.Fprintf(&b, "%s", f.Price(inst.CurrentPrice))
		if len(s.History) > 0 {
			fmt.Fprintf(&b, "  %s", f.Change(s.History[0].Value, inst.CurrentPrice))
		}
		fmt.Fprintf(&b, "  [%s]\n", connLabel(s.ConnectionState))
	case s.Loading:
		fmt.Fprintf(&b, "Loading %s...\n", s.Subject)
	default:
		fmt.Fprintf(&b, "%s  [%s]\n", s.Subject, connLabel(s.ConnectionState))
	}

	if s.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", s.Error)
	}

	if len(s.History) > 0 {
		b.WriteString(c.sparkline(s.History))
		b.WriteByte('\n')
		lo, hi := bounds(s.History)
		last := s.History[len(s.History)-1]
		fmt.Fprintf(&b, "low %s  high %s  points %d  updated %s\n",
			f.Price(lo), f.Price(hi), len(s.History), FormatTime(last.Timestamp, true))
	}
	return b.String()
}

func (c *Chart) sparkline(points []model.PricePoint) string {
	width := c.Width
	if width <= 0 {
		width = DefaultWidth
	}
	if len(points) > width {
		points = points[len(points)-width:]
	}

	lo, hi := bounds(points)
	span := hi - lo
	top := len(levels) - 1

	out := make([]rune, len(points))
	for i, p := range points {
		idx := top / 2
		if span > 0 {
			idx = int((p.Value - lo) / span * float64(top))
		}
		out[i] = levels[idx]
	}
	return string(out)
}

func bounds(points []model.PricePoint) (lo, hi float64) {
	lo, hi = points[0].Value, points[0].Value
	for _, p := range points[1:] {
		lo = min(lo, p.Value)
		hi = max(hi, p.Value)
	}
	return lo, hi
}

func connLabel(s connection.State) string {
	switch s {
	case connection.StateOpen:
		return "live"
	case connection.StateConnecting:
		return "connecting"
	case connection.StateFailed:
		return "disconnected"
	default:
		return s.String()
	}
}
