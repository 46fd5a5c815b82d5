package output

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/vsinha/rebalance/pkg/application/dto"
	"github.com/vsinha/rebalance/pkg/application/services/adjustment"
	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// CapacityChart draws ledger buckets as horizontal load bars
type CapacityChart struct {
	Width        int
	Height       int
	MarginLeft   int
	MarginTop    int
	MarginRight  int
	MarginBottom int
	RowHeight    int
	// MaxQty scales every bar; it is the largest bucket maximum
	MaxQty entities.Quantity
}

// CapacityBar is one bucket row in the chart
type CapacityBar struct {
	Bucket   entities.BucketKey
	Max      entities.Quantity
	Current  entities.Quantity
	Incoming entities.Quantity
	Badge    string
}

// NewCapacityChart sizes a chart for the result ledger
func NewCapacityChart(result *dto.AdjustmentResult) *CapacityChart {
	chart := &CapacityChart{
		Width:        900,
		MarginLeft:   160,
		MarginTop:    60,
		MarginRight:  120,
		MarginBottom: 40,
		RowHeight:    26,
	}
	for _, entry := range result.Ledger {
		if entry.Max > chart.MaxQty {
			chart.MaxQty = entry.Max
		}
	}
	rows := len(result.Ledger)
	if rows == 0 {
		rows = 1
	}
	chart.Height = chart.MarginTop + rows*chart.RowHeight + chart.MarginBottom
	return chart
}

// Bars pairs every ledger bucket with the quantity accepted into it
func (cc *CapacityChart) Bars(result *dto.AdjustmentResult) []CapacityBar {
	incoming := make(map[entities.BucketKey]entities.Quantity)
	for _, mv := range result.Outcome.Accepted {
		incoming[mv.To] += mv.Qty
	}

	bars := make([]CapacityBar, 0, len(result.Ledger))
	for _, entry := range result.Ledger {
		bar := CapacityBar{
			Bucket:   entry.Bucket,
			Max:      entry.Max,
			Current:  entry.Current,
			Incoming: incoming[entry.Bucket],
		}
		bar.Badge = badgeAfter(bar)
		bars = append(bars, bar)
	}
	return bars
}

// GenerateSVG renders the chart
func (cc *CapacityChart) GenerateSVG(result *dto.AdjustmentResult) string {
	if len(result.Ledger) == 0 || cc.MaxQty <= 0 {
		return cc.generateEmptyChart()
	}

	var svg strings.Builder
	fmt.Fprintf(&svg, `<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">`, cc.Width, cc.Height)
	svg.WriteString(`<defs><style>`)
	svg.WriteString(`.bucket-label { font-family: Arial, sans-serif; font-size: 12px; fill: #333; }`)
	svg.WriteString(`.qty-label { font-family: Arial, sans-serif; font-size: 10px; fill: #666; }`)
	svg.WriteString(`.title { font-family: Arial, sans-serif; font-size: 16px; font-weight: bold; fill: #333; }`)
	svg.WriteString(`.max-outline { fill: none; stroke: #333; stroke-width: 1; }`)
	svg.WriteString(`</style></defs>`)
	fmt.Fprintf(&svg, `<rect width="%d" height="%d" fill="white"/>`, cc.Width, cc.Height)
	fmt.Fprintf(&svg, `<text x="%d" y="30" class="title" text-anchor="middle">Capacity after moves from %s</text>`,
		cc.Width/2, html.EscapeString(result.Target.String()))

	for i, bar := range cc.Bars(result) {
		cc.drawBar(&svg, bar, cc.MarginTop+i*cc.RowHeight)
	}
	cc.drawLegend(&svg)

	svg.WriteString(`</svg>`)
	return svg.String()
}

func (cc *CapacityChart) scale(qty entities.Quantity) int {
	chartWidth := cc.Width - cc.MarginLeft - cc.MarginRight
	if qty <= 0 {
		return 0
	}
	return int(int64(qty) * int64(chartWidth) / int64(cc.MaxQty))
}

func (cc *CapacityChart) drawBar(svg *strings.Builder, bar CapacityBar, rowY int) {
	barHeight := cc.RowHeight - 6
	barY := rowY + 3

	fmt.Fprintf(svg, `<text x="%d" y="%d" class="bucket-label" text-anchor="end">%s</text>`,
		cc.MarginLeft-10, barY+barHeight/2+4, html.EscapeString(bar.Bucket.String()))

	currentWidth := cc.scale(bar.Current)
	fmt.Fprintf(svg, `<rect x="%d" y="%d" width="%d" height="%d" fill="#9E9E9E"/>`,
		cc.MarginLeft, barY, currentWidth, barHeight)
	if bar.Incoming > 0 {
		fmt.Fprintf(svg, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`,
			cc.MarginLeft+currentWidth, barY, cc.scale(bar.Incoming), barHeight, badgeColor(bar.Badge))
	}
	fmt.Fprintf(svg, `<rect x="%d" y="%d" width="%d" height="%d" class="max-outline"/>`,
		cc.MarginLeft, barY, cc.scale(bar.Max), barHeight)

	fmt.Fprintf(svg, `<text x="%d" y="%d" class="qty-label">%d+%d/%d %s</text>`,
		cc.MarginLeft+cc.scale(bar.Max)+6, barY+barHeight/2+4, bar.Current, bar.Incoming, bar.Max, bar.Badge)
	fmt.Fprintf(svg, `<title>%s: current %d, incoming %d, max %d</title>`,
		html.EscapeString(bar.Bucket.String()), bar.Current, bar.Incoming, bar.Max)
}

func (cc *CapacityChart) drawLegend(svg *strings.Builder) {
	legendX := cc.Width - cc.MarginRight - 260
	items := []struct {
		color string
		label string
	}{
		{"#9E9E9E", "Planned"},
		{badgeColor("open"), "Moved in"},
		{badgeColor("tight"), "Moved in (tight)"},
		{badgeColor("full"), "Moved in (full)"},
	}
	for i, item := range items {
		x := legendX + i*70
		fmt.Fprintf(svg, `<rect x="%d" y="42" width="12" height="8" fill="%s"/>`, x, item.color)
		fmt.Fprintf(svg, `<text x="%d" y="50" class="qty-label">%s</text>`, x+16, item.label)
	}
}

func badgeAfter(bar CapacityBar) string {
	load := bar.Current + bar.Incoming
	return adjustment.Badge(entities.CapacityLedgerEntry{
		Bucket:    bar.Bucket,
		Max:       bar.Max,
		Current:   load,
		Remaining: bar.Max - load,
	})
}

func badgeColor(badge string) string {
	switch badge {
	case "full":
		return "#F44336"
	case "tight":
		return "#FF9800"
	default:
		return "#4CAF50"
	}
}

func (cc *CapacityChart) generateEmptyChart() string {
	return fmt.Sprintf(`<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">
		<rect width="%d" height="%d" fill="white"/>
		<text x="%d" y="%d" class="title" text-anchor="middle">No Capacity Buckets Found</text>
		<style>
			.title { font-family: Arial, sans-serif; font-size: 16px; fill: #666; }
		</style>
	</svg>`, cc.Width, cc.Height, cc.Width, cc.Height, cc.Width/2, cc.Height/2)
}

// generateSVGOutput writes the capacity chart to the output directory or stdout
func generateSVGOutput(result *dto.AdjustmentResult, config Config) error {
	svg := NewCapacityChart(result).GenerateSVG(result)
	if config.OutputDir == "" {
		_, err := fmt.Fprintln(config.writer(), svg)
		return err
	}
	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := filepath.Join(config.OutputDir, "capacity_chart.svg")
	if err := os.WriteFile(filename, []byte(svg), 0644); err != nil {
		return fmt.Errorf("failed to write SVG file: %w", err)
	}
	if config.Verbose {
		fmt.Fprintf(config.writer(), "💾 Capacity chart saved to: %s\n", filename)
	}
	return nil
}
