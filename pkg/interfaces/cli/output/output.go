package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/vsinha/rebalance/pkg/application/dto"
	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	// Writer receives stdout output; nil means os.Stdout
	Writer io.Writer
}

func (c Config) writer() io.Writer {
	if c.Writer == nil {
		return os.Stdout
	}
	return c.Writer
}

// Generate renders the result in the configured format
func Generate(result *dto.AdjustmentResult, config Config) error {
	if result == nil {
		return fmt.Errorf("no result to render")
	}
	switch config.Format {
	case "", "text":
		return generateTextOutput(result, config)
	case "json":
		return generateJSONOutput(result, config)
	case "csv":
		return generateCSVOutput(result, config)
	case "svg":
		return generateSVGOutput(result, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// SeverityMarker is the glyph shown next to a validation entry
func SeverityMarker(s entities.Severity) string {
	switch s {
	case entities.SeverityAdjusted:
		return "✅"
	case entities.SeverityHard:
		return "❌"
	case entities.SeverityWarning:
		return "⚠️"
	default:
		return "?"
	}
}

// generateTextOutput creates the human-readable report
func generateTextOutput(result *dto.AdjustmentResult, config Config) error {
	w := config.writer()
	m := result.Metrics

	fmt.Fprintf(w, "📊 Adjustment Report %s\n", result.Target)
	fmt.Fprintf(w, "==============================\n\n")
	fmt.Fprintf(w, "Run: %s\n", result.RunID)
	fmt.Fprintf(w, "Status: %s\n", result.Status)
	if result.StatusReason != "" {
		fmt.Fprintf(w, "Reason: %s\n", result.StatusReason)
	}
	fmt.Fprintf(w, "Current Total: %d\n", m.CurrentTotal)
	if m.SampleQty > 0 {
		fmt.Fprintf(w, "Sample Qty: %d\n", m.SampleQty)
	}
	fmt.Fprintf(w, "Target Qty: %d\n", m.TargetQty)
	fmt.Fprintf(w, "Need Qty: %d\n", m.NeedQty)
	fmt.Fprintf(w, "Achieved Qty: %d (%s%%)\n", m.AchievedQty, m.AchievementRate.Shift(2).StringFixed(1))
	if result.Strategy != "" {
		fmt.Fprintf(w, "Strategy: %s\n", result.Strategy)
	}
	if result.FallbackReason != "" {
		fmt.Fprintf(w, "Fallback Reason: %s\n", result.FallbackReason)
	}
	fmt.Fprintln(w)

	if config.Verbose && result.Stock != nil {
		fmt.Fprintf(w, "📦 Target Bucket Stock:\n")
		fmt.Fprintf(w, "%-20s %-10s %-10s %-8s\n", "Item", "Committed", "Demand", "Lot")
		fmt.Fprintf(w, "%-20s %-10s %-10s %-8s\n", "--------------------", "----------", "----------", "--------")
		for _, item := range result.Stock.Items {
			fmt.Fprintf(w, "%-20s %-10d %-10d %-8d\n", item.Item, item.CommittedQty, item.DemandQty, item.LotSize)
		}
		fmt.Fprintln(w)

		fmt.Fprintf(w, "📈 Slack Profiles:\n")
		fmt.Fprintf(w, "%-20s %-10s %-10s %-10s %-10s %-8s\n",
			"Item", "CumDemand", "CumCommit", "Future", "Movable", "Buffer")
		fmt.Fprintf(w, "%-20s %-10s %-10s %-10s %-10s %-8s\n",
			"--------------------", "----------", "----------", "----------", "----------", "--------")
		for _, p := range result.Profiles {
			buffer := "-"
			if p.HasKnownDueDate() {
				buffer = strconv.Itoa(p.BufferDays)
			}
			fmt.Fprintf(w, "%-20s %-10d %-10d %-10d %-10d %-8s\n",
				p.Item, p.CumulativeDemand, p.CumulativeCommitment, p.FutureSlack, p.MaxMovable, buffer)
		}
		fmt.Fprintln(w)
	}

	if len(result.MovableItems) > 0 {
		fmt.Fprintf(w, "🔀 Movable Items:\n")
		for _, item := range result.MovableItems {
			fmt.Fprintf(w, "  %s [%s] max %d: %s; %s\n",
				item.Item, item.Class, item.MaxMovable, item.Constraint, item.Priority)
		}
		fmt.Fprintln(w)
	}

	if len(result.Ledger) > 0 {
		fmt.Fprintf(w, "🏭 Capacity Ledger:\n")
		fmt.Fprintf(w, "%-18s %-8s %-8s %-10s %-8s %-6s\n", "Bucket", "Max", "Current", "Remaining", "Usage", "Badge")
		fmt.Fprintf(w, "%-18s %-8s %-8s %-10s %-8s %-6s\n",
			"------------------", "--------", "--------", "----------", "--------", "------")
		for _, entry := range result.Ledger {
			fmt.Fprintf(w, "%-18s %-8d %-8d %-10d %-8s %-6s\n",
				entry.Bucket, entry.Max, entry.Current, entry.Remaining,
				entry.UsageRate.Shift(2).StringFixed(1)+"%", entry.Badge)
		}
		fmt.Fprintln(w)
	}

	if len(result.Outcome.Accepted) > 0 {
		fmt.Fprintf(w, "📋 Accepted Moves:\n")
		fmt.Fprintf(w, "%-20s %-8s %-18s %-18s %-s\n", "Item", "Qty", "From", "To", "Reason")
		fmt.Fprintf(w, "%-20s %-8s %-18s %-18s %-s\n",
			"--------------------", "--------", "------------------", "------------------", "------")
		for _, mv := range result.Outcome.Accepted {
			qty := strconv.FormatInt(int64(mv.Qty), 10)
			if mv.Adjusted {
				qty = fmt.Sprintf("%d*", mv.Qty)
			}
			fmt.Fprintf(w, "%-20s %-8s %-18s %-18s %s\n", mv.Item, qty, mv.From, mv.To, mv.Reason)
		}
		fmt.Fprintln(w)
	}

	if len(result.Outcome.Violations) > 0 {
		fmt.Fprintf(w, "🧾 Validation Log:\n")
		for _, v := range result.Outcome.Violations {
			fmt.Fprintf(w, "  %s #%d %s: %s\n", SeverityMarker(v.Severity), v.Index, v.Item, v.Message)
		}
		fmt.Fprintln(w)
	}

	if config.OutputDir != "" {
		if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		return writeJSONFile(result, config, "adjustment_result.json")
	}
	return nil
}

// generateJSONOutput creates JSON output
func generateJSONOutput(result *dto.AdjustmentResult, config Config) error {
	if config.OutputDir != "" {
		if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		return writeJSONFile(result, config, "adjustment_result.json")
	}

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(config.writer(), string(jsonData))
	return err
}

func writeJSONFile(result *dto.AdjustmentResult, config Config, name string) error {
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	filename := filepath.Join(config.OutputDir, name)
	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	if config.Verbose {
		fmt.Fprintf(config.writer(), "💾 JSON results saved to: %s\n", filename)
	}
	return nil
}

// generateCSVOutput writes accepted moves and the validation log as CSV files
func generateCSVOutput(result *dto.AdjustmentResult, config Config) error {
	if config.OutputDir == "" {
		return fmt.Errorf("output directory required for CSV format")
	}
	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	movesFile := filepath.Join(config.OutputDir, "accepted_moves.csv")
	if err := writeMovesCSV(result.Outcome.Accepted, movesFile); err != nil {
		return fmt.Errorf("failed to write accepted moves CSV: %w", err)
	}

	logFile := filepath.Join(config.OutputDir, "validation_log.csv")
	if err := writeViolationsCSV(result.Outcome.Violations, logFile); err != nil {
		return fmt.Errorf("failed to write validation log CSV: %w", err)
	}

	if config.Verbose {
		fmt.Fprintf(config.writer(), "💾 CSV results saved to:\n")
		fmt.Fprintf(config.writer(), "  Accepted Moves: %s\n", movesFile)
		fmt.Fprintf(config.writer(), "  Validation Log: %s\n", logFile)
	}
	return nil
}

// MoveRecords converts accepted moves into CSV records, header first
func MoveRecords(moves []entities.Move) [][]string {
	records := [][]string{{"item", "qty", "from", "to", "reason", "adjusted", "original_qty"}}
	for _, mv := range moves {
		original := ""
		if mv.Adjusted {
			original = strconv.FormatInt(int64(mv.OriginalQty), 10)
		}
		records = append(records, []string{
			string(mv.Item),
			strconv.FormatInt(int64(mv.Qty), 10),
			mv.From.String(),
			mv.To.String(),
			mv.Reason,
			strconv.FormatBool(mv.Adjusted),
			original,
		})
	}
	return records
}

// ViolationRecords converts validation entries into CSV records, header first
func ViolationRecords(violations []entities.Violation) [][]string {
	records := [][]string{{"index", "item", "severity", "message"}}
	for _, v := range violations {
		records = append(records, []string{
			strconv.Itoa(v.Index),
			string(v.Item),
			v.Severity.String(),
			v.Message,
		})
	}
	return records
}

func writeMovesCSV(moves []entities.Move, filename string) error {
	return writeCSV(filename, MoveRecords(moves))
}

func writeViolationsCSV(violations []entities.Violation, filename string) error {
	return writeCSV(filename, ViolationRecords(violations))
}

func writeCSV(filename string, records [][]string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(records); err != nil {
		return err
	}
	return file.Close()
}
