package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"cursortop/internal/model"
)

const (
	compactThreshold = 100 // Terminal width below which compact mode kicks in
	defaultWidth     = 120
)

// TableOptions controls table display behavior
type TableOptions struct {
	ForceCompact bool
}

// shouldUseCompact determines if compact mode should be used
func shouldUseCompact(opts TableOptions) bool {
	if opts.ForceCompact {
		return true
	}
	return getTerminalWidth() < compactThreshold
}

// FormatNumber formats a number with thousand separators
func FormatNumber(n int64) string {
	if n == 0 {
		return "0"
	}

	str := fmt.Sprintf("%d", n)
	negative := n < 0
	if negative {
		str = str[1:]
	}

	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}

	if negative {
		return "-" + result
	}
	return result
}

// FormatCost formats a cost value as currency
func FormatCost(cost float64) string {
	return fmt.Sprintf("$%.2f", cost)
}

// PrintJSON writes the snapshot as indented JSON to stdout.
func PrintJSON(data *model.UsageDisplayData) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}

// PrintSummary renders the usage snapshot as a table: per-model line items
// for the billing period followed by the trailing-window summaries. Compact
// mode drops the token column.
func PrintSummary(data *model.UsageDisplayData, opts TableOptions) {
	compact := shouldUseCompact(opts)

	fmt.Printf("Billing period since %s\n\n", data.BillingPeriodStart)

	if compact {
		printRow("Model", "Reqs", "Cost", "")
	} else {
		printRow("Model", "Requests", "Cost", "Tokens")
	}
	printSeparator(compact)

	for _, item := range data.LineItems {
		tokens := ""
		if !compact {
			tokens = FormatNumber(item.TotalTokens)
		}
		printRow(item.ModelName,
			FormatNumber(int64(item.RequestCount)),
			FormatCost(item.CostDollars),
			tokens)
	}

	printSeparator(compact)
	totalTokens := ""
	if !compact {
		totalTokens = FormatNumber(data.TotalTokens)
	}
	printRow("Total",
		FormatNumber(int64(data.TotalRequests)),
		FormatCost(data.TotalSpendDollars),
		totalTokens)

	fmt.Println()
	for _, p := range []model.PeriodSummary{data.Today, data.Last7Days, data.Last30Days} {
		tokens := ""
		if !compact {
			tokens = FormatNumber(p.Tokens)
		}
		printRow(p.Label,
			FormatNumber(int64(p.Requests)),
			FormatCost(p.SpendDollars),
			tokens)
	}
}

func printRow(name, requests, cost, tokens string) {
	if tokens == "" {
		fmt.Printf("%-32s %10s %12s\n", name, requests, cost)
		return
	}
	fmt.Printf("%-32s %10s %12s %14s\n", name, requests, cost, tokens)
}

func printSeparator(compact bool) {
	width := 32 + 1 + 10 + 1 + 12
	if !compact {
		width += 1 + 14
	}
	fmt.Println(strings.Repeat("-", width))
}
