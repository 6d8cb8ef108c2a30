package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// ═══════════════════════════════════════════════════════════
// 터미널 출력 포맷
// 모든 커맨드가 동일한 헤더/표/상태 표시를 사용
// ═══════════════════════════════════════════════════════════

const ruleWidth = 59

// RunMetadata is the header block printed before a committee run
type RunMetadata struct {
	Title      string
	MarketDate string
	RunID      string // Optional
	Mode       string // Optional, e.g. "no-llm, no-persist"
}

// PrintRunHeader prints the title between rules followed by the run fields
func PrintRunHeader(meta RunMetadata) {
	fmt.Println()
	printRule("═")
	fmt.Printf("  %s\n", meta.Title)
	printRule("─")

	date := meta.MarketDate
	if date == "" {
		date = "today"
	}
	PrintKeyValue("Market date", date, 11)
	if meta.RunID != "" {
		PrintKeyValue("Run ID", meta.RunID, 11)
	}
	if meta.Mode != "" {
		PrintKeyValue("Mode", meta.Mode, 11)
	}
	printRule("─")
}

func printRule(ch string) {
	fmt.Println(strings.Repeat(ch, ruleWidth))
}

// PrintCompletion prints the elapsed time of a finished command
func PrintCompletion(what string, seconds float64) {
	fmt.Printf("\n✅ %s completed in %.2fs\n", what, seconds)
}

func PrintWarning(message string) { fmt.Printf("\n⚠️  %s\n\n", message) }
func PrintSuccess(message string) { fmt.Printf("✅ %s\n", message) }
func PrintError(message string)   { fmt.Printf("❌ %s\n", message) }
func PrintInfo(message string)    { fmt.Printf("ℹ️  %s\n", message) }

// PrintTableHeader prints column titles and a rule spanning the table
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	total := 2 * (len(widths) - 1)
	for _, w := range widths {
		total += w
	}
	fmt.Println(strings.Repeat("─", total))
}

// PrintTableRow prints one row; cells wider than their column are cut with "…"
func PrintTableRow(values []string, widths []int) {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = fitCell(v, widths[i])
	}
	fmt.Println(strings.TrimRight(strings.Join(cells, "  "), " "))
}

func fitCell(v string, width int) string {
	n := utf8.RuneCountInString(v)
	if n > width && width > 1 {
		v = string([]rune(v)[:width-1]) + "…"
		n = width
	}
	return v + strings.Repeat(" ", max(width-n, 0))
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}

// PrintKeyValue prints "key : value" with the key padded to keyWidth
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintJSON writes v as indented JSON to stdout (Korean text unescaped)
func PrintJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// FormatFloat renders an optional value, n/a when missing
func FormatFloat(v *float64, digits int) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", digits, *v)
}
