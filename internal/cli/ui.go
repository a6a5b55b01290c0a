package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Background(lipgloss.Color("#1F2937")).
		Padding(0, 1).
		MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#3B82F6")).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(1, 2).
		Width(80)

	inProgressStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B")).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)
)

// DisplayWelcomeBanner shows the welcome banner
func DisplayWelcomeBanner() {
	banner := `
████████╗██████╗  █████╗ ██████╗ ███████╗ ██████╗██╗   ██╗ ██████╗██╗     ███████╗
╚══██╔══╝██╔══██╗██╔══██╗██╔══██╗██╔════╝██╔════╝╚██╗ ██╔╝██╔════╝██║     ██╔════╝
   ██║   ██████╔╝███████║██║  ██║█████╗  ██║      ╚████╔╝ ██║     ██║     █████╗
   ██║   ██╔══██╗██╔══██║██║  ██║██╔══╝  ██║       ╚██╔╝  ██║     ██║     ██╔══╝
   ██║   ██║  ██║██║  ██║██████╔╝███████╗╚██████╗   ██║   ╚██████╗███████╗███████╗
   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝ ╚══════╝ ╚═════╝   ╚═╝    ╚═════╝╚══════╝╚══════╝

              🚀 Session-Gated Autonomous Trading Pipeline 🚀
`

	welcomeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true).
		Align(lipgloss.Center).
		Width(84).
		MarginBottom(2)

	taglineStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#3B82F6")).
		Italic(true).
		Align(lipgloss.Center).
		Width(84).
		MarginBottom(2)

	fmt.Print(welcomeStyle.Render(banner))
	fmt.Print(taglineStyle.Render("Analyst reports to T+1 orders through tiered memory, debate and risk review"))
	fmt.Println()
}

// ClearScreen clears the terminal screen
func ClearScreen() {
	fmt.Print("\033[2J\033[H")
}

// DisplayRunHeader shows the header for a single trading day run
func DisplayRunHeader(symbols []string, date time.Time) {
	universe := "auto (stock selector + held positions)"
	if len(symbols) > 0 {
		universe = strings.Join(symbols, ", ")
	}

	header := fmt.Sprintf("📊 Symbols: %s | 📅 Trade Date: %s",
		universe,
		date.Format("2006-01-02"),
	)

	fmt.Println(headerStyle.Render(header))
}

// DisplayRangeHeader shows the header for a backtest over a date range
func DisplayRangeHeader(first, last time.Time, symbols []string) {
	universe := "auto (stock selector + held positions)"
	if len(symbols) > 0 {
		universe = fmt.Sprintf("%d symbols", len(symbols))
	}

	header := fmt.Sprintf("📊 Backtest: %s → %s | %s",
		first.Format("2006-01-02"),
		last.Format("2006-01-02"),
		universe,
	)

	fmt.Println(headerStyle.Render(header))
}

// DisplayRunComplete shows the completion banner after a run finishes
func DisplayRunComplete(message string) {
	fmt.Println()
	fmt.Println(titleStyle.Render("🎉 " + message + " 🎉"))
}

// DisplayError shows an error message
func DisplayError(err error) {
	errorMsg := fmt.Sprintf("❌ Error: %s", err.Error())
	fmt.Println(errorStyle.Render(errorMsg))
}

// DisplayInfo shows an info message
func DisplayInfo(message string) {
	infoMsg := fmt.Sprintf("ℹ️  %s", message)
	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")).Render(infoMsg))
}

// DisplaySuccess shows a success message
func DisplaySuccess(message string) {
	successMsg := fmt.Sprintf("✅ %s", message)
	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Render(successMsg))
}

// DisplayWarning shows a warning message
func DisplayWarning(message string) {
	warnMsg := fmt.Sprintf("⚠️  %s", message)
	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Render(warnMsg))
}

// DisplayInitializing shows an initializing message
func DisplayInitializing() {
	fmt.Println(inProgressStyle.Render("🚀 Initializing trading pipeline..."))
}

// Helper functions

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// maybeClearScreen clears the terminal unless suppressed. Setting
// TRADECYCLE_NO_CLEAR keeps scrollback intact when piping output.
func maybeClearScreen() {
	if os.Getenv("TRADECYCLE_NO_CLEAR") == "" {
		ClearScreen()
	}
}
