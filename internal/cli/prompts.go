package cli

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/tradecycle/config"
	"github.com/dyike/tradecycle/consts"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// validateSymbolToken checks a single ticker symbol after normalization.
func validateSymbolToken(symbol string) error {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))
	if len(symbol) == 0 {
		return fmt.Errorf("ticker symbol cannot be empty")
	}
	if len(symbol) > 10 {
		return fmt.Errorf("ticker symbol too long (max 10 characters): %s", symbol)
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid ticker format: %s (use letters, numbers, dots, and hyphens only)", symbol)
	}
	return nil
}

// parseSymbolList splits a comma or space separated list into
// normalized ticker symbols, dropping empty entries.
func parseSymbolList(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	var symbols []string
	for _, f := range fields {
		if s := strings.ToUpper(strings.TrimSpace(f)); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// validateSymbolsInput is a survey validator for a symbol list answer.
func validateSymbolsInput(val interface{}) error {
	str, ok := val.(string)
	if !ok {
		return fmt.Errorf("invalid input type")
	}

	symbols := parseSymbolList(str)
	if len(symbols) == 0 {
		return fmt.Errorf("enter at least one ticker symbol")
	}
	for _, s := range symbols {
		if err := validateSymbolToken(s); err != nil {
			return err
		}
	}
	return nil
}

// validateTradeDateInput is a survey validator for the trade date
// answer. An empty answer means today.
func validateTradeDateInput(val interface{}) error {
	str, ok := val.(string)
	if !ok {
		return fmt.Errorf("invalid input type")
	}
	str = strings.TrimSpace(str)
	if str == "" {
		return nil
	}

	parsed, err := time.Parse("2006-01-02", str)
	if err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}

	tomorrow := time.Now().AddDate(0, 0, 1)
	if parsed.After(tomorrow) {
		return fmt.Errorf("trade date cannot be more than 1 day in the future")
	}

	fiveYearsAgo := time.Now().AddDate(-5, 0, 0)
	if parsed.Before(fiveYearsAgo) {
		return fmt.Errorf("trade date cannot be more than 5 years in the past")
	}

	return nil
}

// PromptForSymbols prompts the user for one or more ticker symbols.
// An empty answer is not accepted; use PromptForUniverseChoice when
// automatic selection should be offered.
func PromptForSymbols() ([]string, error) {
	var input string
	prompt := &survey.Input{
		Message: "Enter ticker symbols, comma separated (e.g., AAPL, MSFT, NVDA):",
		Help:    "These symbols are traded for the chosen day. Each runs the full pipeline.",
	}

	err := survey.AskOne(prompt, &input, survey.WithValidator(validateSymbolsInput))
	if err != nil {
		return nil, err
	}

	return parseSymbolList(input), nil
}

// PromptForUniverseChoice asks whether to trade an explicit symbol
// list or let the stock selector pick the day's universe.
func PromptForUniverseChoice() (bool, error) {
	var choice string
	prompt := &survey.Select{
		Message: "Which symbols should be traded?",
		Options: []string{
			"Pick for me (stock selector ranks the configured pool)",
			"Let me enter symbols",
		},
		Default: "Pick for me (stock selector ranks the configured pool)",
	}

	err := survey.AskOne(prompt, &choice)
	if err != nil {
		return false, err
	}

	return strings.HasPrefix(choice, "Pick for me"), nil
}

// PromptForTradeDate prompts the user for the trade date.
func PromptForTradeDate() (time.Time, error) {
	var dateStr string
	prompt := &survey.Input{
		Message: "Enter the trade date (YYYY-MM-DD) or press Enter for today:",
		Help:    "Format: YYYY-MM-DD (e.g., 2025-01-09). Leave empty for today's date.",
		Default: time.Now().Format("2006-01-02"),
	}

	err := survey.AskOne(prompt, &dateStr, survey.WithValidator(validateTradeDateInput))
	if err != nil {
		return time.Time{}, err
	}

	if strings.TrimSpace(dateStr) == "" {
		return time.Now(), nil
	}

	return time.Parse("2006-01-02", strings.TrimSpace(dateStr))
}

// PromptForSessionChoice prompts for which session to run. The empty
// string means the full trading day.
func PromptForSessionChoice() (string, error) {
	var selected string

	options := []string{
		"Full day (pre_open, market_open and post_close in order)",
		"pre_open (ingest reports, consolidate memory)",
		"market_open (fuse context, debate, select strategy, route order)",
		"post_close (fill pending orders, value the book, reflect)",
	}

	prompt := &survey.Select{
		Message: "Select which session to run:",
		Options: options,
		Help:    "A full day runs every session gate in order. Single sessions are useful for replaying one stage.",
		Default: options[0],
	}

	err := survey.AskOne(prompt, &selected)
	if err != nil {
		return "", err
	}

	switch {
	case strings.HasPrefix(selected, consts.SessionPreOpen):
		return consts.SessionPreOpen, nil
	case strings.HasPrefix(selected, consts.SessionMarketOpen):
		return consts.SessionMarketOpen, nil
	case strings.HasPrefix(selected, consts.SessionPostClose):
		return consts.SessionPostClose, nil
	default:
		return "", nil
	}
}

// PromptForRunConfirmation shows a summary of the pending run and asks
// the user to confirm it.
func PromptForRunConfirmation(symbols []string, date time.Time, sessionName string, cfg *config.Config) (bool, error) {
	universe := "auto (stock selector + held positions)"
	if len(symbols) > 0 {
		universe = strings.Join(symbols, ", ")
	}

	sessions := "full day"
	if sessionName != "" {
		sessions = sessionName
	}

	summary := fmt.Sprintf(`
Trading Run Summary:
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

📊 Symbols:           %s
📅 Trade Date:        %s
🕐 Sessions:          %s
🤖 LLM Provider:      %s
🧠 Deep Model:        %s
⚡ Quick Model:       %s
⚖️  Debate Rounds:     %d research / %d risk
💼 Position Cap:      %.0f%% of equity per symbol

━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`,
		universe,
		date.Format("2006-01-02"),
		sessions,
		cfg.LLMProvider,
		cfg.DeepThinkLLM,
		cfg.QuickThinkLLM,
		cfg.MaxDebateRounds,
		cfg.MaxRiskDiscussRounds,
		cfg.MaxPositionFraction*100,
	)

	fmt.Println(summary)

	var confirmed bool
	prompt := &survey.Confirm{
		Message: "Proceed with this trading run?",
		Default: true,
	}

	err := survey.AskOne(prompt, &confirmed)
	return confirmed, err
}

// PromptForRestartOrExit prompts the user when a run completes.
func PromptForRestartOrExit() (bool, error) {
	var choice string
	prompt := &survey.Select{
		Message: "Run completed! What would you like to do next?",
		Options: []string{
			"Start another run",
			"Exit tradecycle",
		},
		Default: "Exit tradecycle",
	}

	err := survey.AskOne(prompt, &choice)
	if err != nil {
		return false, err
	}

	return choice == "Start another run", nil
}
