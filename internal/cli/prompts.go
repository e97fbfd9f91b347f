package cli

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/shopspring/decimal"

	"github.com/dyike/QuantDesk/config"
	"github.com/dyike/QuantDesk/internal/demo"
	"github.com/dyike/QuantDesk/models"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-^=]+$`)

func validateTicker(val interface{}) error {
	str := strings.TrimSpace(strings.ToUpper(val.(string)))
	if len(str) == 0 {
		return fmt.Errorf("ticker symbol cannot be empty")
	}
	if len(str) > 12 {
		return fmt.Errorf("ticker symbol too long (max 12 characters)")
	}
	if !tickerPattern.MatchString(str) {
		return fmt.Errorf("invalid ticker format (use letters, numbers, dots, and hyphens only)")
	}
	return nil
}

func validateDate(val interface{}) error {
	str := strings.TrimSpace(val.(string))
	if _, err := time.Parse("2006-01-02", str); err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}

func validateDecimal(val interface{}) error {
	d, err := decimal.NewFromString(strings.TrimSpace(val.(string)))
	if err != nil {
		return fmt.Errorf("enter a number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

const customRange = "Custom date range"

var periodOptions = []string{"1mo", "3mo", "6mo", "1y", "2y", "5y", customRange}

// promptForBacktestConfig asks for everything a stream run needs.
func promptForBacktestConfig(cfg config.Config) (models.BacktestConfig, error) {
	var out models.BacktestConfig

	var ticker string
	if err := survey.AskOne(&survey.Input{
		Message: "Enter the ticker symbol (e.g., AAPL, MSFT, BTC-USD):",
		Help:    "Symbol as listed by `quantdesk symbols`",
	}, &ticker, survey.WithValidator(validateTicker)); err != nil {
		return out, err
	}
	out.Symbol = strings.TrimSpace(strings.ToUpper(ticker))

	var period string
	if err := survey.AskOne(&survey.Select{
		Message: "Select the backtest period:",
		Options: periodOptions,
		Default: "1y",
	}, &period); err != nil {
		return out, err
	}
	if period == customRange {
		qs := []*survey.Question{
			{
				Name: "start",
				Prompt: &survey.Input{
					Message: "Start date (YYYY-MM-DD):",
					Default: time.Now().AddDate(-1, 0, 0).Format("2006-01-02"),
				},
				Validate: validateDate,
			},
			{
				Name: "end",
				Prompt: &survey.Input{
					Message: "End date (YYYY-MM-DD):",
					Default: time.Now().Format("2006-01-02"),
				},
				Validate: validateDate,
			},
		}
		answers := struct {
			Start string
			End   string
		}{}
		if err := survey.Ask(qs, &answers); err != nil {
			return out, err
		}
		out.StartDate, out.EndDate = answers.Start, answers.End
	} else {
		out.Period = period
	}

	money := []struct {
		msg string
		def float64
		dst *decimal.Decimal
	}{
		{"Initial balance:", cfg.DefaultBalance, &out.InitialBalance},
		{"Commission rate:", cfg.DefaultCommission, &out.Commission},
		{"Slippage rate:", cfg.DefaultSlippage, &out.Slippage},
	}
	for _, m := range money {
		var raw string
		if err := survey.AskOne(&survey.Input{
			Message: m.msg,
			Default: decimal.NewFromFloat(m.def).String(),
		}, &raw, survey.WithValidator(validateDecimal)); err != nil {
			return out, err
		}
		*m.dst = decimal.RequireFromString(strings.TrimSpace(raw))
	}

	var indicators []string
	if err := survey.AskOne(&survey.MultiSelect{
		Message: "Indicators to compute:",
		Options: []string{"sma", "ema", "rsi", "macd", "bollinger", "atr", "vwap"},
		Help:    "Use space to select, enter to confirm. None is fine.",
	}, &indicators); err != nil {
		return out, err
	}
	out.Indicators = indicators

	ok, err := promptForConfirmation(backtestSummary(out), "Start streaming this backtest?")
	if err != nil {
		return out, err
	}
	if !ok {
		return out, fmt.Errorf("cancelled")
	}
	return out, nil
}

func backtestSummary(c models.BacktestConfig) string {
	window := c.Period
	if window == "" {
		window = c.StartDate + " → " + c.EndDate
	}
	indicators := "none"
	if len(c.Indicators) > 0 {
		indicators = strings.Join(c.Indicators, ", ")
	}
	return fmt.Sprintf(`
Backtest Configuration Summary:
────────────────────────────────────────
📊 Symbol:        %s
📅 Window:        %s
💰 Balance:       %s
💸 Commission:    %s
↔️  Slippage:      %s
📈 Indicators:    %s
────────────────────────────────────────`,
		c.Symbol, window, c.InitialBalance.String(), c.Commission.String(), c.Slippage.String(), indicators)
}

// promptForConfirmation prints summary and asks a yes/no question.
func promptForConfirmation(summary, question string) (bool, error) {
	if summary != "" {
		fmt.Println(summary)
	}
	var confirmed bool
	err := survey.AskOne(&survey.Confirm{
		Message: question,
		Default: true,
	}, &confirmed)
	return confirmed, err
}

// promptForCredentials skips the username question when username is set.
func promptForCredentials(register bool, username string) (models.Credentials, error) {
	var qs []*survey.Question
	if username == "" {
		qs = append(qs, &survey.Question{
			Name:     "username",
			Prompt:   &survey.Input{Message: "Username:"},
			Validate: survey.Required,
		})
	}
	if register {
		qs = append(qs, &survey.Question{
			Name:   "email",
			Prompt: &survey.Input{Message: "Email:"},
		})
	}
	qs = append(qs, &survey.Question{
		Name:     "password",
		Prompt:   &survey.Password{Message: "Password:"},
		Validate: survey.Required,
	})

	creds := models.Credentials{Username: username}
	err := survey.Ask(qs, &creds)
	creds.Username = strings.TrimSpace(creds.Username)
	return creds, err
}

// promptForStrategyInput asks for the fields of a strategy, prefilled from current.
func promptForStrategyInput(current *models.Strategy) (models.StrategyInput, error) {
	var in models.StrategyInput
	if current != nil {
		in = models.StrategyInput{
			Name:        current.Name,
			Description: current.Description,
			Indicators:  current.Indicators,
			Timeframe:   current.Timeframe,
		}
	}

	qs := []*survey.Question{
		{
			Name:     "name",
			Prompt:   &survey.Input{Message: "Strategy name:", Default: in.Name},
			Validate: survey.Required,
		},
		{
			Name: "description",
			Prompt: &survey.Multiline{
				Message: "Describe the strategy in plain language:",
				Default: in.Description,
				Help:    "e.g. Buy when the 20-day SMA crosses above the 50-day SMA, sell on the reverse cross",
			},
			Validate: survey.Required,
		},
		{
			Name: "timeframe",
			Prompt: &survey.Select{
				Message: "Timeframe:",
				Options: []string{"1d", "1h", "15m", "5m", "1wk"},
				Default: orDefault(in.Timeframe, "1d"),
			},
		},
	}
	answers := struct {
		Name        string
		Description string
		Timeframe   string
	}{}
	if err := survey.Ask(qs, &answers); err != nil {
		return in, err
	}
	in.Name = strings.TrimSpace(answers.Name)
	in.Description = strings.TrimSpace(answers.Description)
	in.Timeframe = answers.Timeframe
	return in, nil
}

func promptForScenario() (demo.Scenario, error) {
	var choice string
	err := survey.AskOne(&survey.Select{
		Message: "Select a demo market:",
		Options: []string{
			string(demo.Trend) + " - steady uptrend",
			string(demo.Range) + " - sideways oscillation",
			string(demo.Volatile) + " - large random swings",
		},
	}, &choice)
	if err != nil {
		return "", err
	}
	return demo.ParseScenario(strings.Split(choice, " -")[0])
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func promptForStrategy(list []models.Strategy) (int64, error) {
	if len(list) == 0 {
		return 0, fmt.Errorf("no strategies yet, create one with `quantdesk strategy create`")
	}
	options := make([]string, len(list))
	for i, s := range list {
		options[i] = fmt.Sprintf("#%d %s", s.ID, s.Name)
	}
	var idx int
	if err := survey.AskOne(&survey.Select{
		Message: "Select a strategy:",
		Options: options,
	}, &idx); err != nil {
		return 0, err
	}
	return list[idx].ID, nil
}
