package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/QuantDesk/internal/api"
	"github.com/dyike/QuantDesk/internal/stream"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Background(lipgloss.Color("#1F2937")).
		Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#3B82F6")).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#10B981")).
		Padding(0, 2)

	warnPanelStyle = panelStyle.
		BorderForeground(lipgloss.Color("#F59E0B"))

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	inProgressStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B")).
		Bold(true)

	completedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	infoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#3B82F6"))
)

// Toast turns any error into the single line shown to the user.
func Toast(err error) string {
	if err == nil {
		return ""
	}
	return errorStyle.Render("❌ " + ToastText(err))
}

// ToastText is Toast without styling.
func ToastText(err error) string {
	var apiErr *api.Error
	switch {
	case errors.Is(err, api.ErrServerUnreachable):
		return firstLine(err.Error())
	case errors.Is(err, api.ErrUnauthorized):
		return "Not logged in. Run `quantdesk auth login` first."
	case errors.Is(err, stream.ErrInvalidConfig):
		return firstLine(err.Error())
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out."
	case errors.As(err, &apiErr):
		if apiErr.Status == 401 {
			return "Session expired. Run `quantdesk auth login` again."
		}
		return fmt.Sprintf("Error %d: %s", apiErr.Status, firstLine(apiErr.Message))
	default:
		return "Error: " + firstLine(err.Error())
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func Error(w io.Writer, err error) {
	fmt.Fprintln(w, Toast(err))
}

func Info(w io.Writer, message string) {
	fmt.Fprintln(w, infoStyle.Render("ℹ️  "+message))
}

func Success(w io.Writer, message string) {
	fmt.Fprintln(w, completedStyle.Render("✅ "+message))
}

func Warning(w io.Writer, message string) {
	fmt.Fprintln(w, inProgressStyle.Render("⚠️  "+message))
}

// ClearScreen moves the cursor home and clears the terminal.
func ClearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[2J\033[H")
}

func Title(s string) string {
	return titleStyle.Render(s)
}

func Header(s string) string {
	return headerStyle.Render(s)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// wrap word-wraps text to width with every line prefixed by indent.
func wrap(text, indent string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var sb strings.Builder
	line := indent + words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			sb.WriteString(line + "\n")
			line = indent + w
		} else {
			line += " " + w
		}
	}
	sb.WriteString(line)
	return sb.String()
}
