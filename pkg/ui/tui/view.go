package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the dashboard
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	width := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left, m.renderCrawlPanel(width), m.renderRecentPanel(width))
	right := lipgloss.JoinVertical(lipgloss.Left, m.renderDownloadsPanel(width), m.renderLogsPanel(width))

	sections := []string{
		m.renderHeader(),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to quit"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderHeader() string {
	status := m.spinner.View() + " crawling"
	if m.finished {
		status = successStyle.Render("✓ " + m.reason)
		if m.err != nil {
			status = errorStyle.Render("✗ " + m.err.Error())
		}
	}
	header := fmt.Sprintf("IGCRAWLER  @%s  %s mode  %s", m.opts.Handle, m.opts.Mode, status)
	return headerStyle.Width(m.width).Render(header)
}

func (m *Model) renderCrawlPanel(width int) string {
	title := titleStyle.Render(" CRAWL ")
	spent := m.budgetSpent()

	m.targetBar.Width = width - 8
	m.budgetBar.Width = width - 8

	rows := []string{
		stat("Session Time:", formatDuration(time.Since(m.startTime))),
		stat("Collected:", fmt.Sprintf("%d / %d", m.collected, m.opts.Target)),
		m.targetBar.ViewAs(m.targetProgress()),
		stat("Round:", fmt.Sprintf("%d", m.round)),
		stat("Next Wait:", formatDuration(m.interval)),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Waited:"),
			budgetStyle(spent).Render(fmt.Sprintf("%s of %s", formatDuration(m.elapsed), formatDuration(m.opts.Budget)))),
		m.budgetBar.ViewAs(spent),
	}
	if m.profile.Name != "" {
		rows = append([]string{stat("Profile:", truncate(m.profile.Name, width-20))}, rows...)
	}
	if m.idleRounds > 0 && !m.finished {
		rows = append(rows, warningStyle.Render(fmt.Sprintf("%d rounds without new items", m.idleRounds)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, rows...)),
	)
}

func (m *Model) renderRecentPanel(width int) string {
	title := titleStyle.Render(" LATEST ITEMS ")

	var rows []string
	for i := len(m.recent) - 1; i >= 0; i-- {
		rows = append(rows, keyStyle.Render(truncate("• "+m.recent[i], width-8)))
	}
	content := strings.Join(rows, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("Nothing collected yet")
	}

	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m *Model) renderDownloadsPanel(width int) string {
	title := titleStyle.Render(" MEDIA ")
	rows := []string{
		stat("Downloaded:", fmt.Sprintf("%d", m.downloaded)),
		stat("Already Present:", fmt.Sprintf("%d", m.skipped)),
	}
	if m.failed > 0 {
		rows = append(rows, errorStyle.Render(fmt.Sprintf("%d failed", m.failed)))
	}
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, rows...)),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOGS ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(truncate(log.Message, width-25))))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	logsHeight := m.height - 30
	if logsHeight < 5 {
		logsHeight = 5
	}
	return panelStyle.Width(width).Height(logsHeight).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Stop the crawl and quit
    ctrl+l   - Clear logs
    ?        - Toggle this help

  Waited shows the time spent backing off on rounds that found nothing.
  The crawl gives up once it reaches the budget.
`
	return panelStyle.Width(m.width).Render(help)
}

func stat(label, value string) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(value))
}

func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
