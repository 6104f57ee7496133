package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"igcrawler/pkg/crawler"
	"igcrawler/pkg/feed"
)

// RoundMsg carries one finished crawl round
type RoundMsg struct {
	Report crawler.RoundReport
}

// ProfileMsg carries the profile header read before the first round
type ProfileMsg struct {
	Profile feed.Profile
	Target  int
}

// DownloadMsg carries the outcome of one media download
type DownloadMsg struct {
	MediaID string
	Skipped bool
	Err     error
}

// FinishedMsg is sent once the crawl has stopped
type FinishedMsg struct {
	Collected int
	Reason    string
	Err       error
}

// LogMsg adds a log line
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg refreshes the clock
type TickMsg time.Time

// Init starts the spinner and the clock
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.finished {
			return m, nil
		}
		return m, tickCmd()

	case ProfileMsg:
		m.opts.Target = msg.Target
		m.profile = msg.Profile
		line := fmt.Sprintf("Profile loaded, collecting %d items", msg.Target)
		if msg.Profile.Posts != nil {
			line = fmt.Sprintf("Profile shows %d posts, collecting %d", *msg.Profile.Posts, msg.Target)
		}
		m.AddLogMessage("INFO", line)
		return m, nil

	case RoundMsg:
		m.applyRound(msg.Report)
		if n := len(msg.Report.NewItems); n > 0 {
			m.AddLogMessage("INFO", fmt.Sprintf("Round %d: %d new items", msg.Report.Round, n))
		}
		return m, nil

	case DownloadMsg:
		m.applyDownload(msg)
		return m, nil

	case FinishedMsg:
		m.finished = true
		m.collected = msg.Collected
		m.reason = msg.Reason
		m.err = msg.Err
		if msg.Err != nil {
			m.AddLogMessage("ERROR", "Crawl stopped: "+msg.Err.Error())
		} else {
			m.AddLogMessage("SUCCESS", fmt.Sprintf("Crawl finished: %d items (%s)", msg.Collected, msg.Reason))
		}
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if !m.finished && m.opts.OnQuit != nil {
			m.opts.OnQuit()
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
