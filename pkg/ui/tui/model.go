package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"igcrawler/pkg/crawler"
	"igcrawler/pkg/feed"
)

// Options describe the crawl the dashboard follows
type Options struct {
	Handle string
	Target int
	Mode   string
	Budget time.Duration
	// OnQuit is called when the user quits before the crawl finished
	OnQuit func()
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the dashboard state. It is only touched from the bubbletea loop.
type Model struct {
	opts    Options
	profile feed.Profile

	spinner   spinner.Model
	targetBar progress.Model
	budgetBar progress.Model

	round      int
	collected  int
	interval   time.Duration
	elapsed    time.Duration
	idleRounds int
	recent     []string

	downloaded int
	skipped    int
	failed     int

	finished bool
	reason   string
	err      error

	startTime      time.Time
	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int
	maxRecent      int
}

// NewModel creates a dashboard model
func NewModel(opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	return Model{
		opts:           opts,
		spinner:        s,
		targetBar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		budgetBar:      progress.New(progress.WithSolidFill(string(neonOrange)), progress.WithWidth(40)),
		startTime:      time.Now(),
		maxLogMessages: 50,
		maxRecent:      5,
	}
}

// applyRound folds a round report into the model
func (m *Model) applyRound(r crawler.RoundReport) {
	m.round = r.Round
	m.collected = r.Collected
	m.interval = r.Interval
	m.elapsed = r.Elapsed

	if len(r.NewItems) == 0 {
		m.idleRounds++
		return
	}
	m.idleRounds = 0
	for _, it := range r.NewItems {
		m.recent = append(m.recent, it.Key)
	}
	if len(m.recent) > m.maxRecent {
		m.recent = m.recent[len(m.recent)-m.maxRecent:]
	}
}

func (m *Model) applyDownload(msg DownloadMsg) {
	switch {
	case msg.Err != nil:
		m.failed++
		m.AddLogMessage("ERROR", "Download failed: "+msg.MediaID+" - "+msg.Err.Error())
	case msg.Skipped:
		m.skipped++
	default:
		m.downloaded++
	}
}

// AddLogMessage appends a log line, keeping the last maxLogMessages
func (m *Model) AddLogMessage(level, message string) {
	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   levelColor(level),
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// targetProgress is the collected fraction of the target
func (m *Model) targetProgress() float64 {
	if m.opts.Target <= 0 {
		return 0
	}
	return clamp(float64(m.collected) / float64(m.opts.Target))
}

// budgetSpent is the fraction of the waiting budget used so far
func (m *Model) budgetSpent() float64 {
	if m.opts.Budget <= 0 {
		return 0
	}
	return clamp(float64(m.elapsed) / float64(m.opts.Budget))
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
