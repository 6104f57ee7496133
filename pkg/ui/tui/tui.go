package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"igcrawler/pkg/crawler"
	"igcrawler/pkg/feed"
)

// TUI is a full-screen dashboard that follows one crawl
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a dashboard. Call Start before the crawl begins reporting.
func NewTUI(opts Options) *TUI {
	model := NewModel(opts)
	return &TUI{
		program: tea.NewProgram(&model, tea.WithAltScreen()),
		model:   &model,
	}
}

// Start runs the dashboard until the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// ProfileLoaded reports the profile header and the resolved target
func (t *TUI) ProfileLoaded(profile feed.Profile, target int) {
	t.Send(ProfileMsg{Profile: profile, Target: target})
}

// OnRound implements crawler.RoundObserver
func (t *TUI) OnRound(_ context.Context, report crawler.RoundReport) {
	t.Send(RoundMsg{Report: report})
}

// DownloadFinished reports one media download
func (t *TUI) DownloadFinished(mediaID string, skipped bool, err error) {
	t.Send(DownloadMsg{MediaID: mediaID, Skipped: skipped, Err: err})
}

// Finished reports the end of the crawl. The dashboard stays up until the
// user quits.
func (t *TUI) Finished(collected int, reason string, err error) {
	t.Send(FinishedMsg{Collected: collected, Reason: reason, Err: err})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

// LogError logs an error message
func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}
