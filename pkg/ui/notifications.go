package ui

import (
	"fmt"
	"os/exec"
	"runtime"
)

// NotificationSender sends a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier announces the end of a crawl on the console and, where supported,
// on the desktop
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks a sender for the current platform. Platforms without one
// only get console output.
func NewNotifier() *Notifier {
	switch runtime.GOOS {
	case "linux":
		return &Notifier{sender: &LinuxNotificationSender{}}
	case "darwin":
		return &Notifier{sender: &MacOSNotificationSender{}}
	default:
		return &Notifier{}
	}
}

// NewNotifierWithSender uses sender for desktop notifications. A nil sender
// disables them.
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// CrawlFinished reports a finished crawl
func (n *Notifier) CrawlFinished(handle string, collected int, reason string, err error) {
	title := "igcrawler"
	if err != nil {
		message := fmt.Sprintf("@%s stopped after %d items: %v", handle, collected, err)
		fmt.Fprintf(Output, "\n%s: %s\n", Red(title), Red(message))
		n.send(title, message)
		return
	}
	message := fmt.Sprintf("@%s: %d items (%s)", handle, collected, reason)
	fmt.Fprintf(Output, "\n%s: %s\n", Green(title), Green(message))
	n.send(title, message)
}

func (n *Notifier) send(title, message string) {
	if n.sender != nil {
		// notifications are best effort
		_ = n.sender.Send(title, message)
	}
}
