package browser

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/feed"
	"igcrawler/pkg/retry"
)

const (
	usernameInput   = `input[name="username"]`
	passwordInput   = `input[name="password"]`
	submitButton    = `button[type='submit']`
	notNowButton    = `//button[contains(text(), 'Not Now')]`
	loginCheckDelay = 2 * time.Second
)

// Credentials authenticate the browser session. A SessionID, when present,
// is installed as a cookie and the form is skipped.
type Credentials struct {
	Username  string
	Password  string
	SessionID string
}

func (b *Browser) baseURL() string {
	if b.cfg.BaseURL == "" {
		return feed.DefaultBaseURL
	}
	return strings.TrimRight(b.cfg.BaseURL, "/")
}

// Login signs the tab in and waits until the login form is gone
func (b *Browser) Login(ctx context.Context, creds Credentials) error {
	log := b.logger.WithField("username", creds.Username)

	switch {
	case creds.SessionID != "":
		if err := b.installSession(ctx, creds.SessionID); err != nil {
			return err
		}
		if err := b.Navigate(ctx, b.baseURL()+"/"); err != nil {
			return err
		}
	case creds.Username != "" && creds.Password != "":
		if err := b.submitLoginForm(ctx, creds); err != nil {
			return err
		}
		b.dismissPrompt(ctx)
	default:
		return errs.New(errs.ErrorTypeAuth, "login", "no session id or username/password available")
	}

	if err := b.waitLoggedIn(ctx); err != nil {
		log.WithError(err).Error("Login did not complete")
		return err
	}
	log.Info("Logged in")
	return nil
}

func (b *Browser) installSession(ctx context.Context, sessionID string) error {
	domain := "." + strings.TrimPrefix(hostOf(b.baseURL()), "www.")
	expires := cdp.TimeSinceEpoch(time.Now().Add(365 * 24 * time.Hour))

	err := b.run(ctx, "set session cookie", chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookie("sessionid", sessionID).
			WithDomain(domain).
			WithPath("/").
			WithExpires(&expires).
			WithHTTPOnly(true).
			WithSecure(true).
			Do(ctx)
	}))
	if err != nil {
		return errs.Wrap(errs.ErrorTypeAuth, "login", err)
	}
	return nil
}

func (b *Browser) submitLoginForm(ctx context.Context, creds Credentials) error {
	if err := b.Navigate(ctx, b.baseURL()+"/accounts/login/"); err != nil {
		return err
	}
	err := b.runFor(ctx, "login form", b.cfg.LoginTimeout,
		chromedp.WaitVisible(usernameInput, chromedp.ByQuery),
		chromedp.SendKeys(usernameInput, creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(passwordInput, creds.Password, chromedp.ByQuery),
		chromedp.Click(submitButton, chromedp.ByQuery),
	)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeAuth, "login", err)
	}
	return nil
}

// dismissPrompt clicks away the "save your login info" prompt if it shows up
func (b *Browser) dismissPrompt(ctx context.Context) {
	err := b.runFor(ctx, "dismiss prompt", 5*time.Second,
		chromedp.WaitVisible(notNowButton, chromedp.BySearch),
		chromedp.Click(notNowButton, chromedp.BySearch),
	)
	if err != nil {
		b.logger.Debug("No login prompt detected")
		return
	}
	b.logger.Debug("Dismissed login prompt")
}

func (b *Browser) waitLoggedIn(ctx context.Context) error {
	attempts := int(b.cfg.LoginTimeout / loginCheckDelay)
	if attempts < 1 {
		attempts = 1
	}
	return retry.Do(func() error {
		inputs, err := b.query(ctx, nil, usernameInput)
		if err != nil {
			return err
		}
		if len(inputs) > 0 {
			return errs.New(errs.ErrorTypeDriver, "login", "login form still shown")
		}
		return nil
	}, &retry.Config{
		MaxAttempts: attempts,
		Backoff:     &retry.ConstantBackoff{Delay: loginCheckDelay},
		Context:     ctx,
		Logger:      b.logger,
	})
}

func hostOf(base string) string {
	host := base
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/:"); i >= 0 {
		host = host[:i]
	}
	return host
}
