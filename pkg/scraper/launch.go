package scraper

import (
	"context"

	"igcrawler/pkg/auth"
	"igcrawler/pkg/config"
	"igcrawler/pkg/driver/browser"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/ratelimit"
)

// Launch starts a browser and signs account in. The caller owns the returned
// browser and must Close it.
func Launch(ctx context.Context, cfg *config.Config, account *auth.Account, log logger.Logger) (*browser.Browser, error) {
	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.ActionsPerMinute, cfg.RateLimit.BurstSize)

	b, err := browser.New(ctx, cfg.Browser, limiter, log)
	if err != nil {
		return nil, err
	}

	creds := browser.Credentials{
		Username:  account.Username,
		Password:  account.Password,
		SessionID: account.SessionID,
	}
	if err := b.Login(ctx, creds); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}
