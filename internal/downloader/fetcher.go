package downloader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/logger"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// HTTPFetcher downloads media bytes from CDN URLs
type HTTPFetcher struct {
	client *resty.Client
	logger logger.Logger
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout and
// retry count. Retries use exponential backoff and only fire for statuses
// worth retrying.
func NewHTTPFetcher(timeout time.Duration, retries int, userAgent string, log logger.Logger) *HTTPFetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	client.SetRetryCount(retries)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(10 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return errs.IsRetryableStatusCode(r.StatusCode())
	})

	return &HTTPFetcher{client: client, logger: log}
}

// Fetch downloads url and returns the body
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "fetch media", err)
	}

	f.logger.DebugWithFields("Media request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode(),
		"size":     len(resp.Body()),
		"duration": time.Since(start),
	})

	switch code := resp.StatusCode(); {
	case code == http.StatusOK:
		return resp.Body(), nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, errs.New(errs.ErrorTypeAuth, "fetch media", fmt.Sprintf("status %d", code))
	case code == http.StatusNotFound:
		return nil, errs.New(errs.ErrorTypeNotFound, "fetch media", "media not found")
	default:
		return nil, errs.New(errs.ErrorTypeNetwork, "fetch media", fmt.Sprintf("unexpected status %d", code))
	}
}
