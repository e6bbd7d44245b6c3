package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// CollyFetcher fetches through a colly collector. Revisits are allowed
// because deduplication happens in the frontier.
type CollyFetcher struct {
	base    *colly.Collector
	headers http.Header
	limiter *rate.Limiter
	logger  *zap.Logger
	maxBody int64
}

func NewCollyFetcher(opts Options) *CollyFetcher {
	headers := requestHeaders(opts)
	c := colly.NewCollector(
		colly.UserAgent(headers.Get("User-Agent")),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	c.IgnoreRobotsTxt = !opts.RespectRobots
	maxBody := bodyLimit(opts)
	c.MaxBodySize = int(maxBody + 1)
	configureCollector(c, opts)

	return &CollyFetcher{
		base:    c,
		headers: headers,
		limiter: newLimiter(opts.RateLimit),
		logger:  loggerOrNop(opts.Logger),
		maxBody: maxBody,
	}
}

func configureCollector(c *colly.Collector, opts Options) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c.SetRequestTimeout(timeout)
}

func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := waitForRateLimit(ctx, f.limiter); err != nil {
		return nil, err
	}

	// A clone per request keeps the response callback local to this call
	// while sharing the HTTP backend and robots cache.
	c := f.base.Clone()
	c.Context = ctx

	var page *Page
	c.OnResponse(func(r *colly.Response) {
		page = &Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       r.Body,
		}
		if r.Headers != nil {
			page.ContentType = r.Headers.Get("Content-Type")
		}
	})

	if err := c.Request(http.MethodGet, rawURL, nil, nil, f.headers.Clone()); err != nil {
		switch {
		case errors.Is(err, colly.ErrRobotsTxtBlocked):
			return nil, ErrDisallowed
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}
	if page == nil {
		return nil, fmt.Errorf("%w: no response for %s", ErrTransport, rawURL)
	}
	if err := Check(page); err != nil {
		page.Body = nil
		return page, err
	}
	if int64(len(page.Body)) > f.maxBody {
		f.logger.Warn("response body too large",
			zap.String("url", page.URL), zap.Int64("limit", f.maxBody))
		page.Body = nil
		return page, tooLarge(f.maxBody)
	}
	return page, nil
}
