package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPFetcher is the default net/http backend.
type HTTPFetcher struct {
	client  *http.Client
	opts    Options
	headers http.Header
	limiter *rate.Limiter
	robots  *robotsCache
	logger  *zap.Logger
	maxBody int64
}

func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	headers := requestHeaders(opts)
	client := &http.Client{Timeout: opts.Timeout}
	f := &HTTPFetcher{
		client:  client,
		opts:    opts,
		headers: headers,
		limiter: newLimiter(opts.RateLimit),
		logger:  loggerOrNop(opts.Logger),
		maxBody: bodyLimit(opts),
	}
	if opts.RespectRobots {
		f.robots = newRobotsCache(client, headers.Get("User-Agent"), f.logger)
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if f.robots != nil && !f.robots.Allowed(ctx, u) {
		return nil, ErrDisallowed
	}
	if err := waitForRateLimit(ctx, f.limiter); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header = f.headers.Clone()

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	page := &Page{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if err := Check(page); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return page, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return page, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	if int64(len(body)) > f.maxBody {
		f.logger.Warn("response body too large",
			zap.String("url", page.URL), zap.Int64("limit", f.maxBody))
		return page, tooLarge(f.maxBody)
	}
	page.Body = body
	return page, nil
}
