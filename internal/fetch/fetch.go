// Package fetch retrieves pages over HTTP and classifies the responses the
// crawler can convert.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mdspider/internal/config"
)

// MaxBodyBytes is the default bound on a response body. Larger pages are
// skipped rather than converted from a truncated document.
const MaxBodyBytes = 32 << 20

var (
	ErrTransport = errors.New("transport failure")
	// ErrSkipped marks responses that are fine to ignore: wrong status,
	// wrong content type, or a robots.txt disallow.
	ErrSkipped    = errors.New("skipped")
	ErrNotHTML    = fmt.Errorf("%w: content is not html", ErrSkipped)
	ErrDisallowed = fmt.Errorf("%w: disallowed by robots.txt", ErrSkipped)
	ErrTooLarge   = fmt.Errorf("%w: body exceeds size limit", ErrSkipped)
)

type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d", e.Code)
}

func (e *StatusError) Unwrap() error { return ErrSkipped }

type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

type Options struct {
	Timeout time.Duration
	Headers map[string]string
	Cookies map[string]string
	// UserAgent is sent when Headers has no User-Agent entry.
	UserAgent string
	// RateLimit is a global request budget per second shared by every
	// caller of the fetcher. Zero disables it.
	RateLimit     float64
	RespectRobots bool
	// MaxBodyBytes overrides the package default when positive.
	MaxBodyBytes int64
	Logger       *zap.Logger
}

// OptionsFromConfig maps crawl configuration onto fetcher options.
func OptionsFromConfig(cfg config.Config, logger *zap.Logger) Options {
	return Options{
		Timeout:       cfg.TimeoutDuration(),
		Headers:       cfg.Headers,
		Cookies:       cfg.Cookies,
		UserAgent:     config.DefaultUserAgent,
		RateLimit:     cfg.RateLimit,
		RespectRobots: cfg.RespectRobots,
		Logger:        logger,
	}
}

// New builds the fetcher selected by cfg.FetchBackend.
func New(cfg config.Config, logger *zap.Logger) (Fetcher, error) {
	opts := OptionsFromConfig(cfg, logger)
	switch cfg.FetchBackend {
	case "", "http":
		return NewHTTPFetcher(opts), nil
	case "colly":
		return NewCollyFetcher(opts), nil
	default:
		return nil, fmt.Errorf("%w: fetch_backend %q", config.ErrInvalidBackend, cfg.FetchBackend)
	}
}

// Check classifies a response by status and content type. The body is not
// consulted, so it can run before the body is read.
func Check(p *Page) error {
	if p.StatusCode < 200 || p.StatusCode >= 300 {
		return &StatusError{Code: p.StatusCode}
	}
	if !IsHTML(p.ContentType) {
		return fmt.Errorf("%w (%s)", ErrNotHTML, p.ContentType)
	}
	return nil
}

func IsHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func bodyLimit(opts Options) int64 {
	if opts.MaxBodyBytes > 0 {
		return opts.MaxBodyBytes
	}
	return MaxBodyBytes
}

func tooLarge(limit int64) error {
	return fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

func waitForRateLimit(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func requestHeaders(opts Options) http.Header {
	h := make(http.Header, len(opts.Headers)+2)
	for k, v := range opts.Headers {
		h.Set(k, v)
	}
	if h.Get("User-Agent") == "" {
		ua := opts.UserAgent
		if ua == "" {
			ua = config.DefaultUserAgent
		}
		h.Set("User-Agent", ua)
	}
	if c := cookieHeader(opts.Cookies); c != "" {
		h.Set("Cookie", c)
	}
	return h
}

func cookieHeader(cookies map[string]string) string {
	if len(cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, (&http.Cookie{Name: name, Value: cookies[name]}).String())
	}
	return strings.Join(parts, "; ")
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
