package crawler

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mdspider/internal/config"
)

const (
	maxSitemapBytes   = 50 << 20
	maxSitemapNesting = 3
)

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type sitemapIndex struct {
	XMLName  xml.Name          `xml:"sitemapindex"`
	Sitemaps []sitemapLocation `xml:"sitemap"`
}

type sitemapLocation struct {
	Loc string `xml:"loc"`
}

type SitemapOptions struct {
	UserAgent string
	Headers   map[string]string
	Timeout   time.Duration
	Client    *http.Client
}

// ParseSitemap returns the page URLs listed in a sitemap, following sitemap
// indexes a few levels deep.
func ParseSitemap(ctx context.Context, sitemapURL string, opts SitemapOptions) ([]string, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	return parseSitemap(ctx, sitemapURL, opts, 0)
}

func parseSitemap(ctx context.Context, sitemapURL string, opts SitemapOptions, nesting int) ([]string, error) {
	body, err := fetchSitemapContent(ctx, sitemapURL, opts)
	if err != nil {
		return nil, err
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		if nesting >= maxSitemapNesting {
			return nil, fmt.Errorf("sitemap %s: index nested too deep", sitemapURL)
		}
		var all []string
		for _, sm := range index.Sitemaps {
			loc := strings.TrimSpace(sm.Loc)
			if loc == "" {
				continue
			}
			urls, err := parseSitemap(ctx, loc, opts, nesting+1)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				// One broken child sitemap does not void the others.
				continue
			}
			all = append(all, urls...)
		}
		return all, nil
	}

	return parseURLSet(body)
}

func fetchSitemapContent(ctx context.Context, url string, opts SitemapOptions) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	resp, err := opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("read sitemap body: %w", err)
	}
	return body, nil
}

func parseURLSet(body []byte) ([]string, error) {
	var set urlset
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parse sitemap XML: %w", err)
	}

	urls := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}
