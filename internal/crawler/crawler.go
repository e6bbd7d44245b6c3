// Package crawler runs a crawl: a pool of workers draining the frontier,
// turning each page into a file and feeding discovered links back in.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mdspider/internal/config"
	"mdspider/internal/fetch"
	"mdspider/internal/format"
	"mdspider/internal/frontier"
	"mdspider/internal/markdown"
	"mdspider/internal/metrics"
	"mdspider/internal/output"
	"mdspider/internal/parse"
	"mdspider/internal/rules"
)

// Deps are the collaborators of a Spider. Nil fields get defaults built from
// the config.
type Deps struct {
	Logger    *zap.Logger
	Fetcher   fetch.Fetcher
	Formatter format.Formatter
	Visited   frontier.VisitedSet
	Metrics   *metrics.Metrics
	// Redis backs the redis visited store. Nil dials cfg.Visited.RedisAddr.
	Redis redis.Cmdable
}

// Stats summarizes a run. Pages counts distinct URLs fetched as HTML.
type Stats struct {
	Pages      int
	Written    int
	Existing   int
	Empty      int
	Skipped    int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time

	IndexPath   string
	SummaryPath string
}

type counters struct {
	pages, written, existing, empty, skipped, failed atomic.Int64
}

type Spider struct {
	cfg       config.Config
	logger    *zap.Logger
	fetcher   fetch.Fetcher
	formatter format.Formatter
	metrics   *metrics.Metrics
	resolver  *rules.Resolver
	frontier  *frontier.Frontier
	visited   frontier.VisitedSet
	recorder  *output.Recorder
	runID     string

	baseHost    string
	markdownOut bool

	convMu     sync.Mutex
	converters map[string]*markdown.Converter

	counts counters
}

func New(cfg config.Config, deps Deps) (*Spider, error) {
	cfg, err := config.Normalize(cfg)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	resolver, err := rules.New(cfg.PathConfigs, rules.Options{
		SeedURL:        cfg.URL,
		SameDomainOnly: cfg.SameDomainOnly,
		Logger:         logger.Named("rules"),
	})
	if err != nil {
		return nil, err
	}

	fetcher := deps.Fetcher
	if fetcher == nil {
		if fetcher, err = fetch.New(cfg, logger.Named("fetch")); err != nil {
			return nil, err
		}
	}
	formatter := deps.Formatter
	if formatter == nil {
		formatter = format.New(cfg.Format, logger.Named("format"))
	}
	runID := uuid.NewString()
	visited := deps.Visited
	if visited == nil {
		visited = newVisited(cfg.Visited, deps.Redis, runID)
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	s := &Spider{
		cfg:         cfg,
		logger:      logger,
		fetcher:     fetcher,
		formatter:   formatter,
		metrics:     m,
		resolver:    resolver,
		visited:     visited,
		runID:       runID,
		baseHost:    resolver.BaseHost(),
		markdownOut: output.IsMarkdownExt(cfg.FileExtension),
		converters:  map[string]*markdown.Converter{},
	}
	s.frontier = frontier.New(visited, resolver.ShouldCrawl, frontier.Options{
		MaxDepth:    cfg.MaxDepth,
		MaxChildren: cfg.MaxChildrenPerPage,
	})
	return s, nil
}

// newVisited scopes redis keys to runID so one run never sees URLs claimed
// by an earlier one.
func newVisited(cfg config.VisitedConfig, client redis.Cmdable, runID string) frontier.VisitedSet {
	if cfg.Backend != "redis" {
		return frontier.NewMemoryVisited()
	}
	if client == nil {
		client = frontier.NewRedisClient(frontier.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return frontier.NewRedisVisited(client, cfg.KeyPrefix+runID+":", cfg.TTL)
}

// Config returns the normalized configuration the spider runs with.
func (s *Spider) Config() config.Config { return s.cfg }

// Run crawls until the frontier drains or ctx is canceled. On cancellation
// the partial stats are returned along with ctx's error.
func (s *Spider) Run(ctx context.Context) (Stats, error) {
	startedAt := time.Now()
	s.recorder = output.NewRecorderWithID(s.runID, s.cfg.URL, startedAt)
	s.logger.Info("starting crawl",
		zap.String("url", s.cfg.URL),
		zap.String("output_dir", s.cfg.OutputDir),
		zap.String("run_id", s.recorder.RunID()),
		zap.Int("workers", s.cfg.NumThreads),
		zap.Int("max_depth", s.cfg.MaxDepth),
		zap.Bool("same_domain_only", s.cfg.SameDomainOnly),
		zap.Int("max_children_per_page", s.cfg.MaxChildrenPerPage))

	seed, err := frontier.Normalize(s.cfg.URL)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", config.ErrInvalidURL, err)
	}
	if err := s.frontier.Seed(ctx, seed); err != nil {
		return Stats{}, fmt.Errorf("seed frontier: %w", err)
	}
	s.seedFromSitemap(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.cfg.NumThreads; i++ {
		worker := s.logger.With(zap.Int("worker", i+1))
		g.Go(func() error {
			return s.work(gctx, worker)
		})
	}
	runErr := g.Wait()
	s.releaseVisited()

	stats := s.stats(startedAt, time.Now())
	if s.cfg.WriteIndex {
		s.writeReports(&stats)
	}
	s.logger.Info("crawl finished",
		zap.Int("pages", stats.Pages),
		zap.Int("written", stats.Written),
		zap.Int("existing", stats.Existing),
		zap.Int("empty", stats.Empty),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Duration("elapsed", stats.FinishedAt.Sub(stats.StartedAt)))
	return stats, runErr
}

// releaseVisited drops a shared visited store's keys once the run is over.
func (s *Spider) releaseVisited() {
	c, ok := s.visited.(interface{ Clear(context.Context) error })
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Clear(ctx); err != nil {
		s.logger.Warn("clear visited set", zap.Error(err))
	}
}

func (s *Spider) seedFromSitemap(ctx context.Context) {
	if s.cfg.SitemapURL == "" {
		return
	}
	urls, err := ParseSitemap(ctx, s.cfg.SitemapURL, SitemapOptions{
		Headers: s.cfg.Headers,
		Timeout: s.cfg.TimeoutDuration() * 3,
	})
	if err != nil {
		s.logger.Warn("sitemap unavailable", zap.String("sitemap", s.cfg.SitemapURL), zap.Error(err))
		return
	}
	added := 0
	for _, raw := range urls {
		u, err := frontier.Normalize(raw)
		if err != nil {
			continue
		}
		ok, err := s.frontier.Enqueue(ctx, 1, u)
		if err != nil {
			s.logger.Warn("enqueue sitemap url", zap.String("url", u), zap.Error(err))
			continue
		}
		if ok {
			added++
		}
	}
	s.logger.Info("seeded from sitemap",
		zap.String("sitemap", s.cfg.SitemapURL),
		zap.Int("listed", len(urls)),
		zap.Int("queued", added))
}

func (s *Spider) work(ctx context.Context, logger *zap.Logger) error {
	throttle := s.cfg.ThrottleDuration()
	for {
		task, err := s.frontier.Dequeue(ctx)
		if errors.Is(err, frontier.ErrDrained) {
			logger.Debug("frontier drained, worker exiting")
			return nil
		}
		if err != nil {
			return err
		}

		s.process(ctx, logger, task)
		s.frontier.Done()
		s.metrics.SetFrontier(s.frontier.Len(), s.frontier.Visited())

		if err := sleep(ctx, throttle); err != nil {
			return err
		}
	}
}

func (s *Spider) process(ctx context.Context, logger *zap.Logger, task frontier.Task) {
	log := logger.With(zap.String("url", task.URL), zap.Int("depth", task.Depth))
	if task.Depth > s.cfg.MaxDepth {
		log.Debug("over depth bound, discarded")
		return
	}
	rec := output.PageRecord{URL: task.URL, Depth: task.Depth}
	defer func() {
		if rec.Status != "" {
			s.recorder.Add(rec)
		}
	}()

	path, err := output.FilePath(task.URL, s.baseHost, s.cfg.OutputDir, s.cfg.FileExtension)
	if err != nil {
		s.fail(log, &rec, "map file path", err)
		return
	}
	rec.Path = path

	start := time.Now()
	page, err := s.fetcher.Fetch(ctx, task.URL)
	s.metrics.ObserveFetch(time.Since(start))
	if err != nil {
		switch {
		case errors.Is(err, fetch.ErrSkipped):
			log.Info("skipping page", zap.Error(err))
			rec.Status, rec.Error, rec.Path = output.PageSkipped, err.Error(), ""
			s.counts.skipped.Add(1)
			s.metrics.IncPages(metrics.PageSkipped)
		case ctx.Err() != nil:
			// Canceled mid-fetch; the page is not recorded.
		default:
			rec.Path = ""
			s.fail(log, &rec, "fetch", err)
		}
		return
	}
	s.counts.pages.Add(1)
	s.metrics.IncPages(metrics.PageFetched)

	policy := s.resolver.Resolve(task.URL)
	ext, err := parse.Extract(string(page.Body), task.URL, policy)
	if err != nil {
		s.fail(log, &rec, "extract", err)
		return
	}

	status, err := s.store(ctx, log, path, ext.Content, policy)
	if err != nil {
		s.fail(log, &rec, "store", err)
		return
	}
	rec.Status = status
	if status == output.PageEmpty {
		rec.Path = ""
	}

	queued, err := s.frontier.EnqueueChildren(ctx, task.Depth+1, ext.Links)
	if err != nil {
		log.Warn("enqueue children", zap.Error(err))
	}
	log.Debug("links discovered", zap.Int("found", len(ext.Links)), zap.Int("queued", queued))
}

// store renders and writes one page and returns its index status.
func (s *Spider) store(ctx context.Context, log *zap.Logger, path, content string, policy config.PathConfig) (string, error) {
	if strings.TrimSpace(content) == "" {
		log.Warn("no content matched target selectors", zap.Strings("selectors", policy.TargetSelectors))
		s.counts.empty.Add(1)
		s.metrics.IncPages(metrics.PageEmpty)
		return output.PageEmpty, nil
	}

	// Rendering is skipped for files that would not be written anyway.
	if !s.cfg.ForceOverwrite {
		if _, err := os.Stat(path); err == nil {
			log.Debug("file exists, not overwriting", zap.String("path", path))
			return s.written(output.Skipped), nil
		}
	}

	body, err := s.render(ctx, content, policy)
	if err != nil {
		return "", fmt.Errorf("convert: %w", err)
	}

	status, err := output.WriteFile(path, body, s.cfg.ForceOverwrite)
	if err != nil {
		return "", err
	}
	if status != output.Skipped {
		log.Info(status.String(), zap.String("path", path), zap.String("config", policy.Description))
	}
	return s.written(status), nil
}

func (s *Spider) written(status output.WriteStatus) string {
	s.metrics.IncFilesWritten(status.String())
	switch status {
	case output.Created:
		s.counts.written.Add(1)
		return output.PageCreated
	case output.Updated:
		s.counts.written.Add(1)
		return output.PageUpdated
	default:
		s.counts.existing.Add(1)
		return output.PageExists
	}
}

func (s *Spider) render(ctx context.Context, content string, policy config.PathConfig) (string, error) {
	if !s.markdownOut {
		return content, nil
	}
	md, err := s.converter(policy.LanguageVariant).Convert(content)
	if err != nil {
		return "", err
	}
	return s.formatter.Format(ctx, md), nil
}

// converter returns the shared converter for a language preference.
func (s *Spider) converter(variant string) *markdown.Converter {
	s.convMu.Lock()
	defer s.convMu.Unlock()
	c, ok := s.converters[variant]
	if !ok {
		c = markdown.NewConverter(markdown.Options{LanguageVariant: variant})
		s.converters[variant] = c
	}
	return c
}

func (s *Spider) fail(log *zap.Logger, rec *output.PageRecord, stage string, err error) {
	log.Error(stage+" failed", zap.Error(err))
	rec.Status, rec.Error = output.PageFailed, err.Error()
	s.counts.failed.Add(1)
	s.metrics.IncPages(metrics.PageFailed)
}

func (s *Spider) stats(startedAt, finishedAt time.Time) Stats {
	return Stats{
		Pages:      int(s.counts.pages.Load()),
		Written:    int(s.counts.written.Load()),
		Existing:   int(s.counts.existing.Load()),
		Empty:      int(s.counts.empty.Load()),
		Skipped:    int(s.counts.skipped.Load()),
		Failed:     int(s.counts.failed.Load()),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
}

func (s *Spider) writeReports(stats *Stats) {
	index := s.recorder.Index(stats.FinishedAt)
	path, err := output.WriteCrawlIndex(s.cfg.OutputDir, index)
	if err != nil {
		s.logger.Warn("write crawl index", zap.Error(err))
		return
	}
	stats.IndexPath = path
	if path, err = output.WriteSummary(s.cfg.OutputDir, index); err != nil {
		s.logger.Warn("write summary", zap.Error(err))
		return
	}
	stats.SummaryPath = path
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
