package fetch

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// robotsCache fetches robots.txt once per scheme+host. A robots file that
// cannot be fetched allows everything.
type robotsCache struct {
	client *http.Client
	agent  string
	logger *zap.Logger

	mu     sync.Mutex
	byHost map[string]*robotsEntry
}

type robotsEntry struct {
	once sync.Once
	data *robotstxt.RobotsData
}

func newRobotsCache(client *http.Client, agent string, logger *zap.Logger) *robotsCache {
	return &robotsCache{
		client: client,
		agent:  agent,
		logger: logger,
		byHost: make(map[string]*robotsEntry),
	}
}

func (c *robotsCache) Allowed(ctx context.Context, u *url.URL) bool {
	key := u.Scheme + "://" + u.Host
	c.mu.Lock()
	e, ok := c.byHost[key]
	if !ok {
		e = &robotsEntry{}
		c.byHost[key] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.data = c.load(ctx, key+"/robots.txt")
	})
	if e.data == nil {
		return true
	}
	return e.data.TestAgent(u.RequestURI(), c.agent)
}

func (c *robotsCache) load(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.agent)
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("robots.txt unavailable", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		c.logger.Debug("robots.txt unparsable", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	return data
}
