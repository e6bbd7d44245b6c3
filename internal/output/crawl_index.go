package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const CrawlIndexFile = "crawl-index.json"

// Page outcomes recorded in the crawl index.
const (
	PageCreated = "created"
	PageUpdated = "updated"
	PageExists  = "exists"
	PageEmpty   = "empty"
	PageSkipped = "skipped"
	PageFailed  = "failed"
)

type PageRecord struct {
	URL    string `json:"url"`
	Path   string `json:"path,omitempty"`
	Depth  int    `json:"depth"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type CrawlIndex struct {
	RunID        string       `json:"run_id"`
	BaseURL      string       `json:"base_url"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  time.Time    `json:"completed_at"`
	PagesCrawled int          `json:"pages_crawled"`
	PagesWritten int          `json:"pages_written"`
	PagesFailed  int          `json:"pages_failed"`
	Pages        []PageRecord `json:"pages"`
}

// Recorder collects page records from concurrent workers.
type Recorder struct {
	mu        sync.Mutex
	runID     string
	baseURL   string
	startedAt time.Time
	pages     []PageRecord
}

func NewRecorder(baseURL string, startedAt time.Time) *Recorder {
	return NewRecorderWithID(uuid.NewString(), baseURL, startedAt)
}

func NewRecorderWithID(runID, baseURL string, startedAt time.Time) *Recorder {
	return &Recorder{
		runID:     runID,
		baseURL:   baseURL,
		startedAt: startedAt,
	}
}

func (r *Recorder) RunID() string { return r.runID }

func (r *Recorder) Add(rec PageRecord) {
	r.mu.Lock()
	r.pages = append(r.pages, rec)
	r.mu.Unlock()
}

// Index snapshots the records, sorted by URL.
func (r *Recorder) Index(completedAt time.Time) CrawlIndex {
	r.mu.Lock()
	pages := append([]PageRecord(nil), r.pages...)
	r.mu.Unlock()

	sort.Slice(pages, func(i, j int) bool { return pages[i].URL < pages[j].URL })
	index := CrawlIndex{
		RunID:       r.runID,
		BaseURL:     r.baseURL,
		StartedAt:   r.startedAt,
		CompletedAt: completedAt,
		Pages:       pages,
	}
	for _, p := range pages {
		switch p.Status {
		case PageCreated, PageUpdated:
			index.PagesWritten++
			index.PagesCrawled++
		case PageExists, PageEmpty:
			index.PagesCrawled++
		case PageFailed:
			index.PagesFailed++
		}
	}
	return index
}

func WriteCrawlIndex(outputDir string, index CrawlIndex) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}

	indexPath := filepath.Join(outputDir, CrawlIndexFile)
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(indexPath, data, 0644); err != nil {
		return "", err
	}
	return indexPath, nil
}

func ReadCrawlIndex(outputDir string) (CrawlIndex, error) {
	indexPath := filepath.Join(outputDir, CrawlIndexFile)
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return CrawlIndex{}, err
	}
	var index CrawlIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return CrawlIndex{}, fmt.Errorf("parse %s: %w", indexPath, err)
	}
	return index, nil
}
