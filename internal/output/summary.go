package output

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
)

const SummaryFile = "SUMMARY.md"

// RenderSummary builds the human-readable run report.
func RenderSummary(index CrawlIndex, outputDir string) (string, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	md.H1("Crawl Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Base URL", summaryCell(index.BaseURL)},
			{"Run ID", markdown.Code(index.RunID)},
			{"Started", index.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Completed", index.CompletedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", index.CompletedAt.Sub(index.StartedAt).Round(time.Millisecond).String()},
			{"Pages crawled", strconv.Itoa(index.PagesCrawled)},
			{"Files written", strconv.Itoa(index.PagesWritten)},
			{"Failures", strconv.Itoa(index.PagesFailed)},
		},
	})
	md.PlainText("")

	if len(index.Pages) > 0 {
		md.H2("Pages")
		md.PlainText("")
		rows := make([][]string, 0, len(index.Pages))
		for _, p := range index.Pages {
			file := ""
			if p.Path != "" {
				file = markdown.Code(relativeTo(outputDir, p.Path))
			}
			status := p.Status
			if p.Error != "" {
				status += ": " + summaryCell(p.Error)
			}
			rows = append(rows, []string{summaryCell(p.URL), strconv.Itoa(p.Depth), file, status})
		}
		md.Table(markdown.TableSet{
			Header:    []string{"URL", "Depth", "File", "Status"},
			Rows:      rows,
			Alignment: []markdown.TableAlignment{markdown.AlignLeft, markdown.AlignRight},
		})
	}

	if err := md.Build(); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return buf.String(), nil
}

func WriteSummary(outputDir string, index CrawlIndex) (string, error) {
	body, err := RenderSummary(index, outputDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, SummaryFile)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func relativeTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

func summaryCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
