// Package export saves remote thumbnail images as local files, one at
// a time. Downloads are deliberately serial with a fixed pause between
// items so the image host never sees a burst of programmatic fetches.
package export

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"
)

// downloadDelay is the pause between successive downloads.
const downloadDelay = 300 * time.Millisecond

// maxTitleLen caps the sanitized title portion of a filename.
const maxTitleLen = 50

// Item is one thumbnail to export.
type Item struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	ID    string `json:"id"`
}

// ProgressFunc is invoked after each successful download with the
// 1-based item index and the total item count.
type ProgressFunc func(current, total int)

// Pipeline downloads thumbnail images into a directory.
type Pipeline struct {
	client *http.Client
	dir    string
	delay  time.Duration
	log    logrus.FieldLogger
}

// NewPipeline creates a pipeline writing into dir.
func NewPipeline(dir string, logger logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		client: &http.Client{Timeout: 30 * time.Second},
		dir:    dir,
		delay:  downloadDelay,
		log:    logger.WithField("component", "export"),
	}
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Filename builds a filesystem-safe, collision-resistant name: the
// title with every non-alphanumeric replaced by an underscore and
// truncated to 50 characters, suffixed with the video id.
func Filename(title, id string) string {
	sanitized := unsafeChars.ReplaceAllString(title, "_")
	if len(sanitized) > maxTitleLen {
		sanitized = sanitized[:maxTitleLen]
	}
	return fmt.Sprintf("%s_%s.jpg", sanitized, id)
}

// DownloadAll fetches and saves every item in order. A failing item is
// logged and skipped; the remaining sequence continues and the overall
// operation still completes. Only context cancellation aborts the run.
func (p *Pipeline) DownloadAll(ctx context.Context, items []Item, onProgress ProgressFunc) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory %s: %w", p.dir, err)
	}

	total := len(items)
	for i, item := range items {
		log := p.log.WithFields(logrus.Fields{"video_id": item.ID, "url": item.URL})

		if err := p.downloadOne(ctx, item); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Error("Failed to download thumbnail, skipping")
			continue
		}

		if onProgress != nil {
			onProgress(i+1, total)
		}

		if i < total-1 {
			select {
			case <-time.After(p.delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	p.log.WithField("count", total).Info("Export completed")
	return nil
}

func (p *Pipeline) downloadOne(ctx context.Context, item Item) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s fetching image", resp.Status)
	}

	path := filepath.Join(p.dir, Filename(item.Title, item.ID))
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
