package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// pageLoadTimeout bounds a single capture; YouTube pages are heavy and
// a hung load should not pin the caller.
const pageLoadTimeout = 30 * time.Second

// cardContainers are the listing-card elements an anchor can live in.
const cardContainers = `ytd-thumbnail, ytd-video-meta-block, ytd-compact-video-renderer, ytd-grid-video-renderer, ytd-video-renderer, ytd-rich-item-renderer, ytd-playlist-video-renderer`

// RodCollector implements Collector by driving a headless browser with
// rod. A fresh browser is launched per capture, which is simpler than
// keeping a warm instance and cheap at interactive rates.
type RodCollector struct {
	log logrus.FieldLogger
}

// NewRodCollector creates a collector instance.
func NewRodCollector(logger logrus.FieldLogger) *RodCollector {
	return &RodCollector{
		log: logger.WithField("component", "capture"),
	}
}

// Capture navigates to the URL headlessly and runs the extractor tiers
// over the live document.
func (c *RodCollector) Capture(ctx context.Context, url string) (meta Metadata, err error) {
	log := c.log.WithField("url", url)
	log.Info("Capturing video metadata")

	path, exists := launcher.LookPath()
	if !exists {
		log.Error("Cannot find browser executable for rod")
		return Metadata{}, errors.New("rod browser dependency not found")
	}
	u := launcher.New().Bin(path).MustLaunch()
	browser := rod.New().ControlURL(u)
	if err = browser.Connect(); err != nil {
		log.WithError(err).Error("Failed to connect to rod browser")
		return Metadata{}, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			log.WithError(closeErr).Error("Error closing rod browser instance")
			if err == nil {
				err = fmt.Errorf("error closing browser: %w", closeErr)
			}
		}
	}()

	var page *rod.Page
	page, err = browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		log.WithError(err).Error("Failed to create rod page")
		return Metadata{}, fmt.Errorf("failed to create page: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			log.WithError(closeErr).Error("Error closing rod page")
			if err == nil {
				err = fmt.Errorf("error closing page: %w", closeErr)
			}
		}
	}()

	pageCtx, cancel := context.WithTimeout(ctx, pageLoadTimeout)
	defer cancel()
	page = page.Context(pageCtx)

	if err = page.WaitLoad(); err != nil {
		if errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			log.WithError(pageCtx.Err()).Warn("Capture timed out")
			return Metadata{}, fmt.Errorf("capture timed out for %s: %w", url, pageCtx.Err())
		}
		log.WithError(err).Error("Failed to wait for page load")
		return Metadata{}, fmt.Errorf("failed waiting for page load: %w", err)
	}

	doc := &rodPage{page: page}

	videoID := ExtractVideoID(url, doc.URL(), doc)
	if videoID == "" {
		log.Warn("No video id could be derived from the page")
		return Metadata{}, fmt.Errorf("no video id found at %s", url)
	}

	meta = Extract(doc, videoID)
	log.WithFields(logrus.Fields{
		"video_id": meta.VideoID,
		"title":    meta.Title,
		"channel":  meta.ChannelName,
		"tags":     len(meta.Tags),
	}).Info("Capture completed")
	return meta, nil
}

// rodPage adapts a live rod page to the Page interface. Every lookup
// uses the non-waiting sleeper so a missing element reports "not
// found" immediately instead of blocking until the page timeout.
type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Text(selector string) (string, bool) {
	el, err := p.page.Sleeper(rod.NotFoundSleeper).Element(selector)
	if err != nil {
		return "", false
	}
	text, err := el.Text()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(text), true
}

func (p *rodPage) Attribute(selector, attr string) (string, bool) {
	el, err := p.page.Sleeper(rod.NotFoundSleeper).Element(selector)
	if err != nil {
		return "", false
	}
	value, err := el.Attribute(attr)
	if err != nil || value == nil {
		return "", false
	}
	return strings.TrimSpace(*value), true
}

func (p *rodPage) TextAll(selector string) []string {
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			continue
		}
		out = append(out, strings.TrimSpace(text))
	}
	return out
}

func (p *rodPage) AttributeAll(selector, attr string) []string {
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		value, err := el.Attribute(attr)
		if err != nil || value == nil {
			continue
		}
		out = append(out, strings.TrimSpace(*value))
	}
	return out
}

// CardText runs in page context because walking from an anchor up to
// its listing card needs closest(), which flat selector queries cannot
// express.
func (p *rodPage) CardText(anchorSelector, targetSelector string) (string, bool) {
	res, err := p.page.Eval(`(anchorSel, targetSel, containerSel) => {
		for (const link of document.querySelectorAll(anchorSel)) {
			const card = link.closest(containerSel);
			if (!card) continue;
			const el = card.querySelector(targetSel);
			if (el && el.textContent) {
				const text = el.textContent.trim();
				if (text) return text;
			}
		}
		return '';
	}`, anchorSelector, targetSelector, cardContainers)
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(res.Value.Str())
	return text, text != ""
}

func (p *rodPage) DocumentTitle() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.Title
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}
