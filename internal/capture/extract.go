package capture

import (
	"fmt"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"

	"thumbvault/internal/domain"
)

// sentinelTitle is YouTube's placeholder value: a tier yielding it is
// treated the same as a tier yielding nothing.
const sentinelTitle = "YouTube"

// Selectors mirrored from the page structure this collector is coupled
// to. Any of them can rot when the site markup changes; tiers degrade
// to the next one when they do.
const (
	watchHeadingSelector = `h1.ytd-watch-metadata yt-formatted-string, h1.ytd-video-primary-info-renderer yt-formatted-string, h1.title yt-formatted-string`
	cardTitleSelector    = `#video-title, a#video-title, yt-formatted-string[id="video-title"], #video-title-link, a[id*="video-title"]`
	cardChannelSelector  = `a[href*="/channel/"], a[href*="/@"], ytd-channel-name a, #channel-name a, ytd-channel-name yt-formatted-string, #channel-name yt-formatted-string, ytd-channel-name, #channel-name`
	ownerLinkSelector    = `ytd-video-owner-renderer a[href*="/channel/"], ytd-video-owner-renderer a[href*="/@"], ytd-video-owner-renderer #channel-name a, ytd-video-owner-renderer ytd-channel-name a`
	ownerTextSelector    = `ytd-video-owner-renderer yt-formatted-string[id="channel-name"], ytd-video-owner-renderer #channel-name yt-formatted-string`
	jsonLDSelector       = `script[type="application/ld+json"]`
	channelMetaSelector  = `meta[property="og:video:channel_name"], meta[name="channel"]`
	watchChannelScan     = `ytd-watch-metadata a[href*="/channel/"], ytd-watch-metadata a[href*="/@"]`
	hashtagSelector      = `a.ytd-metadata-row-renderer[href*="/hashtag/"]`
	tagMetaSelector      = `meta[property="og:video:tag"]`
)

// strategy is one extraction tier: it returns "" when it has nothing.
type strategy func(p Page, videoID string) string

// tryStrategy runs a tier, converting a panic into "no result" so a
// broken selector or malformed document never aborts a capture.
func tryStrategy(s strategy, p Page, videoID string) (result string) {
	defer func() {
		if recover() != nil {
			result = ""
		}
	}()
	return strings.TrimSpace(s(p, videoID))
}

func anchorForVideo(videoID string) string {
	return fmt.Sprintf(`a[href*="v=%s"]`, videoID)
}

// --- Title tiers ---

var titleStrategies = []strategy{
	titleFromListingCard,
	titleFromAriaLabel,
	titleFromWatchHeading,
	titleFromDocumentTitle,
}

// ExtractTitle walks the title tiers and falls back to the fixed
// default when every one misses.
func ExtractTitle(p Page, videoID string) string {
	for _, s := range titleStrategies {
		if v := tryStrategy(s, p, videoID); v != "" && v != sentinelTitle {
			return v
		}
	}
	return domain.DefaultTitle
}

// titleFromListingCard finds the listing card whose anchor carries this
// video id and reads its title element.
func titleFromListingCard(p Page, videoID string) string {
	if v, ok := p.CardText(anchorForVideo(videoID), cardTitleSelector); ok {
		return v
	}
	return ""
}

// titleFromAriaLabel reads the accessible label off the video's anchor.
func titleFromAriaLabel(p Page, videoID string) string {
	if v, ok := p.Attribute(anchorForVideo(videoID), "aria-label"); ok {
		return v
	}
	return ""
}

// titleFromWatchHeading reads the watch page's primary heading.
func titleFromWatchHeading(p Page, _ string) string {
	if v, ok := p.Text(watchHeadingSelector); ok {
		return v
	}
	return ""
}

// titleFromDocumentTitle strips the site suffix off the document title.
func titleFromDocumentTitle(p Page, _ string) string {
	return strings.TrimSpace(strings.TrimSuffix(p.DocumentTitle(), " - YouTube"))
}

// --- Channel tiers ---

var channelStrategies = []strategy{
	channelFromOwnerRenderer,
	channelFromListingCard,
	channelFromStructuredData,
	channelFromMetaTag,
	channelFromWatchMetadata,
}

var subscribeSuffix = regexp.MustCompile(`(?i)\s*Subscribe.*$`)

// ExtractChannel walks the channel tiers, skipping empty and sentinel
// results, falling back to "Unknown Channel".
func ExtractChannel(p Page, videoID string) string {
	for _, s := range channelStrategies {
		v := cleanChannel(tryStrategy(s, p, videoID))
		if v != "" && v != sentinelTitle {
			return v
		}
	}
	return domain.UnknownChannel
}

func cleanChannel(name string) string {
	return strings.TrimSpace(subscribeSuffix.ReplaceAllString(name, ""))
}

// channelFromOwnerRenderer reads the watch page's owner block.
func channelFromOwnerRenderer(p Page, _ string) string {
	if v, ok := p.Text(ownerLinkSelector); ok && v != "" {
		return v
	}
	if v, ok := p.Text(ownerTextSelector); ok {
		return v
	}
	return ""
}

// channelFromListingCard reads the channel element of the listing card
// whose anchor carries this video id.
func channelFromListingCard(p Page, videoID string) string {
	if v, ok := p.CardText(anchorForVideo(videoID), cardChannelSelector); ok {
		return v
	}
	return ""
}

// videoObject is the slice of JSON-LD structured data we care about.
type videoObject struct {
	Type     string `json:"@type"`
	Keywords any    `json:"keywords"`
	Author   struct {
		Name string `json:"name"`
	} `json:"author"`
	Publisher struct {
		Name string `json:"name"`
	} `json:"publisher"`
}

func structuredVideoObjects(p Page) []videoObject {
	var objects []videoObject
	for _, raw := range p.TextAll(jsonLDSelector) {
		var obj videoObject
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			continue
		}
		if obj.Type == "VideoObject" {
			objects = append(objects, obj)
		}
	}
	return objects
}

// channelFromStructuredData reads the author or publisher name out of
// embedded JSON-LD VideoObject blocks.
func channelFromStructuredData(p Page, _ string) string {
	for _, obj := range structuredVideoObjects(p) {
		if obj.Author.Name != "" {
			return obj.Author.Name
		}
		if obj.Publisher.Name != "" {
			return obj.Publisher.Name
		}
	}
	return ""
}

// channelFromMetaTag reads the channel meta tags.
func channelFromMetaTag(p Page, _ string) string {
	if v, ok := p.Attribute(channelMetaSelector, "content"); ok {
		return v
	}
	return ""
}

// channelFromWatchMetadata scans every channel-shaped link in the watch
// metadata block for the first plausible name.
func channelFromWatchMetadata(p Page, _ string) string {
	for _, text := range p.TextAll(watchChannelScan) {
		if text != "" && text != sentinelTitle && !strings.Contains(text, "Subscribe") {
			return text
		}
	}
	return ""
}

// --- Tags ---

// ExtractTags gathers tags from meta tags, JSON-LD keywords, and
// visible hashtag links, deduplicated with insertion order preserved.
// A page without tags yields an empty, non-nil slice.
func ExtractTags(p Page) []string {
	tags := make([]string, 0)
	seen := make(map[string]struct{})
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	for _, content := range p.AttributeAll(tagMetaSelector, "content") {
		add(content)
	}
	for _, obj := range structuredVideoObjects(p) {
		switch kw := obj.Keywords.(type) {
		case []any:
			for _, k := range kw {
				if s, ok := k.(string); ok {
					add(s)
				}
			}
		case string:
			for _, k := range strings.Split(kw, ",") {
				add(k)
			}
		}
	}
	for _, text := range p.TextAll(hashtagSelector) {
		add(text)
	}
	return tags
}

// Extract runs every field's tier chain over an already-loaded page.
func Extract(p Page, videoID string) Metadata {
	return Metadata{
		VideoID:     videoID,
		Title:       ExtractTitle(p, videoID),
		ChannelName: ExtractChannel(p, videoID),
		Tags:        ExtractTags(p),
	}
}
