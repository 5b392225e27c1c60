// Package capture derives a video's metadata from a YouTube page.
// Every field is extracted by an ordered list of heuristic tiers over a
// Page; a tier that errors or matches nothing simply yields to the next
// one, terminating at a fixed default. The collector never fails harder
// than "produced default values".
package capture

import "context"

// Metadata is the best-effort capture result for one video.
type Metadata struct {
	VideoID     string   `json:"videoId"`
	Title       string   `json:"title"`
	ChannelName string   `json:"channelName"`
	Tags        []string `json:"tags"`
}

// Page is the slice of a loaded document the extractor tiers read.
// Implementations must treat unmatched selectors as "not found", never
// as an error condition.
type Page interface {
	// Text returns the trimmed text of the first element matching the
	// selector.
	Text(selector string) (string, bool)

	// Attribute returns the value of attr on the first element
	// matching the selector.
	Attribute(selector, attr string) (string, bool)

	// TextAll returns the trimmed text of every element matching the
	// selector, in document order.
	TextAll(selector string) []string

	// AttributeAll returns attr for every element matching the
	// selector, skipping elements without it.
	AttributeAll(selector, attr string) []string

	// CardText locates an anchor matching anchorSelector, walks up to
	// its nearest listing-card container, and returns the text of the
	// first element inside it matching targetSelector.
	CardText(anchorSelector, targetSelector string) (string, bool)

	// DocumentTitle returns the document's title.
	DocumentTitle() string

	// URL returns the page's current URL.
	URL() string
}

// Collector turns a trigger URL into saved-thumbnail metadata.
type Collector interface {
	// Capture loads the URL and extracts (videoId, title, channel,
	// tags). It returns an error only when no video id can be derived
	// at all; metadata fields degrade to defaults instead of failing.
	Capture(ctx context.Context, url string) (Metadata, error)
}
