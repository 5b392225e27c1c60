package capture

import (
	"net/url"
	"regexp"
)

// videoIDPattern matches the id in the URL shapes a user can click:
// watch links, short links, embeds, and shorts.
var videoIDPattern = regexp.MustCompile(`(?:youtube\.com/watch\?(?:[^#\s]*&)?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/shorts/)([^&\n?#/\s]+)`)

// hrefIDPattern pulls the id out of a raw href's query string.
var hrefIDPattern = regexp.MustCompile(`[?&]v=([^&]+)`)

// VideoIDFromURL extracts a video id from a single URL, or "" when the
// URL encodes none.
func VideoIDFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	if m := videoIDPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	// Fall back to a plain v= query parameter.
	if u, err := url.Parse(raw); err == nil {
		if v := u.Query().Get("v"); v != "" {
			return v
		}
	}
	return ""
}

// ExtractVideoID resolves the video id for a trigger, trying in order:
// the clicked link URL, the current page URL, then a DOM scan for the
// first watch link on the page. Returns "" when every tier misses.
func ExtractVideoID(linkURL, pageURL string, page Page) string {
	if id := VideoIDFromURL(linkURL); id != "" {
		return id
	}
	if id := VideoIDFromURL(pageURL); id != "" {
		return id
	}
	if page != nil {
		for _, href := range page.AttributeAll(`a[href*="/watch?v="]`, "href") {
			if m := hrefIDPattern.FindStringSubmatch(href); m != nil {
				return m[1]
			}
		}
	}
	return ""
}
