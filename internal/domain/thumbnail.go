package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fallback values used whenever metadata extraction comes up empty.
const (
	DefaultTitle   = "Untitled Video"
	UnknownChannel = "Unknown Channel"
)

// Thumbnail is a saved YouTube video thumbnail with its metadata.
type Thumbnail struct {
	// ID is the YouTube video id and acts as the primary key:
	// the store keeps at most one record per id.
	ID string `json:"id"`

	// Title and ChannelName are best-effort scraped values. The store
	// does not require them to be non-empty; readers substitute
	// DefaultTitle / UnknownChannel when they are.
	Title       string `json:"title"`
	ChannelName string `json:"channelName"`

	// ThumbnailUrl points at the remote image, Url at the watch page.
	// Neither is validated by the store.
	ThumbnailUrl string `json:"thumbnailUrl"`
	Url          string `json:"url"`

	// Tags preserves insertion order. Duplicates are only prevented by
	// the add-tag path; bulk writes store what they are given.
	Tags []string `json:"tags"`

	// Projects holds project ids this thumbnail belongs to. Dangling
	// ids (project deleted mid-cascade) are ignored by readers.
	Projects []string `json:"projects"`

	// SavedAt is set once on first insertion (milliseconds since
	// epoch) and survives re-saves of the same id.
	SavedAt int64 `json:"savedAt"`
}

// Project groups thumbnails under a user-chosen name.
type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// Settings is the singleton display configuration.
type Settings struct {
	DarkMode         bool `json:"darkMode"`
	ThumbnailSize    int  `json:"thumbnailSize"`    // 1-5
	ThumbnailsPerRow int  `json:"thumbnailsPerRow"` // 1-6
	ShowTags         bool `json:"showTags"`
	ShowProjects     bool `json:"showProjects"`
}

// DefaultSettings returns the values assumed when a key was never
// written. There is no schema versioning; absent keys simply default.
func DefaultSettings() Settings {
	return Settings{
		DarkMode:         false,
		ThumbnailSize:    5,
		ThumbnailsPerRow: 3,
		ShowTags:         true,
		ShowProjects:     true,
	}
}

// NewProject creates a project with a generated id. Uniqueness is
// probabilistic (timestamp plus random suffix), which is fine at the
// intended scale.
func NewProject(name, color string) Project {
	now := time.Now().UnixMilli()
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return Project{
		ID:        fmt.Sprintf("project_%d_%s", now, suffix),
		Name:      name,
		Color:     color,
		CreatedAt: now,
	}
}

// ThumbnailURL builds the remote image URL for a video id using the
// img.youtube.com convention.
func ThumbnailURL(videoID string) string {
	return fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", videoID)
}

// WatchURL builds the canonical watch-page URL for a video id.
func WatchURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}

// DisplayTitle returns the title or the fixed default when empty.
func (t Thumbnail) DisplayTitle() string {
	if strings.TrimSpace(t.Title) == "" {
		return DefaultTitle
	}
	return t.Title
}

// DisplayChannel returns the channel name or the fixed default when empty.
func (t Thumbnail) DisplayChannel() string {
	if strings.TrimSpace(t.ChannelName) == "" {
		return UnknownChannel
	}
	return t.ChannelName
}

// HasTag reports whether tag is already present (exact match).
func (t Thumbnail) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}
