// Package view computes the rendering-ready derived views over the
// thumbnail collection: filtering, sorting, the combined-size layout
// mapping, and the filter-bar option lists. Everything here is a pure
// function with no storage access.
package view

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"thumbvault/internal/domain"
)

// FilterAll disables a filter dimension.
const FilterAll = "all"

// SortMode selects the ordering of the derived view.
type SortMode string

const (
	SortDate    SortMode = "date"
	SortChannel SortMode = "channel"
	SortTitle   SortMode = "title"
)

// Selection holds the active filter choices. An empty value or
// FilterAll means "no constraint" on that dimension; the dimensions
// compose as logical AND.
type Selection struct {
	Tag     string
	Project string
	Channel string
}

// Layout is the grid shape expanded from the combined-size control.
type Layout struct {
	PerRow int `json:"perRow"`
	Size   int `json:"size"`
}

// combinedTable maps the single slider value to a grid shape.
var combinedTable = map[int]Layout{
	1: {PerRow: 6, Size: 1},
	2: {PerRow: 4, Size: 2},
	3: {PerRow: 3, Size: 3},
	4: {PerRow: 2, Size: 3},
	5: {PerRow: 1, Size: 5},
}

// defaultCombined is used when a stored layout matches no table row.
const defaultCombined = 3

// LayoutForCombined expands a combined-size value into a grid shape.
// Out-of-range values fall back to the middle layout.
func LayoutForCombined(combined int) Layout {
	if l, ok := combinedTable[combined]; ok {
		return l
	}
	return combinedTable[defaultCombined]
}

// CombinedForLayout reconstructs the combined value from a stored
// (perRow, size) pair, e.g. settings saved before the single-slider
// scheme. Linear search over the table; no match falls back to 3.
func CombinedForLayout(layout Layout) int {
	for combined := 1; combined <= 5; combined++ {
		if combinedTable[combined] == layout {
			return combined
		}
	}
	return defaultCombined
}

func active(choice string) bool {
	return choice != "" && choice != FilterAll
}

// Filter returns the thumbnails passing every active dimension of the
// selection, preserving relative order. Tag and project membership are
// exact, case-sensitive matches; a thumbnail without a channel name
// belongs to the "Unknown Channel" bucket.
func Filter(thumbnails []domain.Thumbnail, sel Selection) []domain.Thumbnail {
	out := make([]domain.Thumbnail, 0, len(thumbnails))
	for _, t := range thumbnails {
		if active(sel.Tag) && !t.HasTag(sel.Tag) {
			continue
		}
		if active(sel.Project) && !containsString(t.Projects, sel.Project) {
			continue
		}
		if active(sel.Channel) && t.DisplayChannel() != sel.Channel {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Sort returns a sorted copy. Date sorts descending by SavedAt.
// Channel and title sort ascending, case-insensitively, with ties
// broken by descending SavedAt so the result is deterministic.
func Sort(thumbnails []domain.Thumbnail, mode SortMode) []domain.Thumbnail {
	out := make([]domain.Thumbnail, len(thumbnails))
	copy(out, thumbnails)

	// A collator keeps internal scratch state, so it is per call
	// rather than shared across goroutines.
	collator := collate.New(language.Und)

	sort.SliceStable(out, func(i, j int) bool {
		switch mode {
		case SortChannel:
			a := strings.ToLower(out[i].DisplayChannel())
			b := strings.ToLower(out[j].DisplayChannel())
			if a != b {
				return collator.CompareString(a, b) < 0
			}
		case SortTitle:
			a := strings.ToLower(out[i].Title)
			b := strings.ToLower(out[j].Title)
			if a != b {
				return collator.CompareString(a, b) < 0
			}
		}
		return out[i].SavedAt > out[j].SavedAt
	})
	return out
}

// AvailableTags returns the deduplicated union of tags across the full
// unfiltered collection, sorted ascending. The filter bar is populated
// from the unfiltered set so a user can always navigate back out of a
// narrow filter.
func AvailableTags(thumbnails []domain.Thumbnail) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0)
	for _, t := range thumbnails {
		for _, tag := range t.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// AvailableChannels returns the deduplicated channel names across the
// full unfiltered collection, with empty names bucketed under
// "Unknown Channel", sorted ascending.
func AvailableChannels(thumbnails []domain.Thumbnail) []string {
	seen := make(map[string]struct{})
	channels := make([]string, 0)
	for _, t := range thumbnails {
		name := t.DisplayChannel()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		channels = append(channels, name)
	}
	sort.Strings(channels)
	return channels
}

// Rows splits an ordered sequence into grid rows of perRow items, the
// index-to-grid mapping the viewer renders. A non-positive perRow is
// treated as the default layout's row width.
func Rows(thumbnails []domain.Thumbnail, perRow int) [][]domain.Thumbnail {
	if perRow <= 0 {
		perRow = combinedTable[defaultCombined].PerRow
	}
	rows := make([][]domain.Thumbnail, 0, (len(thumbnails)+perRow-1)/perRow)
	for start := 0; start < len(thumbnails); start += perRow {
		end := start + perRow
		if end > len(thumbnails) {
			end = len(thumbnails)
		}
		rows = append(rows, thumbnails[start:end])
	}
	return rows
}

// Result is a rendering-ready view: the filtered and sorted sequence,
// the expanded layout, and the filter-bar option lists.
type Result struct {
	Thumbnails        []domain.Thumbnail `json:"thumbnails"`
	Layout            Layout             `json:"layout"`
	AvailableTags     []string           `json:"availableTags"`
	AvailableChannels []string           `json:"availableChannels"`
}

// Compute runs the full derivation over the unfiltered collection.
func Compute(thumbnails []domain.Thumbnail, sel Selection, mode SortMode, combined int) Result {
	return Result{
		Thumbnails:        Sort(Filter(thumbnails, sel), mode),
		Layout:            LayoutForCombined(combined),
		AvailableTags:     AvailableTags(thumbnails),
		AvailableChannels: AvailableChannels(thumbnails),
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
