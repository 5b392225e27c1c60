package storage

import (
	"context"

	"thumbvault/internal/domain"
)

// ThumbnailPatch is a partial update for a thumbnail. Nil fields are
// left untouched; Tags and Projects replace the stored slice wholesale
// rather than merging. ID and SavedAt are not patchable.
type ThumbnailPatch struct {
	Title        *string   `json:"title,omitempty"`
	ChannelName  *string   `json:"channelName,omitempty"`
	ThumbnailUrl *string   `json:"thumbnailUrl,omitempty"`
	Url          *string   `json:"url,omitempty"`
	Tags         *[]string `json:"tags,omitempty"`
	Projects     *[]string `json:"projects,omitempty"`
}

// ProjectPatch is a partial update for a project. ID and CreatedAt are
// immutable.
type ProjectPatch struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// SettingsPatch is a partial update for the settings singleton.
type SettingsPatch struct {
	DarkMode         *bool `json:"darkMode,omitempty"`
	ThumbnailSize    *int  `json:"thumbnailSize,omitempty"`
	ThumbnailsPerRow *int  `json:"thumbnailsPerRow,omitempty"`
	ShowTags         *bool `json:"showTags,omitempty"`
	ShowProjects     *bool `json:"showProjects,omitempty"`
}

// Repository is the sole gateway to durable state. Every read returns
// either the persisted value or a well-defined empty/default value.
// Writes follow read-modify-write over whole collections; overlapping
// writers race with last-write-wins, which is accepted for single-user
// interactive use.
type Repository interface {
	// SaveThumbnail upserts by id. An existing record keeps its
	// original SavedAt; a new record gets SavedAt = now.
	SaveThumbnail(ctx context.Context, thumb domain.Thumbnail) error

	// ListThumbnails returns the full collection in insertion order as
	// a fresh copy. Mutating the result has no effect on stored state.
	ListThumbnails(ctx context.Context) ([]domain.Thumbnail, error)

	// IsSaved reports whether a thumbnail with the given id exists.
	IsSaved(ctx context.Context, id string) (bool, error)

	// UpdateThumbnail applies a shallow patch. A missing id is a
	// silent no-op, not an error.
	UpdateThumbnail(ctx context.Context, id string, patch ThumbnailPatch) error

	// DeleteThumbnail removes one record; absent ids are ignored.
	DeleteThumbnail(ctx context.Context, id string) error

	// DeleteThumbnails removes every matching record; absent ids are
	// ignored.
	DeleteThumbnails(ctx context.Context, ids []string) error

	// DeleteTagEverywhere removes the tag from every thumbnail that
	// carries it, writing the collection back once.
	DeleteTagEverywhere(ctx context.Context, tag string) error

	// CreateProject creates and persists a project with a generated id.
	CreateProject(ctx context.Context, name, color string) (domain.Project, error)

	ListProjects(ctx context.Context) ([]domain.Project, error)

	// UpdateProject applies a shallow patch; missing id is a no-op.
	UpdateProject(ctx context.Context, id string, patch ProjectPatch) error

	// DeleteProject removes the project and then strips its id from
	// every thumbnail's Projects set. The two writes are sequential,
	// not atomic; readers tolerate a dangling id if the second write
	// never lands.
	DeleteProject(ctx context.Context, id string) error

	// GetSettings returns stored settings merged over the defaults.
	GetSettings(ctx context.Context) (domain.Settings, error)

	// UpdateSettings merges the patch into current settings.
	UpdateSettings(ctx context.Context, patch SettingsPatch) error

	// Close gracefully shuts down the repository.
	Close() error
}
