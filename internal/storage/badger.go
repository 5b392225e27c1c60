package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"thumbvault/internal/domain"
)

// Storage keys. Each collection is serialized as a single JSON value,
// matching the layout the browser extension used in its local storage
// namespace.
const (
	thumbnailsKey = "youtube_thumbnails"
	projectsKey   = "youtube_projects"
	settingsKey   = "youtube_settings"
)

// BadgerRepository implements the Repository interface using BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerRepository opens the database at the specified path and
// returns a ready repository.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.WithField("path", dbPath).Info("BadgerDB opened")

	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "repository"),
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	return nil
}

// readValue unmarshals the blob stored under key into out. A missing
// key leaves out untouched, so callers see their zero/empty value.
func readValue(txn *badger.Txn, key string, out any) error {
	item, err := txn.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, out); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", key, err)
		}
		return nil
	})
}

// writeValue marshals v and stores it under key, replacing the whole
// collection in one write.
func writeValue(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return txn.SetEntry(badger.NewEntry([]byte(key), data))
}

// SaveThumbnail upserts a thumbnail by video id. The first insertion
// stamps SavedAt; re-saving the same id replaces every other field but
// keeps the original SavedAt.
func (r *BadgerRepository) SaveThumbnail(ctx context.Context, thumb domain.Thumbnail) error {
	log := r.log.WithField("video_id", thumb.ID)

	if thumb.Projects == nil {
		thumb.Projects = []string{}
	}
	if thumb.Tags == nil {
		thumb.Tags = []string{}
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		var thumbnails []domain.Thumbnail
		if err := readValue(txn, thumbnailsKey, &thumbnails); err != nil {
			return err
		}

		replaced := false
		for i := range thumbnails {
			if thumbnails[i].ID == thumb.ID {
				thumb.SavedAt = thumbnails[i].SavedAt
				thumbnails[i] = thumb
				replaced = true
				break
			}
		}
		if !replaced {
			thumb.SavedAt = time.Now().UnixMilli()
			thumbnails = append(thumbnails, thumb)
		}

		return writeValue(txn, thumbnailsKey, thumbnails)
	})
	if err != nil {
		log.WithError(err).Error("Failed to save thumbnail")
		return fmt.Errorf("failed to save thumbnail %s: %w", thumb.ID, err)
	}

	log.Info("Thumbnail saved")
	return nil
}

// ListThumbnails returns all thumbnails in insertion order.
func (r *BadgerRepository) ListThumbnails(ctx context.Context) ([]domain.Thumbnail, error) {
	var thumbnails []domain.Thumbnail
	err := r.db.View(func(txn *badger.Txn) error {
		return readValue(txn, thumbnailsKey, &thumbnails)
	})
	if err != nil {
		r.log.WithError(err).Error("Failed to list thumbnails")
		return nil, fmt.Errorf("failed to list thumbnails: %w", err)
	}
	if thumbnails == nil {
		thumbnails = []domain.Thumbnail{}
	}
	return thumbnails, nil
}

// IsSaved reports whether the id is present in the collection.
func (r *BadgerRepository) IsSaved(ctx context.Context, id string) (bool, error) {
	thumbnails, err := r.ListThumbnails(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range thumbnails {
		if t.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// UpdateThumbnail merges a patch into an existing record. An absent id
// does nothing.
func (r *BadgerRepository) UpdateThumbnail(ctx context.Context, id string, patch ThumbnailPatch) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		var thumbnails []domain.Thumbnail
		if err := readValue(txn, thumbnailsKey, &thumbnails); err != nil {
			return err
		}

		for i := range thumbnails {
			if thumbnails[i].ID != id {
				continue
			}
			if patch.Title != nil {
				thumbnails[i].Title = *patch.Title
			}
			if patch.ChannelName != nil {
				thumbnails[i].ChannelName = *patch.ChannelName
			}
			if patch.ThumbnailUrl != nil {
				thumbnails[i].ThumbnailUrl = *patch.ThumbnailUrl
			}
			if patch.Url != nil {
				thumbnails[i].Url = *patch.Url
			}
			if patch.Tags != nil {
				thumbnails[i].Tags = *patch.Tags
			}
			if patch.Projects != nil {
				thumbnails[i].Projects = *patch.Projects
			}
			return writeValue(txn, thumbnailsKey, thumbnails)
		}
		// Unknown id: silent no-op.
		return nil
	})
	if err != nil {
		r.log.WithError(err).WithField("video_id", id).Error("Failed to update thumbnail")
		return fmt.Errorf("failed to update thumbnail %s: %w", id, err)
	}
	return nil
}

// DeleteThumbnail removes one thumbnail by id.
func (r *BadgerRepository) DeleteThumbnail(ctx context.Context, id string) error {
	return r.DeleteThumbnails(ctx, []string{id})
}

// DeleteThumbnails removes every thumbnail whose id is in ids. Ids not
// present in the collection are ignored.
func (r *BadgerRepository) DeleteThumbnails(ctx context.Context, ids []string) error {
	doomed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		var thumbnails []domain.Thumbnail
		if err := readValue(txn, thumbnailsKey, &thumbnails); err != nil {
			return err
		}

		kept := thumbnails[:0]
		for _, t := range thumbnails {
			if _, ok := doomed[t.ID]; !ok {
				kept = append(kept, t)
			}
		}
		return writeValue(txn, thumbnailsKey, kept)
	})
	if err != nil {
		r.log.WithError(err).Error("Failed to delete thumbnails")
		return fmt.Errorf("failed to delete thumbnails: %w", err)
	}

	r.log.WithField("count", len(ids)).Info("Thumbnails deleted")
	return nil
}

// DeleteTagEverywhere strips the tag from every thumbnail carrying it
// and writes the collection back once.
func (r *BadgerRepository) DeleteTagEverywhere(ctx context.Context, tag string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		var thumbnails []domain.Thumbnail
		if err := readValue(txn, thumbnailsKey, &thumbnails); err != nil {
			return err
		}

		for i := range thumbnails {
			if !thumbnails[i].HasTag(tag) {
				continue
			}
			kept := make([]string, 0, len(thumbnails[i].Tags)-1)
			for _, t := range thumbnails[i].Tags {
				if t != tag {
					kept = append(kept, t)
				}
			}
			thumbnails[i].Tags = kept
		}
		return writeValue(txn, thumbnailsKey, thumbnails)
	})
	if err != nil {
		r.log.WithError(err).WithField("tag", tag).Error("Failed to delete tag")
		return fmt.Errorf("failed to delete tag %q: %w", tag, err)
	}

	r.log.WithField("tag", tag).Info("Tag deleted everywhere")
	return nil
}

// CreateProject generates a project and appends it to the collection.
func (r *BadgerRepository) CreateProject(ctx context.Context, name, color string) (domain.Project, error) {
	project := domain.NewProject(name, color)

	err := r.db.Update(func(txn *badger.Txn) error {
		var projects []domain.Project
		if err := readValue(txn, projectsKey, &projects); err != nil {
			return err
		}
		projects = append(projects, project)
		return writeValue(txn, projectsKey, projects)
	})
	if err != nil {
		r.log.WithError(err).WithField("name", name).Error("Failed to create project")
		return domain.Project{}, fmt.Errorf("failed to create project %q: %w", name, err)
	}

	r.log.WithFields(logrus.Fields{"project_id": project.ID, "name": name}).Info("Project created")
	return project, nil
}

// ListProjects returns all projects in insertion order.
func (r *BadgerRepository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	err := r.db.View(func(txn *badger.Txn) error {
		return readValue(txn, projectsKey, &projects)
	})
	if err != nil {
		r.log.WithError(err).Error("Failed to list projects")
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, nil
}

// UpdateProject merges a patch into an existing project; ID and
// CreatedAt never change. An absent id does nothing.
func (r *BadgerRepository) UpdateProject(ctx context.Context, id string, patch ProjectPatch) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		var projects []domain.Project
		if err := readValue(txn, projectsKey, &projects); err != nil {
			return err
		}
		for i := range projects {
			if projects[i].ID != id {
				continue
			}
			if patch.Name != nil {
				projects[i].Name = *patch.Name
			}
			if patch.Color != nil {
				projects[i].Color = *patch.Color
			}
			return writeValue(txn, projectsKey, projects)
		}
		return nil
	})
	if err != nil {
		r.log.WithError(err).WithField("project_id", id).Error("Failed to update project")
		return fmt.Errorf("failed to update project %s: %w", id, err)
	}
	return nil
}

// DeleteProject removes the project, then strips its id from every
// thumbnail. The cascade is two sequential writes, not one atomic
// operation; an interruption in between leaves dangling references,
// which readers ignore.
func (r *BadgerRepository) DeleteProject(ctx context.Context, id string) error {
	log := r.log.WithField("project_id", id)

	err := r.db.Update(func(txn *badger.Txn) error {
		var projects []domain.Project
		if err := readValue(txn, projectsKey, &projects); err != nil {
			return err
		}
		kept := projects[:0]
		for _, p := range projects {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		return writeValue(txn, projectsKey, kept)
	})
	if err != nil {
		log.WithError(err).Error("Failed to delete project")
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		var thumbnails []domain.Thumbnail
		if err := readValue(txn, thumbnailsKey, &thumbnails); err != nil {
			return err
		}
		for i := range thumbnails {
			kept := thumbnails[i].Projects[:0]
			for _, pid := range thumbnails[i].Projects {
				if pid != id {
					kept = append(kept, pid)
				}
			}
			thumbnails[i].Projects = kept
		}
		return writeValue(txn, thumbnailsKey, thumbnails)
	})
	if err != nil {
		log.WithError(err).Error("Failed to cascade project delete to thumbnails")
		return fmt.Errorf("failed to cascade delete of project %s: %w", id, err)
	}

	log.Info("Project deleted")
	return nil
}

// GetSettings returns stored settings, falling back to the defaults
// when nothing has been written yet.
func (r *BadgerRepository) GetSettings(ctx context.Context) (domain.Settings, error) {
	settings := domain.DefaultSettings()
	err := r.db.View(func(txn *badger.Txn) error {
		return readValue(txn, settingsKey, &settings)
	})
	if err != nil {
		r.log.WithError(err).Error("Failed to read settings")
		return domain.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings merges the patch over current settings and writes the
// full map back.
func (r *BadgerRepository) UpdateSettings(ctx context.Context, patch SettingsPatch) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		settings := domain.DefaultSettings()
		if err := readValue(txn, settingsKey, &settings); err != nil {
			return err
		}
		if patch.DarkMode != nil {
			settings.DarkMode = *patch.DarkMode
		}
		if patch.ThumbnailSize != nil {
			settings.ThumbnailSize = *patch.ThumbnailSize
		}
		if patch.ThumbnailsPerRow != nil {
			settings.ThumbnailsPerRow = *patch.ThumbnailsPerRow
		}
		if patch.ShowTags != nil {
			settings.ShowTags = *patch.ShowTags
		}
		if patch.ShowProjects != nil {
			settings.ShowProjects = *patch.ShowProjects
		}
		return writeValue(txn, settingsKey, settings)
	})
	if err != nil {
		r.log.WithError(err).Error("Failed to update settings")
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
