package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thumbvault/internal/capture"
	"thumbvault/internal/domain"
	"thumbvault/internal/export"
	"thumbvault/internal/storage"
	"thumbvault/internal/view"
)

// fakeCollector returns canned metadata instead of driving a browser.
type fakeCollector struct {
	meta capture.Metadata
	err  error
}

func (f *fakeCollector) Capture(ctx context.Context, url string) (capture.Metadata, error) {
	return f.meta, f.err
}

func setupTestServer(t *testing.T) (*Server, *httptest.Server, storage.Repository) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)

	repo, err := storage.NewBadgerRepository(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, repo.Close()) })

	exporter := export.NewPipeline(t.TempDir(), log)
	srv := New(repo, &fakeCollector{}, exporter, log)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts, repo
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	_, ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestSaveListUpdateRoundTrip(t *testing.T) {
	_, ts, _ := setupTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/thumbnails", domain.Thumbnail{
		ID:          "abc123",
		Title:       "Test",
		ChannelName: "Chan",
		Tags:        []string{"x"},
		Projects:    []string{},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/api/v1/thumbnails")
	require.NoError(t, err)
	result := decodeBody[view.Result](t, resp)
	require.Len(t, result.Thumbnails, 1)
	saved := result.Thumbnails[0]
	assert.Equal(t, "abc123", saved.ID)
	assert.Positive(t, saved.SavedAt)
	// Missing URLs are derived from the id.
	assert.Equal(t, domain.ThumbnailURL("abc123"), saved.ThumbnailUrl)
	assert.Equal(t, domain.WatchURL("abc123"), saved.Url)

	// Patch the tags; everything else, SavedAt included, stays put.
	resp = doJSON(t, http.MethodPatch, ts.URL+"/api/v1/thumbnails/abc123", map[string]any{
		"tags": []string{"x", "y"},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/thumbnails")
	require.NoError(t, err)
	result = decodeBody[view.Result](t, resp)
	require.Len(t, result.Thumbnails, 1)
	assert.Equal(t, []string{"x", "y"}, result.Thumbnails[0].Tags)
	assert.Equal(t, saved.SavedAt, result.Thumbnails[0].SavedAt)
}

func TestSaveThumbnail_RequiresID(t *testing.T) {
	_, ts, _ := setupTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/thumbnails", domain.Thumbnail{Title: "no id"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestIsSaved(t *testing.T) {
	_, ts, repo := setupTestServer(t)
	require.NoError(t, repo.SaveThumbnail(context.Background(), domain.Thumbnail{ID: "here"}))

	resp, err := http.Get(ts.URL + "/api/v1/thumbnails/here/saved")
	require.NoError(t, err)
	assert.True(t, decodeBody[map[string]bool](t, resp)["saved"])

	resp, err = http.Get(ts.URL + "/api/v1/thumbnails/gone/saved")
	require.NoError(t, err)
	assert.False(t, decodeBody[map[string]bool](t, resp)["saved"])
}

func TestListThumbnails_FilterAndSort(t *testing.T) {
	_, ts, repo := setupTestServer(t)
	ctx := context.Background()

	// Millisecond timestamps can collide across back-to-back saves,
	// which would make the date ordering assertion flaky.
	require.NoError(t, repo.SaveThumbnail(ctx, domain.Thumbnail{ID: "a", ChannelName: "Chan", Tags: []string{"vlog"}}))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, repo.SaveThumbnail(ctx, domain.Thumbnail{ID: "b", ChannelName: "Other", Tags: []string{"music"}}))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, repo.SaveThumbnail(ctx, domain.Thumbnail{ID: "c", ChannelName: "Chan", Tags: []string{"vlog"}}))

	resp, err := http.Get(ts.URL + "/api/v1/thumbnails?tag=vlog&project=all&channel=all&combined=4")
	require.NoError(t, err)
	result := decodeBody[view.Result](t, resp)

	require.Len(t, result.Thumbnails, 2)
	// Default sort is date descending, so the later save comes first.
	assert.Equal(t, "c", result.Thumbnails[0].ID)
	assert.Equal(t, "a", result.Thumbnails[1].ID)
	assert.Equal(t, view.Layout{PerRow: 2, Size: 3}, result.Layout)
	// Option lists reflect the unfiltered collection.
	assert.Equal(t, []string{"music", "vlog"}, result.AvailableTags)
	assert.Equal(t, []string{"Chan", "Other"}, result.AvailableChannels)
}

func TestBulkDelete(t *testing.T) {
	_, ts, repo := setupTestServer(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.SaveThumbnail(ctx, domain.Thumbnail{ID: id}))
	}

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/thumbnails/delete", map[string]any{
		"ids": []string{"a", "c", "missing"},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	thumbnails, err := repo.ListThumbnails(ctx)
	require.NoError(t, err)
	require.Len(t, thumbnails, 1)
	assert.Equal(t, "b", thumbnails[0].ID)
}

func TestAddTag_Dedups(t *testing.T) {
	_, ts, repo := setupTestServer(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveThumbnail(ctx, domain.Thumbnail{ID: "a", Tags: []string{"x"}}))

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/thumbnails/a/tags", map[string]string{"tag": "y"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Adding a tag that is already present changes nothing.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/thumbnails/a/tags", map[string]string{"tag": "x"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	thumbnails, err := repo.ListThumbnails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, thumbnails[0].Tags)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/thumbnails/nope/tags", map[string]string{"tag": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestProjectLifecycleAndCascade(t *testing.T) {
	_, ts, repo := setupTestServer(t)
	ctx := context.Background()

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/projects", map[string]string{"name": "Work"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	project := decodeBody[domain.Project](t, resp)
	assert.NotEmpty(t, project.ID)
	assert.Equal(t, "Work", project.Name)

	require.NoError(t, repo.SaveThumbnail(ctx, domain.Thumbnail{ID: "abc123"}))
	resp = doJSON(t, http.MethodPatch, ts.URL+"/api/v1/thumbnails/abc123", map[string]any{
		"projects": []string{project.ID},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/projects/"+project.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	projects, err := repo.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)

	thumbnails, err := repo.ListThumbnails(ctx)
	require.NoError(t, err)
	require.Len(t, thumbnails, 1)
	assert.Empty(t, thumbnails[0].Projects, "cascade must strip the deleted project id")
}

func TestDeleteTagGlobally(t *testing.T) {
	_, ts, repo := setupTestServer(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveThumbnail(ctx, domain.Thumbnail{ID: "a", Tags: []string{"x", "keep"}}))
	require.NoError(t, repo.SaveThumbnail(ctx, domain.Thumbnail{ID: "b", Tags: []string{"x"}}))

	resp := doJSON(t, http.MethodDelete, ts.URL+"/api/v1/tags/x", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	thumbnails, err := repo.ListThumbnails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, thumbnails[0].Tags)
	assert.Empty(t, thumbnails[1].Tags)
}

func TestSettingsCombinedRoundTrip(t *testing.T) {
	_, ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/settings")
	require.NoError(t, err)
	settings := decodeBody[settingsResponse](t, resp)
	// The default (perRow=3, size=5) matches no table row, so the
	// reverse lookup falls back to 3.
	assert.Equal(t, 3, settings.CombinedSize)

	// Setting combined=2 expands to perRow=4, size=2.
	resp = doJSON(t, http.MethodPatch, ts.URL+"/api/v1/settings", map[string]any{"combinedSize": 2, "darkMode": true})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/settings")
	require.NoError(t, err)
	settings = decodeBody[settingsResponse](t, resp)
	assert.True(t, settings.DarkMode)
	assert.Equal(t, 4, settings.ThumbnailsPerRow)
	assert.Equal(t, 2, settings.ThumbnailSize)
	assert.Equal(t, 2, settings.CombinedSize, "reverse lookup reconstructs the combined value")
}

func TestCapture(t *testing.T) {
	srv, ts, repo := setupTestServer(t)
	srv.collector = &fakeCollector{meta: capture.Metadata{
		VideoID:     "vid42",
		Title:       "Captured",
		ChannelName: "Chan",
		Tags:        []string{"auto"},
	}}

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/capture", map[string]string{
		"url": "https://www.youtube.com/watch?v=vid42",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	meta := decodeBody[capture.Metadata](t, resp)
	assert.Equal(t, "vid42", meta.VideoID)

	thumbnails, err := repo.ListThumbnails(context.Background())
	require.NoError(t, err)
	require.Len(t, thumbnails, 1)
	assert.Equal(t, "Captured", thumbnails[0].Title)
	assert.Equal(t, domain.ThumbnailURL("vid42"), thumbnails[0].ThumbnailUrl)
}

func TestCapture_Failure(t *testing.T) {
	srv, ts, _ := setupTestServer(t)
	srv.collector = &fakeCollector{err: errors.New("no browser")}

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/capture", map[string]string{"url": "https://youtu.be/x"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()
}

func TestExport(t *testing.T) {
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("img"))
	}))
	defer images.Close()

	_, ts, repo := setupTestServer(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveThumbnail(ctx, domain.Thumbnail{ID: "a", Title: "A", ThumbnailUrl: images.URL + "/a"}))
	require.NoError(t, repo.SaveThumbnail(ctx, domain.Thumbnail{ID: "b", Title: "B", ThumbnailUrl: images.URL + "/b"}))

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/export", map[string]any{"ids": []string{"a", "b"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decodeBody[map[string]int](t, resp)
	assert.Equal(t, 2, report["completed"])
	assert.Equal(t, 2, report["total"])
}
