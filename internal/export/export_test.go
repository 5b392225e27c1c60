package export

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func newTestPipeline(t *testing.T, dir string) *Pipeline {
	t.Helper()
	p := NewPipeline(dir, testLogger())
	p.delay = time.Millisecond // keep pacing out of test runtime
	return p
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "My_Video__2024_abc123.jpg", Filename("My Video: 2024", "abc123"))

	// Titles are truncated to 50 characters before the id suffix.
	long := strings.Repeat("a", 80)
	name := Filename(long, "abc123")
	assert.Equal(t, strings.Repeat("a", 50)+"_abc123.jpg", name)

	assert.Equal(t, "_abc123.jpg", Filename("", "abc123"))
}

func TestDownloadAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes-for-" + r.URL.Path))
	}))
	defer server.Close()

	dir := t.TempDir()
	p := newTestPipeline(t, dir)

	items := []Item{
		{URL: server.URL + "/a", Title: "First", ID: "a1"},
		{URL: server.URL + "/b", Title: "Second", ID: "b2"},
	}

	var progress [][2]int
	err := p.DownloadAll(context.Background(), items, func(current, total int) {
		progress = append(progress, [2]int{current, total})
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, progress)

	data, err := os.ReadFile(filepath.Join(dir, "First_a1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "image-bytes-for-/a", string(data))

	_, err = os.Stat(filepath.Join(dir, "Second_b2.jpg"))
	assert.NoError(t, err)
}

func TestDownloadAll_FailedItemIsSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	dir := t.TempDir()
	p := newTestPipeline(t, dir)

	items := []Item{
		{URL: server.URL + "/one", Title: "One", ID: "1"},
		{URL: server.URL + "/broken", Title: "Broken", ID: "2"},
		{URL: server.URL + "/three", Title: "Three", ID: "3"},
	}

	var progress [][2]int
	err := p.DownloadAll(context.Background(), items, func(current, total int) {
		progress = append(progress, [2]int{current, total})
	})

	// The run resolves despite the middle failure, with progress
	// reported for items 1 and 3 only.
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 3}, {3, 3}}, progress)

	_, err = os.Stat(filepath.Join(dir, "One_1.jpg"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "Broken_2.jpg"))
	assert.True(t, os.IsNotExist(err), "failed item should leave no file behind")
	_, err = os.Stat(filepath.Join(dir, "Three_3.jpg"))
	assert.NoError(t, err)
}

func TestDownloadAll_NoItems(t *testing.T) {
	p := newTestPipeline(t, t.TempDir())
	err := p.DownloadAll(context.Background(), nil, nil)
	assert.NoError(t, err)
}

func TestDownloadAll_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, t.TempDir())
	err := p.DownloadAll(ctx, []Item{{URL: server.URL, Title: "T", ID: "1"}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
