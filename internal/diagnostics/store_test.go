package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	url        string
	html       string
	contentErr error
	shotErr    error
}

func (f fakeSource) URL() string { return f.url }

func (f fakeSource) Content() (string, error) { return f.html, f.contentErr }

func (f fakeSource) Screenshot(path string) error {
	if f.shotErr != nil {
		return f.shotErr
	}
	return os.WriteFile(path, []byte("png"), 0o644)
}

func TestRef(t *testing.T) {
	assert.Equal(t, "job-42_3", Ref("job-42", 3))
	assert.Equal(t, "amazon_eg_dp_1", Ref("amazon.eg/dp", 1))
	assert.Equal(t, "snapshot_2", Ref("", 2))
}

func TestCapture_WritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, true, nil)
	require.NoError(t, err)

	snap, err := store.Capture("req1", 2, fakeSource{url: "https://www.amazon.eg/dp/X", html: "<html>ok</html>"})
	require.NoError(t, err)

	assert.Equal(t, "req1_2", snap.Ref)
	assert.Equal(t, filepath.Join(dir, "req1_2.html"), snap.HTMLPath)
	assert.Equal(t, filepath.Join(dir, "req1_2.png"), snap.ScreenshotPath)

	html, err := os.ReadFile(snap.HTMLPath)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(html))
	assert.FileExists(t, filepath.Join(dir, "req1_2.json"))
	assert.NoFileExists(t, filepath.Join(dir, "req1_2.html.tmp"))
}

func TestCapture_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, true, nil)
	require.NoError(t, err)

	snap, err := store.Capture("req", 1, fakeSource{html: "<html></html>", shotErr: errors.New("page crashed")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page crashed")
	assert.NotEmpty(t, snap.HTMLPath)
	assert.Empty(t, snap.ScreenshotPath)
}

func TestCapture_ScreenshotsDisabled(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, false, nil)
	require.NoError(t, err)

	snap, err := store.Capture("req", 1, fakeSource{html: "x", shotErr: errors.New("unused")})
	require.NoError(t, err)
	assert.Empty(t, snap.ScreenshotPath)
	assert.NoFileExists(t, filepath.Join(dir, "req_1.png"))
}

func TestNewStore_RequiresDir(t *testing.T) {
	_, err := NewStore("", false, nil)
	assert.Error(t, err)
}

func TestJanitor_Prune(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old_1.html")
	fresh := filepath.Join(dir, "new_1.html")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))
	require.NoError(t, os.Chtimes(other, stale, stale))

	j := NewJanitor(dir, 24*time.Hour, "@every 1h", nil)
	removed, err := j.Prune()
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}

func TestJanitor_InvalidSchedule(t *testing.T) {
	j := NewJanitor(t.TempDir(), time.Hour, "not a schedule", nil)
	assert.Error(t, j.Start(t.Context()))
}
