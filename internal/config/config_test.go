package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempConfigRoot(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("COMICSNAG_CONFIG_DIR", dir)
	return dir
}

func TestLoadMergedWithoutProfile(t *testing.T) {
	useTempConfigRoot(t)

	cfg, used, err := LoadMerged(Options{Root: "/srv/comics", ImageWorkers: 8})
	require.NoError(t, err)

	assert.Empty(t, used)
	assert.Equal(t, "/srv/comics", cfg.Root)
	assert.Equal(t, 8, cfg.ImageWorkers)
	assert.Equal(t, 1, cfg.IssueWorkers)
	assert.Equal(t, DefaultSelectors(), cfg.Selectors)
}

func TestLoadMergedIgnoreConfig(t *testing.T) {
	useTempConfigRoot(t)

	cfg, used, err := LoadMerged(Options{IgnoreConfig: true, Debug: true})
	require.NoError(t, err)

	assert.Equal(t, "(ignored config)", used)
	assert.True(t, cfg.Debug)
}

func TestProfileRoundTrip(t *testing.T) {
	useTempConfigRoot(t)

	path, err := CreateConfig("Work")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Root = "/data/comics"
	cfg.BaseURL = "https://example.test/"
	cfg.RetryBackoff = 250 * time.Millisecond
	cfg.AllowExt = []string{".JPG", " png "}
	cfg.Selectors.IssueLink = ".issue a"
	require.NoError(t, SaveYAML(cfg, path))
	require.NoError(t, SwitchConfig("Work"))

	got, used, err := LoadMerged(Options{IssueWorkers: 3})
	require.NoError(t, err)

	assert.Equal(t, path, used)
	assert.Equal(t, "/data/comics", got.Root)
	assert.Equal(t, "https://example.test", got.BaseURL)
	assert.Equal(t, "https://example.test/comic-search", got.SearchURL())
	assert.Equal(t, 250*time.Millisecond, got.RetryBackoff)
	assert.Equal(t, []string{"jpg", "png"}, got.AllowExt)
	assert.Equal(t, ".issue a", got.Selectors.IssueLink)
	assert.Equal(t, ".egb-serie", got.Selectors.SearchResult)
	assert.Equal(t, 3, got.IssueWorkers)
}

func TestLoadMergedBrokenProfile(t *testing.T) {
	useTempConfigRoot(t)

	path, err := CreateConfig("Broken")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("root: [unterminated"), 0644))
	require.NoError(t, SwitchConfig("Broken"))

	_, _, err = LoadMerged(Options{})
	assert.Error(t, err)
}

func TestListRenameRemove(t *testing.T) {
	root := useTempConfigRoot(t)

	_, err := CreateConfig("Default")
	require.NoError(t, err)
	_, err = CreateConfig("Alt")
	require.NoError(t, err)
	require.NoError(t, SwitchConfig("Alt"))

	list, err := ListConfigs()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alt", list[0].Label)
	assert.True(t, list[0].Active)

	require.NoError(t, RenameConfig("Alt", "Night"))
	label, err := CurrentLabel()
	require.NoError(t, err)
	assert.Equal(t, "Night", label)

	switched, err := RemoveConfig("Night")
	require.NoError(t, err)
	assert.True(t, switched)
	label, err = CurrentLabel()
	require.NoError(t, err)
	assert.Equal(t, "Default", label)

	_, err = RemoveConfig("Default")
	assert.Error(t, err)

	_, err = os.Stat(filepath.Join(root, "configs", "Night.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestConfigPathByLabelRejectsSeparators(t *testing.T) {
	_, err := ConfigPathByLabel("../evil")
	assert.Error(t, err)

	_, err = ConfigPathByLabel("  ")
	assert.Error(t, err)
}

func TestSwitchConfigMissing(t *testing.T) {
	useTempConfigRoot(t)

	assert.Error(t, SwitchConfig("Nope"))
}
