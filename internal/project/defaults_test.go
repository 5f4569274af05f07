package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glitchls/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFindConfigFileWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "tech = \"puppet\"\n")
	nested := filepath.Join(root, "modules", "web", "manifests")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	path, ok, err := FindConfigFile(nested)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, FileName), path)

	_, ok, err = FindConfigFile(t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadDefaultsOnlyDefinedKeys(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, FileName)
	writeFile(t, path, "enable = false\nsmells = [\"security\", \"design\"]\n")

	o, err := LoadDefaults(path)
	require.NoError(t, err)
	require.NotNil(t, o.Enable)
	assert.False(t, *o.Enable)
	assert.Equal(t, []string{"security", "design"}, o.Smells)
	assert.Nil(t, o.Tech)
	assert.Nil(t, o.ConfigurationPath)
	assert.Nil(t, o.OutputFormat)
}

func TestLoadDefaultsRelativeConfigPath(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, FileName)
	writeFile(t, path, "configuration_path = \"configs/strict.ini\"\ntech = \" ansible \"\noutput_format = \"csv\"\n")

	o, err := LoadDefaults(path)
	require.NoError(t, err)
	require.NotNil(t, o.ConfigurationPath)
	assert.Equal(t, filepath.Join(root, "configs", "strict.ini"), *o.ConfigurationPath)
	require.NotNil(t, o.Tech)
	assert.Equal(t, "ansible", *o.Tech)

	snap := config.Default().Apply(o)
	assert.Equal(t, config.FormatCSV, snap.OutputFormat)
}

func TestLoadDefaultsRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, "smelss = [\"security\"]\n")

	_, err := LoadDefaults(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smelss")
}

func TestDefaultsForWithoutFile(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "site.yml")

	path, o, err := DefaultsFor(doc)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, config.Overrides{}, o)
}
