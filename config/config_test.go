package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
port = "9000"
preprocess = "tf"
layout = "nhwc"
softmax = false
formats = ["jpeg", "png", "webp"]
workers = 4
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", c.Port)
	assert.Equal(t, "tf", c.Preprocess)
	assert.Equal(t, "nhwc", c.Layout)
	assert.False(t, c.Softmax)
	assert.Equal(t, []string{"jpeg", "png", "webp"}, c.Formats)
	assert.Equal(t, 4, c.Workers)
	// untouched keys keep their defaults
	assert.Equal(t, "bicubic", c.Resample)
	assert.Equal(t, "models", c.ModelDir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"layout":     `layout = "hwc"`,
		"preprocess": `preprocess = "inception"`,
		"resample":   `resample = "box"`,
		"format":     `formats = ["gif"]`,
		"workers":    `workers = 0`,
		"upload":     `max_upload_mb = 0`,
		"pixels":     `max_pixels = 0`,
		"syntax":     `port = `,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
			assert.False(t, IsNotFound(err))
		})
	}
}
