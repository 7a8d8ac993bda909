package onnx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func TestResolveInput(t *testing.T) {
	cases := []struct {
		name   string
		dims   ort.Shape
		layout string
		size   int
		want   string
		wantSz int
	}{
		{"torch export", ort.NewShape(-1, 3, 224, 224), "auto", 0, "nchw", 224},
		{"keras export", ort.NewShape(-1, 224, 224, 3), "auto", 0, "nhwc", 224},
		{"dynamic spatial", ort.NewShape(-1, 3, -1, -1), "auto", 0, "nchw", 224},
		{"explicit size", ort.NewShape(1, 3, -1, -1), "nchw", 160, "nchw", 160},
		{"matching size", ort.NewShape(1, 3, 224, 224), "auto", 224, "nchw", 224},
		{"explicit layout", ort.NewShape(1, 96, 96, 3), "nhwc", 0, "nhwc", 96},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			layout, size, err := resolveInput(c.dims, c.layout, c.size)
			require.NoError(t, err)
			assert.Equal(t, c.want, layout)
			assert.Equal(t, c.wantSz, size)
		})
	}
}

func TestResolveInputErrors(t *testing.T) {
	_, _, err := resolveInput(ort.NewShape(1, 1000), "auto", 0)
	assert.Error(t, err)

	_, _, err = resolveInput(ort.NewShape(1, 1, 28, 28), "auto", 0)
	assert.Error(t, err)

	_, _, err = resolveInput(ort.NewShape(1, 3, 224, 192), "nchw", 0)
	assert.Error(t, err)

	// a fixed model size cannot be overridden
	_, _, err = resolveInput(ort.NewShape(1, 3, 224, 224), "auto", 160)
	assert.Error(t, err)
}

func TestResolveClasses(t *testing.T) {
	n, err := resolveClasses(ort.NewShape(-1, 1000), 0)
	require.NoError(t, err)
	assert.Equal(t, 1000, n)

	n, err = resolveClasses(ort.NewShape(-1, -1), 1001)
	require.NoError(t, err)
	assert.Equal(t, 1001, n)

	_, err = resolveClasses(ort.NewShape(-1, -1), 0)
	assert.Error(t, err)
}

func TestInputShape(t *testing.T) {
	assert.Equal(t, ort.NewShape(1, 3, 224, 224), inputShape("nchw", 224))
	assert.Equal(t, ort.NewShape(1, 224, 224, 3), inputShape("nhwc", 224))
}

func TestLibPathConfigured(t *testing.T) {
	path, err := LibPath("/opt/ort/libonnxruntime.so")
	require.NoError(t, err)
	assert.Equal(t, "/opt/ort/libonnxruntime.so", path)
}

func TestEnsureFileDownloadsOnce(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("weights"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "models", "model.onnx")
	require.NoError(t, EnsureFile(context.Background(), srv.URL, path))
	require.NoError(t, EnsureFile(context.Background(), srv.URL, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
	assert.Equal(t, 1, hits)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEnsureFileErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	err := EnsureFile(context.Background(), srv.URL, filepath.Join(dir, "model.onnx"))
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "model.onnx"))
	assert.True(t, os.IsNotExist(statErr))

	err = EnsureFile(context.Background(), "", filepath.Join(dir, "labels.json"))
	assert.Error(t, err)
}
