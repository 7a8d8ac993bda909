package server

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/krau/fruitlens/config"
	"github.com/krau/fruitlens/imagenet"
	"github.com/krau/fruitlens/onnx"
	"github.com/krau/fruitlens/service"
)

// LoadClassifier fetches missing model files, starts ONNX Runtime and builds
// the classifier. The returned release func closes the sessions and the
// runtime environment.
func LoadClassifier(ctx context.Context, cfg config.Config) (*service.Classifier, func(), error) {
	onnxPath := filepath.Join(cfg.ModelDir, cfg.ModelFileName)
	labelsPath := filepath.Join(cfg.ModelDir, cfg.LabelsFileName)

	if err := onnx.EnsureFile(ctx, cfg.ModelUrl, onnxPath); err != nil {
		return nil, nil, fmt.Errorf("failed to fetch model: %w", err)
	}
	if err := onnx.EnsureFile(ctx, cfg.LabelsUrl, labelsPath); err != nil {
		return nil, nil, fmt.Errorf("failed to fetch labels: %w", err)
	}
	classes, err := imagenet.LoadClassIndex(labelsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read labels: %w", err)
	}

	if err := onnx.Init(cfg.Libonnx); err != nil {
		return nil, nil, err
	}
	pool, err := onnx.NewPool(onnx.PoolConfig{
		ModelPath: onnxPath,
		Workers:   cfg.Workers,
		ImageSize: cfg.ImageSize,
		Layout:    cfg.Layout,
		Classes:   classes.Len(),
	})
	if err != nil {
		onnx.Shutdown()
		return nil, nil, err
	}
	release := func() {
		pool.Close()
		onnx.Shutdown()
	}
	if pool.Classes != classes.Len() {
		release()
		return nil, nil, fmt.Errorf("model has %d outputs but %s lists %d classes", pool.Classes, labelsPath, classes.Len())
	}

	clf, err := service.New(pool, classes, service.Options{
		ImageSize:  pool.Input.ImageSize,
		Layout:     service.Layout(pool.Input.Layout),
		Mode:       service.Mode(cfg.Preprocess),
		Resample:   cfg.Resample,
		Softmax:    cfg.Softmax,
		AutoOrient: cfg.AutoOrient,
		Formats:    cfg.Formats,
		CacheSize:  cfg.CacheSize,
		MaxPixels:  cfg.MaxPixels,
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	return clf, release, nil
}
