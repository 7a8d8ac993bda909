package service

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/krau/fruitlens/imagenet"
)

// Classifier is the image-to-prediction pipeline. It holds no mutable state
// besides the result cache and is safe for concurrent use when its Backend is.
type Classifier struct {
	backend Backend
	classes *imagenet.ClassIndex
	opts    Options
	filter  imaging.ResampleFilter
	cache   *lru.Cache[[sha256.Size]byte, *entry]
}

type entry struct {
	ranked        []Prediction
	format        string
	width, height int
}

func New(backend Backend, classes *imagenet.ClassIndex, opts Options) (*Classifier, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if classes == nil || classes.Len() == 0 {
		return nil, errors.New("class index is empty")
	}
	if opts.ImageSize <= 0 {
		opts.ImageSize = DefaultImageSize
	}
	if opts.Layout == "" {
		opts.Layout = LayoutNCHW
	}
	if opts.Mode == "" {
		opts.Mode = ModeTorch
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	switch opts.Layout {
	case LayoutNCHW, LayoutNHWC:
	default:
		return nil, fmt.Errorf("unknown layout %q", opts.Layout)
	}
	switch opts.Mode {
	case ModeTF, ModeTorch, ModeCaffe:
	default:
		return nil, fmt.Errorf("unknown preprocess mode %q", opts.Mode)
	}
	if len(opts.Formats) == 0 {
		opts.Formats = []string{"jpeg", "png"}
	}
	filter, err := ParseResample(opts.Resample)
	if err != nil {
		return nil, err
	}

	c := &Classifier{
		backend: backend,
		classes: classes,
		opts:    opts,
		filter:  filter,
	}
	if opts.CacheSize > 0 {
		c.cache, err = lru.New[[sha256.Size]byte, *entry](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
	}
	return c, nil
}

func (c *Classifier) Classes() int {
	return c.classes.Len()
}

func (c *Classifier) ImageSize() int {
	return c.opts.ImageSize
}

// Classify decodes data, runs the network and returns the topK most likely
// classes, highest confidence first. topK above the vocabulary size is
// clamped.
func (c *Classifier) Classify(data []byte, topK int) (*Result, error) {
	if topK < 1 {
		return nil, ErrInvalidTopK
	}

	key := sha256.Sum256(data)
	e, ok := c.lookup(key)
	if !ok {
		img, format, err := Decode(data, c.opts.Formats, c.opts.AutoOrient, c.opts.MaxPixels)
		if err != nil {
			return nil, err
		}
		ranked, err := c.predict(img)
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		e = &entry{ranked: ranked, format: format, width: b.Dx(), height: b.Dy()}
		if c.cache != nil {
			c.cache.Add(key, e)
		}
	}

	topK = min(topK, len(e.ranked))
	preds := make([]Prediction, topK)
	copy(preds, e.ranked[:topK])
	return &Result{
		Predictions: preds,
		Format:      e.format,
		Width:       e.width,
		Height:      e.height,
	}, nil
}

func (c *Classifier) lookup(key [sha256.Size]byte) (*entry, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

// predict returns every class of the vocabulary ranked by confidence.
func (c *Classifier) predict(img *image.NRGBA) ([]Prediction, error) {
	start := time.Now()
	input := Preprocess(img, c.opts.ImageSize, c.filter, c.opts.Layout, c.opts.Mode)

	scores, err := c.backend.Infer(input)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if len(scores) == 0 {
		return nil, errors.New("inference returned no scores")
	}
	if c.opts.Softmax {
		scores = Softmax(scores)
	}

	order := Rank(scores)
	ranked := make([]Prediction, len(order))
	for i, idx := range order {
		class := c.classes.At(idx)
		ranked[i] = Prediction{
			Index:      idx,
			ID:         class.ID,
			Label:      class.Label,
			Confidence: clamp01(scores[idx]),
		}
	}
	slog.Debug("Classified image",
		slog.String("top", ranked[0].Label),
		slog.Float64("confidence", float64(ranked[0].Confidence)),
		slog.Duration("elapsed", time.Since(start)))
	return ranked, nil
}
