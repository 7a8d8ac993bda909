package service

import (
	"errors"
	"fmt"

	"github.com/krau/fruitlens/imagenet"
)

const DefaultImageSize = 224

// DefaultMaxPixels matches Pillow's MAX_IMAGE_PIXELS.
const DefaultMaxPixels = 89478485

type Layout string

const (
	LayoutNCHW Layout = "nchw"
	LayoutNHWC Layout = "nhwc"
)

// Mode selects the per-channel transform the network was trained with.
type Mode string

const (
	ModeTF    Mode = "tf"    // scale to [-1, 1]
	ModeTorch Mode = "torch" // scale to [0, 1], then ImageNet mean/std
	ModeCaffe Mode = "caffe" // BGR, ImageNet mean subtracted, no scaling
)

var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
	CaffeMeanBGR = [3]float32{103.939, 116.779, 123.68}
)

var (
	ErrDecode            = errors.New("invalid or corrupted image")
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", ErrDecode)
	ErrTooManyPixels     = fmt.Errorf("%w: image dimensions too large", ErrDecode)
	ErrInvalidTopK       = errors.New("top_k must be positive")
)

// Backend runs the network on a preprocessed tensor and returns one score
// per class.
type Backend interface {
	Infer(input []float32) ([]float32, error)
}

type Prediction struct {
	Index      int     `json:"index"`
	ID         string  `json:"id,omitempty"`
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

func (p Prediction) DisplayLabel() string {
	return imagenet.DisplayLabel(p.Label)
}

func (p Prediction) Percent() float32 {
	return p.Confidence * 100
}

type Result struct {
	Predictions []Prediction `json:"predictions"`
	Format      string       `json:"format"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
}

type Options struct {
	ImageSize  int
	Layout     Layout
	Mode       Mode
	Resample   string
	Softmax    bool
	AutoOrient bool
	Formats    []string
	CacheSize  int
	MaxPixels  int
}
