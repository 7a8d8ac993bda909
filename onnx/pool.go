package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ErrClosed = errors.New("onnx: pool closed")

const defaultImageSize = 224

type PoolConfig struct {
	ModelPath string
	Workers   int
	// ImageSize sets the spatial size when the model's height and width are
	// dynamic. With a fixed model size it must match or be 0.
	ImageSize int
	// Layout is "nchw", "nhwc" or "auto".
	Layout string
	// Classes is used when the model's output size is dynamic.
	Classes int
}

// Input describes the tensor the model expects, after resolving "auto" and
// dynamic dimensions.
type Input struct {
	Name      string
	Layout    string
	ImageSize int
}

type session struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *session) destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// Pool owns a fixed set of sessions over the same model. An AdvancedSession
// is bound to its tensors, so each one serves a single inference at a time.
type Pool struct {
	Input   Input
	Output  string
	Classes int

	sessions chan *session
	all      []*session
	mu       sync.RWMutex
	closed   bool
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.New("model has no inputs or outputs")
	}

	layout, size, err := resolveInput(inputs[0].Dimensions, cfg.Layout, cfg.ImageSize)
	if err != nil {
		return nil, err
	}
	classes, err := resolveClasses(outputs[0].Dimensions, cfg.Classes)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		Input:   Input{Name: inputs[0].Name, Layout: layout, ImageSize: size},
		Output:  outputs[0].Name,
		Classes: classes,
	}
	workers := max(cfg.Workers, 1)
	p.sessions = make(chan *session, workers)
	for range workers {
		s, err := p.newSession(cfg.ModelPath)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.all = append(p.all, s)
		p.sessions <- s
	}

	slog.Info("Loaded model",
		slog.String("path", cfg.ModelPath),
		slog.String("input", p.Input.Name),
		slog.String("layout", layout),
		slog.Int("size", size),
		slog.Int("classes", classes),
		slog.Int("workers", workers))
	return p, nil
}

func (p *Pool) newSession(modelPath string) (*session, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()

	s := &session{}
	s.input, err = ort.NewEmptyTensor[float32](inputShape(p.Input.Layout, p.Input.ImageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	s.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(p.Classes)))
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	s.session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{p.Input.Name},
		[]string{p.Output},
		[]ort.Value{s.input},
		[]ort.Value{s.output},
		opts,
	)
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create ONNX Runtime session: %w", err)
	}
	return s, nil
}

// Infer runs one forward pass. It blocks while every session is busy.
func (p *Pool) Infer(input []float32) ([]float32, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}

	s := <-p.sessions
	defer func() { p.sessions <- s }()

	dst := s.input.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("input has %d values, model expects %d", len(input), len(dst))
	}
	copy(dst, input)
	if err := s.session.Run(); err != nil {
		return nil, err
	}

	out := make([]float32, p.Classes)
	copy(out, s.output.GetData())
	return out, nil
}

// Close waits for running inferences and releases every session.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, s := range p.all {
		s.destroy()
	}
}

func inputShape(layout string, size int) ort.Shape {
	if layout == "nhwc" {
		return ort.NewShape(1, int64(size), int64(size), 3)
	}
	return ort.NewShape(1, 3, int64(size), int64(size))
}

// resolveInput works out layout and spatial size from a declared input shape
// such as [-1 3 224 224] or [1 224 224 3].
func resolveInput(dims ort.Shape, layout string, size int) (string, int, error) {
	if len(dims) != 4 {
		return "", 0, fmt.Errorf("expected a 4-D image input, got shape %v", dims)
	}
	if layout == "" || layout == "auto" {
		switch {
		case dims[1] == 3:
			layout = "nchw"
		case dims[3] == 3:
			layout = "nhwc"
		default:
			return "", 0, fmt.Errorf("cannot infer layout from input shape %v", dims)
		}
	}

	var h, w int64
	switch layout {
	case "nchw":
		h, w = dims[2], dims[3]
	case "nhwc":
		h, w = dims[1], dims[2]
	default:
		return "", 0, fmt.Errorf("unknown layout %q", layout)
	}

	if h > 0 && w > 0 {
		if h != w {
			return "", 0, fmt.Errorf("non-square model input %dx%d is not supported", w, h)
		}
		if size > 0 && int64(size) != h {
			return "", 0, fmt.Errorf("image_size %d conflicts with model input %dx%d", size, w, h)
		}
		return layout, int(h), nil
	}
	if size > 0 {
		return layout, size, nil
	}
	return layout, defaultImageSize, nil
}

func resolveClasses(dims ort.Shape, fallback int) (int, error) {
	if len(dims) > 0 && dims[len(dims)-1] > 0 {
		return int(dims[len(dims)-1]), nil
	}
	if fallback > 0 {
		return fallback, nil
	}
	return 0, fmt.Errorf("cannot infer class count from output shape %v", dims)
}
