// Package servicetest provides a deterministic stand-in for the ONNX network
// so the pipeline and HTTP layers can be tested without ONNX Runtime.
package servicetest

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"sync/atomic"

	"github.com/krau/fruitlens/imagenet"
)

type Fruit struct {
	imagenet.Class
	Color color.NRGBA
}

// Fruits is a tiny vocabulary where each class is identified by its typical
// color.
var Fruits = []Fruit{
	{imagenet.Class{ID: "n07753592", Label: "banana"}, color.NRGBA{250, 225, 55, 255}},
	{imagenet.Class{ID: "n07742313", Label: "Granny_Smith"}, color.NRGBA{120, 200, 60, 255}},
	{imagenet.Class{ID: "n07745940", Label: "strawberry"}, color.NRGBA{210, 30, 40, 255}},
	{imagenet.Class{ID: "n07747607", Label: "orange"}, color.NRGBA{250, 140, 20, 255}},
	{imagenet.Class{ID: "n07749582", Label: "lemon"}, color.NRGBA{240, 240, 110, 255}},
	{imagenet.Class{ID: "n07753113", Label: "fig"}, color.NRGBA{90, 40, 80, 255}},
	{imagenet.Class{ID: "n07753275", Label: "pineapple"}, color.NRGBA{200, 160, 70, 255}},
	{imagenet.Class{ID: "n07754684", Label: "jackfruit"}, color.NRGBA{160, 170, 60, 255}},
	{imagenet.Class{ID: "n07760859", Label: "custard_apple"}, color.NRGBA{150, 190, 120, 255}},
	{imagenet.Class{ID: "n07768694", Label: "pomegranate"}, color.NRGBA{150, 20, 50, 255}},
	{imagenet.Class{ID: "n07720875", Label: "bell_pepper"}, color.NRGBA{230, 50, 20, 255}},
	{imagenet.Class{ID: "n07714990", Label: "broccoli"}, color.NRGBA{40, 110, 40, 255}},
}

func ClassIndex() *imagenet.ClassIndex {
	classes := make([]imagenet.Class, len(Fruits))
	for i, f := range Fruits {
		classes[i] = f.Class
	}
	return imagenet.NewClassIndex(classes)
}

// Backend expects NCHW input in "tf" mode and scores each class by how close
// the mean image color is to the class color. Scores are logits.
type Backend struct {
	calls atomic.Int64
}

// Calls reports how many times Infer ran.
func (b *Backend) Calls() int {
	return int(b.calls.Load())
}

func (b *Backend) Infer(input []float32) ([]float32, error) {
	b.calls.Add(1)
	plane := len(input) / 3
	var mean [3]float64
	for c := range 3 {
		var sum float64
		for _, v := range input[c*plane : (c+1)*plane] {
			sum += float64(v)
		}
		mean[c] = (sum/float64(plane) + 1) * 127.5
	}

	scores := make([]float32, len(Fruits))
	for i, f := range Fruits {
		dr := mean[0] - float64(f.Color.R)
		dg := mean[1] - float64(f.Color.G)
		db := mean[2] - float64(f.Color.B)
		scores[i] = float32(-math.Sqrt(dr*dr+dg*dg+db*db) / 10)
	}
	return scores, nil
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func EncodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func EncodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
