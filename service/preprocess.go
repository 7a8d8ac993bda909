package service

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

func ParseResample(name string) (imaging.ResampleFilter, error) {
	switch name {
	case "nearest":
		return imaging.NearestNeighbor, nil
	case "bilinear":
		return imaging.Linear, nil
	case "bicubic", "":
		return imaging.CatmullRom, nil
	case "lanczos":
		return imaging.Lanczos, nil
	default:
		return imaging.ResampleFilter{}, fmt.Errorf("unknown resample filter %q", name)
	}
}

// Resize stretches img to size x size without keeping the aspect ratio,
// which is what the network saw during training.
func Resize(img *image.NRGBA, size int, filter imaging.ResampleFilter) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return img
	}
	return imaging.Resize(img, size, size, filter)
}

// Tensor flattens img into a float32 tensor of shape [1, 3, H, W] or
// [1, H, W, 3] with the per-channel transform for mode applied.
func Tensor(img *image.NRGBA, layout Layout, mode Mode) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	out := make([]float32, 3*plane)

	for y := range h {
		for x := range w {
			off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			v := normalize([3]float32{
				float32(img.Pix[off]),
				float32(img.Pix[off+1]),
				float32(img.Pix[off+2]),
			}, mode)

			i := y*w + x
			if layout == LayoutNHWC {
				out[3*i] = v[0]
				out[3*i+1] = v[1]
				out[3*i+2] = v[2]
			} else {
				out[i] = v[0]
				out[plane+i] = v[1]
				out[2*plane+i] = v[2]
			}
		}
	}
	return out
}

// normalize maps one RGB pixel in [0, 255] to network input values.
func normalize(px [3]float32, mode Mode) [3]float32 {
	switch mode {
	case ModeTF:
		for c := range px {
			px[c] = px[c]/127.5 - 1
		}
		return px
	case ModeCaffe:
		return [3]float32{
			px[2] - CaffeMeanBGR[0],
			px[1] - CaffeMeanBGR[1],
			px[0] - CaffeMeanBGR[2],
		}
	default:
		for c := range px {
			px[c] = (px[c]/255 - ImageNetMean[c]) / ImageNetStd[c]
		}
		return px
	}
}

// Preprocess runs resize and normalization in one step.
func Preprocess(img *image.NRGBA, size int, filter imaging.ResampleFilter, layout Layout, mode Mode) []float32 {
	return Tensor(Resize(img, size, filter), layout, mode)
}
