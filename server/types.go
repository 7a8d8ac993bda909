package server

import (
	"html/template"
	"time"

	"github.com/krau/fruitlens/service"
)

type prediction struct {
	Rank         int     `json:"rank"`
	Index        int     `json:"index"`
	ID           string  `json:"id,omitempty"`
	Label        string  `json:"label"`
	DisplayLabel string  `json:"display_label"`
	Confidence   float32 `json:"confidence"`
	Percent      float32 `json:"-"`
}

type predictResponse struct {
	Predictions []prediction `json:"predictions"`
	Format      string       `json:"format"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	ElapsedMs   float64      `json:"elapsed_ms"`
}

func newPredictResponse(res *service.Result, elapsed time.Duration) predictResponse {
	preds := make([]prediction, len(res.Predictions))
	for i, p := range res.Predictions {
		preds[i] = prediction{
			Rank:         i + 1,
			Index:        p.Index,
			ID:           p.ID,
			Label:        p.Label,
			DisplayLabel: p.DisplayLabel(),
			Confidence:   p.Confidence,
			Percent:      p.Percent(),
		}
	}
	return predictResponse{
		Predictions: preds,
		Format:      res.Format,
		Width:       res.Width,
		Height:      res.Height,
		ElapsedMs:   float64(elapsed.Microseconds()) / 1000,
	}
}

// page is the data the index template renders.
type page struct {
	ModelName string
	MinTopK   int
	MaxTopK   int
	TopK      int
	Info      bool
	Error     string
	Preview   template.URL
	Result    *predictResponse
}
