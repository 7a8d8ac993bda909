package server

import (
	"encoding/base64"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/krau/fruitlens/service"
)

const (
	msgCorrupt  = "The uploaded image is corrupted or invalid. Please try again with another image."
	msgTooLarge = "The uploaded file is too large."
	msgFailed   = "Prediction failed. Please try again later."
)

func (s *Server) newPage(topK int) *page {
	return &page{
		ModelName: s.cfg.ModelName,
		MinTopK:   MinTopK,
		MaxTopK:   MaxTopK,
		TopK:      topK,
	}
}

func (s *Server) IndexHandler(c *gin.Context) {
	p := s.newPage(DefaultTopK)
	p.Info = true
	c.HTML(http.StatusOK, "index.html", p)
}

// UploadHandler classifies the submitted form and renders the page with the
// ranked predictions or a message explaining why there are none.
func (s *Server) UploadHandler(c *gin.Context) {
	p := s.newPage(DefaultTopK)

	data, err := s.readUpload(c)
	switch {
	case errors.Is(err, errNoFile):
		p.Info = true
		c.HTML(http.StatusOK, "index.html", p)
		return
	case errors.Is(err, errTooLarge):
		p.Error = msgTooLarge
		c.HTML(http.StatusRequestEntityTooLarge, "index.html", p)
		return
	case err != nil:
		p.Error = msgCorrupt
		c.HTML(http.StatusBadRequest, "index.html", p)
		return
	}

	topK, err := parseTopK(c.PostForm("top_k"), MinTopK, MaxTopK)
	if err != nil {
		p.Error = err.Error()
		c.HTML(http.StatusBadRequest, "index.html", p)
		return
	}
	p.TopK = topK

	start := time.Now()
	res, err := s.clf.Classify(data, topK)
	if errors.Is(err, service.ErrDecode) {
		p.Error = msgCorrupt
		c.HTML(http.StatusBadRequest, "index.html", p)
		return
	}
	if err != nil {
		slog.Error("Prediction failed",
			slog.String("request_id", c.GetString("request_id")),
			slog.String("error", err.Error()))
		p.Error = msgFailed
		c.HTML(http.StatusInternalServerError, "index.html", p)
		return
	}

	resp := newPredictResponse(res, time.Since(start))
	p.Result = &resp
	p.Preview = dataURI(data)
	c.HTML(http.StatusOK, "index.html", p)
}

// dataURI embeds the upload in the page so no copy of it is kept server side.
func dataURI(data []byte) template.URL {
	return template.URL("data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data))
}
