package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/krau/fruitlens/service"
)

var (
	errUnauthorized = errors.New("unauthorized")
	errNoFile       = errors.New("no file uploaded")
	errTooLarge     = errors.New("file too large")
)

func (s *Server) authenticate(c *gin.Context) error {
	auth := c.GetHeader("Authorization")

	expectedToken := s.cfg.Token
	if expectedToken == "" {
		return nil
	}
	providedToken := ""
	if len(auth) > 7 && auth[:7] == "Bearer " {
		providedToken = auth[7:]
	}
	if subtle.ConstantTimeCompare([]byte(providedToken), []byte(expectedToken)) != 1 {
		return errUnauthorized
	}

	return nil
}

// readUpload returns the bytes of the multipart "file" field, enforcing the
// configured size limit. It must run before anything else parses the form.
func (s *Server) readUpload(c *gin.Context) ([]byte, error) {
	limit := int64(s.cfg.MaxUploadMB) << 20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errTooLarge
		}
		return nil, errNoFile
	}
	if fileHeader.Size > limit {
		return nil, errTooLarge
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()
	return io.ReadAll(file)
}

func parseTopK(raw string, lo, hi int) (int, error) {
	if raw == "" {
		return DefaultTopK, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k < lo || k > hi {
		return 0, fmt.Errorf("top_k must be an integer between %d and %d", lo, hi)
	}
	return k, nil
}

func (s *Server) PredictHandler(c *gin.Context) {
	if err := s.authenticate(c); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	data, err := s.readUpload(c)
	switch {
	case errors.Is(err, errTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	case errors.Is(err, errNoFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		slog.Error("Failed to read upload", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	topK, err := parseTopK(c.DefaultPostForm("top_k", c.Query("top_k")), 1, s.clf.Classes())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	res, err := s.clf.Classify(data, topK)
	if errors.Is(err, service.ErrDecode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		slog.Error("Prediction failed",
			slog.String("request_id", c.GetString("request_id")),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed"})
		return
	}

	c.JSON(http.StatusOK, newPredictResponse(res, time.Since(start)))
}

func (s *Server) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"model":   s.cfg.ModelName,
		"classes": s.clf.Classes(),
	})
}
