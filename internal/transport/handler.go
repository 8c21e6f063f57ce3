package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/config"
	apperrors "github.com/indpriyanshuraj/talvaar-image-optimizer/internal/errors"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/logger"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/meta"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/optimizer"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/storage"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/pkg/validation"
)

func validateImageURL(imageURL string) error {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}
	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	return nil
}

type OptimizeRequest struct {
	URL                string `json:"url" binding:"required,url"`
	Format             string `json:"format,omitempty"`
	Mode               string `json:"mode,omitempty"`
	Compression        *int   `json:"compression,omitempty"`
	IgnoreTransparency bool   `json:"ignore_transparency,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NewHandler builds the HTTP surface: a health probe and a one-shot
// optimize endpoint that returns the winning encoding as the body.
func NewHandler(fetcher storage.ImageFetcher, cfg *config.Config) http.Handler {
	r := gin.Default()

	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck)
	r.POST("/optimize", optimizeImage(fetcher, cfg))

	return r
}

func optimizeImage(f storage.ImageFetcher, cfg *config.Config) gin.HandlerFunc {
	validator := validation.NewParamsValidator()

	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing image optimization request")

		var req OptimizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"ip": c.ClientIP(),
			}).Error("Invalid request format")
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		if err := validateImageURL(req.URL); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"url": req.URL,
				"ip":  c.ClientIP(),
			}).Error("Invalid image URL")
			respondError(c, apperrors.GetStatusCode(err), "invalid image URL", err)
			return
		}

		mode := req.Mode
		if mode == "" {
			mode = "auto"
		}
		compression := cfg.Compression
		if req.Compression != nil {
			compression = *req.Compression
		}
		if err := validator.ValidateMode(mode); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid mode", err)
			return
		}
		if err := validator.ValidateFormat(req.Format); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid format", err)
			return
		}
		if err := validator.ValidateCompression(compression); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid compression level", err)
			return
		}
		format, err := optimizer.ParseFormat(req.Format)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid format", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"url":  req.URL,
			"mode": mode,
		}).Debug("Fetching image")

		raw, err := f.FetchImage(ctx, req.URL)
		if err != nil {
			var fetchErr *apperrors.AppError
			if errors.Is(err, context.DeadlineExceeded) {
				fetchErr = apperrors.NewTimeoutError("Image fetch timeout", err)
			} else {
				fetchErr = apperrors.NewNetworkError("Failed to fetch image", err)
			}

			logger.WithError(fetchErr).WithFields(logrus.Fields{
				"url": req.URL,
				"ip":  c.ClientIP(),
			}).Error("Failed to fetch image")

			respondError(c, fetchErr.StatusCode, "failed to fetch image", fetchErr)
			return
		}

		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			decodeErr := apperrors.NewDecodeError(req.URL, err)
			respondError(c, decodeErr.StatusCode, "failed to decode image", decodeErr)
			return
		}
		img = meta.Normalize(img, raw)

		data, label, err := encodeForRequest(img, req.URL, mode, compression, format, req.IgnoreTransparency)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "optimization failed", err)
			return
		}

		duration := time.Since(startTime)
		logger.WithFields(logrus.Fields{
			"url":                req.URL,
			"mode":               label,
			"original_size":      len(raw),
			"optimized_size":     len(data),
			"processing_time_ms": duration.Milliseconds(),
		}).Info("Image optimization completed successfully")

		c.Header("X-Original-Size", strconv.Itoa(len(raw)))
		c.Header("X-Optimized-Size", strconv.Itoa(len(data)))
		c.Header("X-Chosen-Mode", label)
		c.Data(http.StatusOK, contentTypeFor(format), data)
	}
}

// encodeForRequest mirrors the batch pipeline's mode handling for a
// single in-memory image. Ignoring transparency overrides every manual
// mode to plain RGB, palette included.
func encodeForRequest(img image.Image, source, mode string, compression int, format optimizer.Format, ignore bool) ([]byte, string, error) {
	switch mode {
	case "auto":
		res, err := optimizer.RaceBest(img, source, optimizer.UnboundedBaseline, compression, format, ignore)
		if err != nil {
			return nil, "", err
		}
		return res.Data, res.Label, nil
	case "rgba", "palette", "rgb":
		pm := optimizer.ModeRGB
		colors := 0
		if !ignore {
			switch mode {
			case "rgba":
				pm = optimizer.ModeRGBA
			case "palette":
				pm = optimizer.ModePalette
				colors = 256
			}
		}
		label := string(pm)
		if colors > 0 {
			label = optimizer.Candidate{Mode: pm, Colors: colors}.Label()
		}
		data, err := optimizer.EncodeCandidate(img, pm, colors, compression, format)
		return data, label, err
	default:
		return nil, "", apperrors.NewValidationError(fmt.Sprintf("invalid mode %q", mode), nil)
	}
}

func contentTypeFor(format optimizer.Format) string {
	switch format {
	case optimizer.FormatJPEG:
		return "image/jpeg"
	case optimizer.FormatWEBP:
		return "image/webp"
	case optimizer.FormatQOI:
		return "application/octet-stream"
	default:
		return "image/png"
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
