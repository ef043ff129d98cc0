package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ericfisherdev/chequescan/internal/domain/model"
	"github.com/ericfisherdev/chequescan/internal/domain/port/driven"
)

// Prompt is the fixed instruction sent with every cheque image.
const Prompt = "Analyze this cheque image and extract the Payee Name, Bank Name, Account Number, " +
	"Date, Cheque Number, and Amount."

// ErrAPIKeyMissing is returned by Extract when no model client is configured.
var ErrAPIKeyMissing = fmt.Errorf("%w: API Key is missing! Please set GEMINI_API_KEY in the secrets file or .env file",
	model.ErrConfiguration)

// allowedExtensions are the upload types accepted by LoadImage.
var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ExtractionService turns an uploaded cheque image into an extraction result
// via the external vision model.
type ExtractionService struct {
	vision  driven.VisionModel
	timeout time.Duration
	logger  *slog.Logger
}

// NewExtractionService creates an ExtractionService. vm may be nil when no API
// key is configured; Extract then fails with ErrAPIKeyMissing. timeout bounds
// each upstream call; zero disables the bound.
func NewExtractionService(vm driven.VisionModel, timeout time.Duration, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{vision: vm, timeout: timeout, logger: logger}
}

// Configured reports whether a model client is available.
func (s *ExtractionService) Configured() bool {
	return s.vision != nil
}

// LoadImage reads and fully decodes an uploaded image. Only JPEG and PNG are
// accepted. Any failure wraps model.ErrImageLoad.
func LoadImage(r io.Reader, filename string) (model.UploadedImage, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return model.UploadedImage{}, fmt.Errorf("%w: unsupported file type %q (use jpg, jpeg or png)", model.ErrImageLoad, ext)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return model.UploadedImage{}, fmt.Errorf("%w: read upload: %v", model.ErrImageLoad, err)
	}
	if len(data) == 0 {
		return model.UploadedImage{}, fmt.Errorf("%w: empty file", model.ErrImageLoad)
	}

	contentType := http.DetectContentType(data)
	if contentType != "image/jpeg" && contentType != "image/png" {
		return model.UploadedImage{}, fmt.Errorf("%w: content is %s, not a jpeg or png image", model.ErrImageLoad, contentType)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return model.UploadedImage{}, fmt.Errorf("%w: decode %s: %v", model.ErrImageLoad, filename, err)
	}
	bounds := img.Bounds()

	return model.UploadedImage{
		Filename:    filepath.Base(filename),
		ContentType: "image/" + format,
		Data:        data,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

// Extract sends img to the model with the fixed prompt and parses the answer.
// Upstream failures wrap model.ErrUpstream; an empty answer is
// model.ErrEmptyResponse. Nothing is retried.
func (s *ExtractionService) Extract(ctx context.Context, img model.UploadedImage) (model.ExtractionResult, error) {
	if s.vision == nil {
		return model.ExtractionResult{}, ErrAPIKeyMissing
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.vision.GenerateContent(ctx, img, Prompt)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		s.logger.Error("extraction failed",
			"model", s.vision.ModelName(),
			"file", img.Filename,
			"error", err,
			"elapsed_ms", elapsed,
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return model.ExtractionResult{}, fmt.Errorf("%w: no answer within %s", model.ErrUpstream, s.timeout)
		}
		return model.ExtractionResult{}, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}

	if strings.TrimSpace(text) == "" {
		s.logger.Warn("extraction returned no text", "model", s.vision.ModelName(), "file", img.Filename, "elapsed_ms", elapsed)
		return model.ExtractionResult{}, model.ErrEmptyResponse
	}

	rec := ParseExtractedInfo(text)
	s.logger.Info("extraction complete",
		"model", s.vision.ModelName(),
		"file", img.Filename,
		"text_len", len(text),
		"fields_present", rec.Present(),
		"elapsed_ms", elapsed,
	)

	return model.ExtractionResult{RawText: text, Record: rec}, nil
}
