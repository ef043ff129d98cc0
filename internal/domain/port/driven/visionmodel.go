package driven

import (
	"context"

	"github.com/ericfisherdev/chequescan/internal/domain/model"
)

// VisionModel defines the driven port for the external multimodal model.
type VisionModel interface {
	// GenerateContent sends the image and instruction and returns the model's
	// text answer. An empty string with a nil error means the call succeeded
	// but produced no text.
	GenerateContent(ctx context.Context, image model.UploadedImage, prompt string) (string, error)

	// ModelName identifies the upstream model for logging.
	ModelName() string
}
