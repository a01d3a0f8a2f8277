package ai

import "context"

// VisionClient sends one prompt plus one image (as a data URL) to a vision
// model and returns its free-text answer.
type VisionClient interface {
	Analyze(ctx context.Context, prompt, imageDataURL string) (string, error)
}

// ImageLoader resolves an image reference to its bytes.
type ImageLoader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}
