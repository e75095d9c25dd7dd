package whisper

import "context"

// Request describes one transcription pass over a whole audio file.
type Request struct {
	AudioPath string
	// ModelPath is the weights file; engines that host their own model ignore it.
	ModelPath string
	Variant   Variant
}

type Engine interface {
	Transcribe(ctx context.Context, req Request) (string, error)
	// RequiresModelFile reports whether ModelPath must point at local weights.
	RequiresModelFile() bool
}
