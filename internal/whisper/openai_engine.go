package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"
)

// OpenAIEngine sends audio to the hosted Whisper API. The variant has no
// effect there; the hosted model is always whisper-1.
type OpenAIEngine struct {
	client openai.Client
	Logger *zap.Logger
}

func NewOpenAIEngine(apiKey string, logger *zap.Logger, opts ...option.RequestOption) (*OpenAIEngine, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required - set openai_api_key in config.toml or OPENAI_API_KEY")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIEngine{client: openai.NewClient(opts...), Logger: logger}, nil
}

func (e *OpenAIEngine) RequiresModelFile() bool { return false }

func (e *OpenAIEngine) Transcribe(ctx context.Context, req Request) (string, error) {
	if req.AudioPath == "" {
		return "", errors.New("audio path is required")
	}

	file, err := os.Open(req.AudioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	e.Logger.Debug("sending audio to OpenAI", zap.String("audio", req.AudioPath), zap.String("variant", string(req.Variant)))
	resp, err := e.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  file,
		Model: openai.AudioModelWhisper1,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}

	return resp.Text, nil
}
