package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/railmadad/complaint-api/internal/models"
)

const defaultModel = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model produced no usable text part.
var ErrEmptyResponse = errors.New("gemini: empty response")

// Config for the Gemini client.
type Config struct {
	APIKey    string
	ModelName string
}

// Client wraps the Gemini API for complaint photo classification and ticket transcription.
type Client struct {
	client     *genai.Client
	classify   *genai.GenerativeModel
	transcribe *genai.GenerativeModel
	logger     *zap.Logger
	modelName  string
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	classify := client.GenerativeModel(cfg.ModelName)
	classify.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}
	classify.GenerationConfig = genai.GenerationConfig{
		Temperature:      genai.Ptr[float32](0.2),
		TopP:             genai.Ptr[float32](0.9),
		MaxOutputTokens:  genai.Ptr[int32](1024),
		ResponseMIMEType: "application/json",
	}

	transcribe := client.GenerativeModel(cfg.ModelName)
	transcribe.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0),
		MaxOutputTokens: genai.Ptr[int32](2048),
	}

	logger.Info("gemini client initialized", zap.String("model", cfg.ModelName))

	return &Client{
		client:     client,
		classify:   classify,
		transcribe: transcribe,
		logger:     logger,
		modelName:  cfg.ModelName,
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Classify sends the photo and optional rider text to the vision model in a
// single call and returns the parsed verdict. The verdict is not normalised.
func (c *Client) Classify(ctx context.Context, image []byte, mimeType, text string) (*models.Classification, error) {
	resp, err := c.classify.GenerateContent(ctx, genai.Text(BuildPrompt(text)), genai.Blob{MIMEType: mimeType, Data: image})
	if err != nil {
		return nil, fmt.Errorf("gemini classify: %w", err)
	}
	raw, err := firstText(resp)
	if err != nil {
		return nil, err
	}
	verdict, err := ParseClassification(raw)
	if err != nil {
		c.logger.Warn("unparseable gemini verdict", zap.String("model", c.modelName), zap.String("response", truncate(raw, 500)), zap.Error(err))
		return nil, err
	}
	return verdict, nil
}

// ReadText transcribes all printed text from a ticket image or PDF.
func (c *Client) ReadText(ctx context.Context, data []byte, mimeType string) (string, error) {
	resp, err := c.transcribe.GenerateContent(ctx, genai.Text(transcribePrompt), genai.Blob{MIMEType: mimeType, Data: data})
	if err != nil {
		return "", fmt.Errorf("gemini transcribe: %w", err)
	}
	text, err := firstText(resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
