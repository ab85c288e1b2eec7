// Package llm wraps the completion backend behind a small text-in/text-out
// interface. The backend is any OpenAI-compatible HTTP API.
package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/models"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 30 * time.Second

// CompletionRequest carries everything needed for one completion.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	History      []models.Message
	Params       config.ModelParams
}

// Client is the completion boundary consumed by agents.
type Client interface {
	// Complete generates a single assistant reply.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// MediaClient describes audio transcription and image description, used by
// the webhook ingress to enrich attachments.
type MediaClient interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
	DescribeImage(ctx context.Context, imageURL string) (string, error)
}

// OpenAIClient implements Client and MediaClient over an OpenAI-compatible API.
type OpenAIClient struct {
	api             *openai.Client
	timeout         time.Duration
	transcribeModel string
	visionModel     string
}

// NewOpenAIClient builds a client from configuration. The API key is read
// from the environment variable named in cfg.APIKeyEnv.
func NewOpenAIClient(cfg config.LLMConfig) (*OpenAIClient, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("LLM API key environment variable %s is not set", keyEnv)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	c := &OpenAIClient{
		api:             openai.NewClientWithConfig(clientCfg),
		timeout:         DefaultTimeout,
		transcribeModel: cfg.TranscribeModel,
		visionModel:     cfg.VisionModel,
	}
	if c.transcribeModel == "" {
		c.transcribeModel = openai.Whisper1
	}
	if c.visionModel == "" {
		c.visionModel = openai.GPT4oMini
	}
	return c, nil
}

// Complete generates a single assistant reply from the prompt and history.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Params.ModelName,
		Messages:    messages,
		MaxTokens:   req.Params.MaxTokens,
		Temperature: req.Params.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Transcribe sends a downloaded audio file to the transcription endpoint.
func (c *OpenAIClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcribeModel,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return resp.Text, nil
}

// DescribeImage asks the vision model for a short description of an image URL.
func (c *OpenAIClient) DescribeImage(ctx context.Context, imageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.visionModel,
		MaxTokens: 300,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Describe brevemente el contenido de esta imagen.",
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL, Detail: openai.ImageURLDetailAuto},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("image description failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("image description returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
