package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"traitor/internal/apperr"
	"traitor/internal/config"
	"traitor/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// Client sends one-shot completions to the configured provider. It keeps one
// chat model per model identifier.
type Client struct {
	models map[string]model.BaseChatModel
}

// NewClient builds chat models for the primary and secondary models of cfg.
func NewClient(ctx context.Context, cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		log.Printf("ai: no api key configured for provider %s", cfg.Provider)
	}
	built := make(map[string]model.BaseChatModel, 2)
	for _, name := range []string{cfg.PrimaryModel, cfg.SecondaryModel} {
		if name == "" {
			continue
		}
		if _, ok := built[name]; ok {
			continue
		}
		chatModel, err := newChatModel(ctx, cfg, name)
		if err != nil {
			return nil, fmt.Errorf("init %s model %s: %w", cfg.Provider, name, err)
		}
		built[name] = chatModel
	}
	if len(built) == 0 {
		return nil, errors.New("no models configured")
	}
	return &Client{models: built}, nil
}

// NewClientWithModels wraps already constructed chat models.
func NewClientWithModels(chatModels map[string]model.BaseChatModel) *Client {
	built := make(map[string]model.BaseChatModel, len(chatModels))
	for name, m := range chatModels {
		built[name] = m
	}
	return &Client{models: built}
}

func newChatModel(ctx context.Context, cfg config.LLMConfig, modelName string) (model.BaseChatModel, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   modelName,
			APIKey:  cfg.APIKey,
		})
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		maxTokens := cfg.MaxTokens
		if maxTokens <= 0 {
			maxTokens = 3000
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: maxTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Provider)
	}
}

// Complete sends messages to modelName and returns the trimmed reply.
func (c *Client) Complete(ctx context.Context, modelName string, messages []models.Message) (string, error) {
	op := "complete " + modelName
	chatModel, ok := c.models[modelName]
	if !ok {
		return "", apperr.Errorf(apperr.Adapter, op, "model %s not configured", modelName)
	}
	if len(messages) == 0 {
		return "", apperr.Errorf(apperr.Adapter, op, "no messages")
	}

	reply, err := chatModel.Generate(ctx, convertMessages(messages))
	if err != nil {
		return "", apperr.E(apperr.Adapter, op, err)
	}
	if reply == nil {
		return "", apperr.Errorf(apperr.Adapter, op, "empty response")
	}
	return strings.TrimSpace(reply.Content), nil
}

func convertMessages(messages []models.Message) []*schema.Message {
	converted := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		converted = append(converted, &schema.Message{
			Role:    role,
			Content: msg.Content,
		})
	}
	return converted
}
