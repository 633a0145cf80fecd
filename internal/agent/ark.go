// ABOUTME: Ark backend: an eino chain of chat template and Ark chat model
// ABOUTME: Has no retrieval tool, so answers carry no citations

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/2389/travelmind-gateway/internal/config"
)

// ArkAgent runs the composed prompt through a compiled eino chain
type ArkAgent struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	systemPrompt string
	logger       *slog.Logger
}

// NewArkAgent creates the Ark chat model and compiles the chain
func NewArkAgent(ctx context.Context, cfg config.ArkConfig, systemPrompt string, logger *slog.Logger) (*ArkAgent, error) {
	modelCfg := &ark.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		Region:  cfg.Region,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		modelCfg.MaxTokens = &maxTokens
	}
	if cfg.Temperature > 0 {
		temperature := cfg.Temperature
		modelCfg.Temperature = &temperature
	}

	chatModel, err := ark.NewChatModel(ctx, modelCfg)
	if err != nil {
		return nil, fmt.Errorf("creating ark chat model: %w", err)
	}

	return newChainAgent(ctx, chatModel, systemPrompt, logger)
}

// newChainAgent compiles system+user template -> chat model
func newChainAgent(ctx context.Context, chatModel model.BaseChatModel, systemPrompt string, logger *slog.Logger) (*ArkAgent, error) {
	if logger == nil {
		logger = slog.Default()
	}

	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compiling chat chain: %w", err)
	}

	return &ArkAgent{
		chain:        runnable,
		systemPrompt: systemPrompt,
		logger:       logger,
	}, nil
}

// Generate invokes the chain once with the composed prompt as the user message
func (a *ArkAgent) Generate(ctx context.Context, prompt string) (*Result, error) {
	msg, err := a.chain.Invoke(ctx, map[string]any{
		"system": a.systemPrompt,
		"query":  prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("running chat chain: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, ErrEmptyResponse
	}

	a.logger.Debug("ark generation complete", "length", len(msg.Content))
	return &Result{Text: msg.Content, Citations: []string{}}, nil
}
