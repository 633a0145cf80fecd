// ABOUTME: Vertex AI backend: Gemini generation grounded on a Vertex AI Search data store
// ABOUTME: Citations are the retrieved-context URIs from the first candidate's grounding metadata

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/2389/travelmind-gateway/internal/config"
)

// contentGenerator is the slice of genai.Models the agent uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// VertexAgent answers with Gemini on Vertex AI, grounded on a search data store
type VertexAgent struct {
	models contentGenerator
	model  string
	config *genai.GenerateContentConfig
	logger *slog.Logger
}

// NewVertexAgent creates a client for cfg.Project/cfg.Location using
// application default credentials.
func NewVertexAgent(ctx context.Context, cfg config.VertexConfig, systemPrompt string, logger *slog.Logger) (*VertexAgent, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return newVertexAgent(client.Models, cfg, systemPrompt, logger), nil
}

func newVertexAgent(models contentGenerator, cfg config.VertexConfig, systemPrompt string, logger *slog.Logger) *VertexAgent {
	if logger == nil {
		logger = slog.Default()
	}

	// Paths assembled from env vars sometimes carry a doubled slash
	dataStore := strings.ReplaceAll(cfg.DataStorePath(), "//", "/")

	return &VertexAgent{
		models: models,
		model:  cfg.Model,
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Tools: []*genai.Tool{{
				Retrieval: &genai.Retrieval{
					VertexAISearch: &genai.VertexAISearch{Datastore: dataStore},
				},
			}},
		},
		logger: logger,
	}
}

// Generate sends prompt as a single user turn and collects grounding citations
func (v *VertexAgent) Generate(ctx context.Context, prompt string) (*Result, error) {
	resp, err := v.models.GenerateContent(ctx, v.model, genai.Text(prompt), v.config)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	citations := groundingCitations(resp)
	v.logger.Debug("vertex generation complete", "model", v.model, "citations", len(citations))

	return &Result{Text: text, Citations: citations}, nil
}

// groundingCitations extracts retrieved-context URIs from the first candidate
func groundingCitations(resp *genai.GenerateContentResponse) []string {
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return []string{}
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return []string{}
	}

	uris := make([]string, 0, len(meta.GroundingChunks))
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.RetrievedContext == nil {
			continue
		}
		uris = append(uris, chunk.RetrievedContext.URI)
	}
	return cleanCitations(uris)
}
