package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Embedder turns texts into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimensions() int
}

// EmbedderConfig selects the embeddings endpoint.
type EmbedderConfig struct {
	// API is "openai" or "azure".
	API        string
	APIKey     string
	BaseURL    string
	APIVersion string
	Model      string
	Dimensions int
}

// OpenAIEmbedder calls the OpenAI (or Azure OpenAI) embeddings API.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder returns an embedder for cfg.
func NewOpenAIEmbedder(cfg EmbedderConfig, opts ...option.RequestOption) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embeddings need an API key for %q", cfg.API)
	}
	var clientOpts []option.RequestOption
	switch cfg.API {
	case "azure":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("azure embeddings need a base URL")
		}
		clientOpts = append(clientOpts, azure.WithEndpoint(cfg.BaseURL, cfg.APIVersion), azure.WithAPIKey(cfg.APIKey))
	case "openai", "":
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
		}
	default:
		return nil, fmt.Errorf("unsupported embeddings API %q", cfg.API)
	}
	clientOpts = append(clientOpts, opts...)
	return &OpenAIEmbedder{
		client:     openai.NewClient(clientOpts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Dimensions implements Embedder.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, span := otel.Tracer("courtside/knowledge").Start(ctx, "embeddings "+e.model)
	defer span.End()
	span.SetAttributes(attribute.Int("embeddings.inputs", len(texts)))

	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if strings.HasPrefix(e.model, "text-embedding-3") && e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}
	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("create embeddings: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
