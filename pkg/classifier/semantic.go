package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"google.golang.org/genai"
	"igleads/pkg/logger"
	"igleads/pkg/models"
)

// DefaultThreshold is the cosine similarity a profile must reach against at
// least one keyword to count as relevant
const DefaultThreshold = 0.75

// Embedder turns texts into vectors, one per input, in order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// GenAIEmbedder embeds text with the Gemini embedding API
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

// NewGenAIEmbedder creates an embedder for the given API key and model
func NewGenAIEmbedder(ctx context.Context, apiKey, model string) (*GenAIEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenAIEmbedder{client: client, model: strings.TrimSpace(model)}, nil
}

// Embed implements Embedder
func (g *GenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed content: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// SemanticClassifier decides relevance by embedding similarity to the
// relevance keywords. Categorization and any embedding failure fall back to
// the keyword classifier, so the boolean contract is the same.
type SemanticClassifier struct {
	embedder  Embedder
	fallback  *KeywordClassifier
	threshold float64
	logger    logger.Logger

	mu       sync.Mutex
	keywords [][]float32
}

// NewSemanticClassifier wraps a keyword classifier with an embedding check.
// A threshold outside (0, 1] is replaced by DefaultThreshold.
func NewSemanticClassifier(embedder Embedder, fallback *KeywordClassifier, threshold float64, log logger.Logger) *SemanticClassifier {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &SemanticClassifier{
		embedder:  embedder,
		fallback:  fallback,
		threshold: threshold,
		logger:    logger.OrDefault(log).WithField("component", "semantic_classifier"),
	}
}

// Relevant implements Classifier
func (s *SemanticClassifier) Relevant(ctx context.Context, fields TextFields) bool {
	text := fields.Combined()
	if text == "" {
		return false
	}

	score, err := s.Score(ctx, text)
	if err != nil {
		s.logger.WithError(err).Warn("Embedding failed, using keyword match")
		return s.fallback.Relevant(ctx, fields)
	}
	return score >= s.threshold
}

// Categorize implements Classifier
func (s *SemanticClassifier) Categorize(cleanedBio string) models.Category {
	return s.fallback.Categorize(cleanedBio)
}

// Score returns the best cosine similarity between text and any keyword
func (s *SemanticClassifier) Score(ctx context.Context, text string) (float64, error) {
	keywords, err := s.keywordVectors(ctx)
	if err != nil {
		return 0, err
	}

	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return 0, err
	}
	if len(vecs) != 1 {
		return 0, fmt.Errorf("expected one embedding, got %d", len(vecs))
	}

	best := 0.0
	for _, k := range keywords {
		if sim := Cosine(vecs[0], k); sim > best {
			best = sim
		}
	}
	return best, nil
}

// keywordVectors embeds the keyword list on first use. A failed attempt is
// retried on the next call.
func (s *SemanticClassifier) keywordVectors(ctx context.Context) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keywords != nil {
		return s.keywords, nil
	}

	words := s.fallback.Keywords()
	if len(words) == 0 {
		return nil, errors.New("no relevance keywords to embed")
	}
	vecs, err := s.embedder.Embed(ctx, words)
	if err != nil {
		return nil, fmt.Errorf("embed keywords: %w", err)
	}
	s.keywords = vecs
	return vecs, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is empty
// or the lengths differ
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
