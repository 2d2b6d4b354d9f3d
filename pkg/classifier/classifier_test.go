package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"igleads/pkg/config"
	"igleads/pkg/logger"
	"igleads/pkg/models"
)

func newKeywordClassifier() *KeywordClassifier {
	return NewKeywordClassifier(config.DefaultKeywords())
}

func TestRelevant(t *testing.T) {
	c := newKeywordClassifier()
	ctx := context.Background()

	tests := []struct {
		name   string
		fields TextFields
		want   bool
	}{
		{"relevance keyword", TextFields{Bio: "Venta de CELULARES nuevos"}, true},
		{"category keyword counts", TextFields{Bio: "Somos mayorista"}, true},
		{"accent insensitive", TextFields{Bio: "Reparacion de equipos"}, true},
		{"keyword in display name", TextFields{DisplayName: "Tienda Centro"}, true},
		{"keyword in link", TextFields{ExternalLink: "https://example.com/iphone"}, true},
		{"no keyword", TextFields{Bio: "Fotografía de bodas"}, false},
		{"empty", TextFields{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Relevant(ctx, tt.fields))
		})
	}
}

func TestCategorizePriority(t *testing.T) {
	c := newKeywordClassifier()

	tests := []struct {
		bio  string
		want models.Category
	}{
		{"reparación y tienda de celulares", models.CategoryRepairShop},
		{"tienda y reparación", models.CategoryRepairShop},
		{"mayorista de accesorios, tienda física", models.CategoryDistributor},
		{"reventa de equipos", models.CategoryReseller},
		{"tienda en el centro", models.CategoryRetailer},
		{"smartphones para todos", models.CategoryRetailer},
		{"SERVICIO TECNICO", models.CategoryRepairShop},
		{"hola mundo", models.CategoryUnknown},
		{"", models.CategoryUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Categorize(tt.bio), tt.bio)
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "reparacion tecnica", Fold("Reparación TÉCNICA"))
	assert.Equal(t, "assistencia tecnica", Fold("Assistência Técnica"))
	assert.Equal(t, "", Fold(""))
}

func TestCleanBio(t *testing.T) {
	tests := []struct {
		name   string
		record models.ProfileRecord
		want   string
	}{
		{
			name:   "drops repeated display name",
			record: models.ProfileRecord{Handle: "shopa", DisplayName: "Shop A", Bio: "Shop A\nVenta de celulares"},
			want:   "Venta de celulares",
		},
		{
			name:   "drops repeated handle",
			record: models.ProfileRecord{Handle: "shopa", Bio: "shopa\nMayorista"},
			want:   "Mayorista",
		},
		{
			name:   "strips urls and whitespace",
			record: models.ProfileRecord{Handle: "x", Bio: "Tienda   https://example.com/a\n\n visita www.shop.mx  hoy"},
			want:   "Tienda visita hoy",
		},
		{
			name:   "keeps unrelated first line",
			record: models.ProfileRecord{Handle: "x", DisplayName: "X", Bio: "Reparación\nEnvíos"},
			want:   "Reparación Envíos",
		},
		{
			name:   "empty",
			record: models.ProfileRecord{Handle: "x"},
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanBio(tt.record))
		})
	}
}

// fakeEmbedder maps texts containing a marker word to a fixed vector
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.Contains(Fold(t), "celular") {
			out[i] = []float32{1, 0}
		} else {
			out[i] = []float32{0, 1}
		}
	}
	return out, nil
}

func TestSemanticClassifier(t *testing.T) {
	kw := NewKeywordClassifier(config.KeywordsConfig{Relevance: []string{"celulares"}})
	emb := &fakeEmbedder{}
	c := NewSemanticClassifier(emb, kw, 0, logger.NewNopLogger())
	ctx := context.Background()

	assert.True(t, c.Relevant(ctx, TextFields{Bio: "Todo en celulares"}))
	assert.False(t, c.Relevant(ctx, TextFields{Bio: "Pastelería"}))
	assert.False(t, c.Relevant(ctx, TextFields{}))

	// keywords embedded once, then one call per profile
	assert.Equal(t, 3, emb.calls)
}

func TestSemanticClassifierFallsBackOnError(t *testing.T) {
	kw := newKeywordClassifier()
	log := logger.NewTestLogger()
	c := NewSemanticClassifier(&fakeEmbedder{err: errors.New("quota")}, kw, 0.9, log)
	ctx := context.Background()

	assert.True(t, c.Relevant(ctx, TextFields{Bio: "tienda de celulares"}))
	assert.False(t, c.Relevant(ctx, TextFields{Bio: "pastelería"}))
	assert.NotEmpty(t, log.GetMessagesByLevel("WARN"))
	assert.Equal(t, models.CategoryRetailer, c.Categorize("tienda"))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine(nil, []float32{1}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestNewGenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewGenAIEmbedder(context.Background(), "", "gemini-embedding-001")
	require.Error(t, err)
}
