package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"igleads/pkg/config"
	"igleads/pkg/models"
)

func newExtractor() *Extractor {
	return New(config.DefaultRegions())
}

func TestExtractWaMeAndGroupLink(t *testing.T) {
	e := newExtractor()
	info := e.Extract("Llámanos al wa.me/5212345678900 o al grupo chat.whatsapp.com/AbCdEf123456789012345")

	assert.Equal(t, "5212345678900", info.WhatsAppNumber)
	assert.Equal(t, "https://chat.whatsapp.com/AbCdEf123456789012345", info.WhatsAppGroupLink)
}

func TestExtractNumberPatterns(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"wa.me with plus", "pedidos wa.me/+5491122334455", "5491122334455"},
		{"api link", "https://api.whatsapp.com/send?phone=573001234567&text=hola", "573001234567"},
		{"wsp label", "Wsp: 5512345678 envíos a todo el país", "5512345678"},
		{"wsp label no separator", "Wsp5512345678", "5512345678"},
		{"whatsapp label with spaces", "WhatsApp +52 55 1234 5678", "525512345678"},
		{"bare international", "Ventas al +593 987654321", "593987654321"},
		{"bare hyphen", "llama 51-987654321", "51987654321"},
		{"short digits ignored", "Desde 2019, 24/7", ""},
		{"no number", "tienda de celulares", ""},
	}

	e := newExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.Extract(tt.text).WhatsAppNumber)
		})
	}
}

func TestExtractPriorityIsDeterministic(t *testing.T) {
	e := newExtractor()
	// bare number appears first in the text, but the wa.me pattern has priority
	text := "Tel fijo 5511112222 | pedidos wa.me/5219998887766"
	assert.Equal(t, "5219998887766", e.Extract(text).WhatsAppNumber)
}

func TestExtractGroupLinkForms(t *testing.T) {
	e := newExtractor()
	tests := map[string]string{
		"https://chat.whatsapp.com/ABC123def":    "https://chat.whatsapp.com/ABC123def",
		"http://chat.whatsapp.com/ABC123def":     "https://chat.whatsapp.com/ABC123def",
		"chat.whatsapp.com/invite/XyZ987":        "https://chat.whatsapp.com/XyZ987",
		"Grupo: CHAT.WHATSAPP.COM/Zz9 únete hoy": "https://chat.whatsapp.com/Zz9",
		"sin grupo":                              "",
	}
	for text, want := range tests {
		assert.Equal(t, want, e.Extract(text).WhatsAppGroupLink, text)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	e := newExtractor()
	text := "Wsp: 5512345678 grupo chat.whatsapp.com/abc y wa.me/5219998887766"
	assert.Equal(t, e.Extract(text), e.Extract(text))
}

func TestExtractEmpty(t *testing.T) {
	assert.Equal(t, models.ContactInfo{}, newExtractor().Extract(""))
}

func TestExtractProfileFallsBackToLink(t *testing.T) {
	e := newExtractor()
	info := e.ExtractProfile("Reparación de celulares", "https://wa.me/5215512345678")
	assert.Equal(t, "5215512345678", info.WhatsAppNumber)

	info = e.ExtractProfile("wa.me/5491122334455", "https://chat.whatsapp.com/GroupX")
	assert.Equal(t, "5491122334455", info.WhatsAppNumber)
	assert.Equal(t, "https://chat.whatsapp.com/GroupX", info.WhatsAppGroupLink)
}

func TestRegion(t *testing.T) {
	e := newExtractor()
	tests := map[string]string{
		"5212345678900": "Mexico",
		"+55 11 91234":  "Brazil",
		"593987654321":  "Ecuador",
		"5059876543":    "Nicaragua",
		"5076543210":    "Panama",
		"51987654321":   "Peru",
		"4420123456":    UnknownRegion,
		"":              UnknownRegion,
	}
	for number, want := range tests {
		assert.Equal(t, want, e.Region(number), number)
	}
}

func TestRegionLongestPrefixWins(t *testing.T) {
	e := New(map[string]string{"5": "Five", "59": "FiftyNine", "593": "Ecuador"})
	assert.Equal(t, "Ecuador", e.Region("593111"))
	assert.Equal(t, "FiftyNine", e.Region("591111"))
	assert.Equal(t, "Five", e.Region("511111"))
}

func TestInferRegion(t *testing.T) {
	e := newExtractor()
	assert.Equal(t, "Mexico", e.InferRegion("5212345678", "envíos a Colombia"))
	assert.Equal(t, "Colombia", e.InferRegion("4420123456", "envíos a toda Colombia"))
	assert.Equal(t, "Argentina", e.InferRegion("", "Local en Buenos Aires"))
	assert.Equal(t, UnknownRegion, e.InferRegion("", "sin datos"))
}
