package contact

import (
	"regexp"
	"sort"
	"strings"

	"igleads/pkg/models"
)

// UnknownRegion is returned when no calling code or country name matches
const UnknownRegion = "Unknown"

// numberPatterns are tried in order; the first pattern that matches wins.
// Explicit WhatsApp links and labels come before bare digit runs so that a
// "wa.me/<digits>" link is preferred over any other number in the same text.
var numberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)wa\.me/\+?(\d{6,15})`),
	regexp.MustCompile(`(?i)api\.whatsapp\.com/send/?\?phone=\+?(\d{6,15})`),
	regexp.MustCompile(`(?i)\b(?:wsp|whatsapp|whats|wpp|wa|cel|tel)\.?[\s:]*\+?(\d[\d\s\-]{5,18}\d)`),
	regexp.MustCompile(`(\+?\d{1,3}[\s-]?\d{6,14})`),
}

var groupLinkPattern = regexp.MustCompile(`(?i)(?:https?://)?chat\.whatsapp\.com/(?:invite/)?([A-Za-z0-9]+)`)

var nonDigits = regexp.MustCompile(`\D`)

// Extractor pulls WhatsApp contact details out of free text and maps numbers
// to regions. It holds only immutable lookup tables and is safe for
// concurrent use.
type Extractor struct {
	codes     []string
	regions   map[string]string
	countries []countryName
}

type countryName struct {
	name   string
	region string
}

// New creates an Extractor using the given calling-code to region table
func New(regions map[string]string) *Extractor {
	e := &Extractor{regions: make(map[string]string, len(regions))}
	for code, region := range regions {
		code = strings.TrimLeft(strings.TrimSpace(code), "+")
		if code == "" {
			continue
		}
		e.regions[code] = region
		e.codes = append(e.codes, code)
	}
	// longest prefix first so that 593 beats 5 and 59
	sort.Slice(e.codes, func(i, j int) bool {
		if len(e.codes[i]) != len(e.codes[j]) {
			return len(e.codes[i]) > len(e.codes[j])
		}
		return e.codes[i] < e.codes[j]
	})
	e.countries = defaultCountryNames()
	return e
}

// Extract returns the first WhatsApp number and group link found in text.
// It never fails; missing details are left empty.
func (e *Extractor) Extract(text string) models.ContactInfo {
	var info models.ContactInfo
	if text == "" {
		return info
	}

	for _, p := range numberPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		digits := nonDigits.ReplaceAllString(m[1], "")
		if len(digits) < 6 {
			continue
		}
		info.WhatsAppNumber = digits
		break
	}

	if m := groupLinkPattern.FindStringSubmatch(text); m != nil {
		info.WhatsAppGroupLink = "https://chat.whatsapp.com/" + m[1]
	}

	return info
}

// ExtractProfile runs Extract over the bio, then the external link
func (e *Extractor) ExtractProfile(bio, externalLink string) models.ContactInfo {
	info := e.Extract(bio)
	if info.WhatsAppNumber != "" && info.WhatsAppGroupLink != "" {
		return info
	}
	fromLink := e.Extract(externalLink)
	if info.WhatsAppNumber == "" {
		info.WhatsAppNumber = fromLink.WhatsAppNumber
	}
	if info.WhatsAppGroupLink == "" {
		info.WhatsAppGroupLink = fromLink.WhatsAppGroupLink
	}
	return info
}

// Region maps the leading calling code of number to a region label
func (e *Extractor) Region(number string) string {
	digits := nonDigits.ReplaceAllString(number, "")
	if digits == "" {
		return UnknownRegion
	}
	for _, code := range e.codes {
		if strings.HasPrefix(digits, code) {
			return e.regions[code]
		}
	}
	return UnknownRegion
}

// RegionFromText looks for a country name in free text
func (e *Extractor) RegionFromText(text string) string {
	lower := strings.ToLower(text)
	for _, c := range e.countries {
		if strings.Contains(lower, c.name) {
			return c.region
		}
	}
	return UnknownRegion
}

// InferRegion prefers the number's calling code and falls back to country
// names in the bio
func (e *Extractor) InferRegion(number, bio string) string {
	if number != "" {
		if r := e.Region(number); r != UnknownRegion {
			return r
		}
	}
	return e.RegionFromText(bio)
}

func defaultCountryNames() []countryName {
	return []countryName{
		{"méxico", "Mexico"}, {"mexico", "Mexico"}, {"cdmx", "Mexico"},
		{"brasil", "Brazil"}, {"brazil", "Brazil"},
		{"argentina", "Argentina"}, {"buenos aires", "Argentina"},
		{"colombia", "Colombia"}, {"bogotá", "Colombia"}, {"bogota", "Colombia"},
		{"chile", "Chile"}, {"santiago", "Chile"},
		{"venezuela", "Venezuela"}, {"caracas", "Venezuela"},
		{"ecuador", "Ecuador"}, {"guayaquil", "Ecuador"},
		{"perú", "Peru"}, {"peru", "Peru"}, {"lima", "Peru"},
		{"nicaragua", "Nicaragua"},
		{"panamá", "Panama"}, {"panama", "Panama"},
		{"guatemala", "Guatemala"},
		{"honduras", "Honduras"},
		{"el salvador", "El Salvador"},
		{"costa rica", "Costa Rica"},
		{"bolivia", "Bolivia"},
		{"paraguay", "Paraguay"},
		{"uruguay", "Uruguay"},
	}
}
