package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/getentag/entag/pkg/lexicon"
	"github.com/getentag/entag/pkg/models"
)

// TagID returns the stable tag id for a canonical value: the first 8 hex
// characters of SHA-256 over the entity type and normalized value. The id
// depends on nothing else, so the same value gets the same id in every
// document and every run.
func TagID(entityType, normalized string) string {
	sum := sha256.Sum256([]byte(entityType + "\x00" + normalized))
	return hex.EncodeToString(sum[:])[:8]
}

// Canonicalize groups position-sorted mentions by their normalized value
// and returns one canonical entity per distinct (type, value) pair, in
// first-occurrence order.
func Canonicalize(matches []models.RawMatch, units *lexicon.UnitTable) []models.CanonicalEntity {
	type key struct {
		entityType string
		normalized string
	}
	index := make(map[key]int)
	entities := make([]models.CanonicalEntity, 0, len(matches))

	for _, m := range matches {
		normalized := Normalize(m, units)
		if normalized == "" {
			continue
		}
		k := key{m.Type, normalized}
		idx, ok := index[k]
		if !ok {
			entities = append(entities, models.CanonicalEntity{
				ID:         TagID(m.Type, normalized),
				Normalized: normalized,
				Type:       m.Type,
			})
			idx = len(entities) - 1
			index[k] = idx
		}
		entities[idx].Mentions = append(entities[idx].Mentions, models.Mention{
			Text:   m.Text,
			Span:   m.Span,
			Source: m.Source,
		})
	}
	return entities
}

// Normalize renders the canonical surface form for one mention: "37" and
// "37.0" both become "37", "37 inches" becomes "37 in", "30 to 37 inches"
// becomes "30-37 in". Gazetteer and NER mentions use the canonical form
// their source resolved.
func Normalize(m models.RawMatch, units *lexicon.UnitTable) string {
	switch m.Type {
	case models.MatchTypeNumber:
		return normalizeNumber(m.Text)
	case models.MatchTypeMeasurement:
		return normalizeMeasurement(m.Text, units)
	case models.MatchTypeRange:
		return normalizeRange(m.Text, units)
	}
	if m.Canonical != "" {
		return m.Canonical
	}
	return strings.Join(strings.Fields(m.Text), " ")
}

func normalizeNumber(text string) string {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return text
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func normalizeMeasurement(text string, units *lexicon.UnitTable) string {
	number, unitWord := splitMeasurement(text)
	value := normalizeNumber(number)
	if unit, ok := units.Resolve(unitWord); ok {
		return joinValueUnit(value, unit.Canonical)
	}
	if unitWord != "" {
		return value + " " + strings.ToLower(unitWord)
	}
	return value
}

func normalizeRange(text string, units *lexicon.UnitTable) string {
	numbers := numberPattern.FindAllString(text, -1)
	if len(numbers) < 2 {
		return strings.Join(strings.Fields(text), " ")
	}
	lo := normalizeNumber(numbers[0])
	hi := normalizeNumber(numbers[len(numbers)-1])
	value := lo + "-" + hi
	if unit := rangeUnit(text, units); unit != "" {
		return joinValueUnit(value, unit)
	}
	return value
}

// splitMeasurement splits measurement text into its numeric prefix and the
// rest, which is the unit surface form.
func splitMeasurement(text string) (string, string) {
	text = strings.TrimSpace(text)
	i := 0
	for i < len(text) {
		c := text[i]
		if (c >= '0' && c <= '9') || c == '.' || c == ',' {
			i++
			continue
		}
		break
	}
	return text[:i], strings.TrimSpace(text[i:])
}

// rangeUnit finds the canonical unit named in range text, preferring the
// trailing one.
func rangeUnit(text string, units *lexicon.UnitTable) string {
	if u, ok := units.Resolve(trailingUnitWord(text)); ok {
		return u.Canonical
	}
	words := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ' ', '\t', '-', '–', '—':
			return true
		}
		return false
	})
	for _, word := range words {
		if u, ok := units.Resolve(word); ok {
			return u.Canonical
		}
	}
	return ""
}

// joinValueUnit renders "<value> <unit>", except the percent sign which
// reads better tight against the value.
func joinValueUnit(value, unit string) string {
	if unit == "%" {
		return value + "%"
	}
	return value + " " + unit
}
