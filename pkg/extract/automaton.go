package extract

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/getentag/entag/pkg/lexicon"
	"github.com/getentag/entag/pkg/models"
)

// exactCaseMaxRunes bounds the abbreviation rule below. Anything longer is
// a word, not an abbreviation.
const exactCaseMaxRunes = 4

// term is one automaton pattern together with its owning gazetteer entry.
type term struct {
	text      string
	runeLen   int
	exactCase bool
	surface   string
	canonical string
	entryType string
}

type acNode struct {
	next map[rune]int32
	fail int32
	out  []int32
}

// Automaton is an Aho-Corasick matcher over gazetteer terms. Matching is
// case-insensitive, except that short all-uppercase variants ("TX", "DC")
// match exact case only: folding them would turn the prepositions "in" and
// "or" into Indiana and Oregon. Hits are filtered to word boundaries, so
// "Texasville" never yields Texas.
type Automaton struct {
	nodes      []acNode
	terms      []term
	maxRuneLen int
}

func NewAutomaton(entries []lexicon.Entry) *Automaton {
	a := &Automaton{nodes: []acNode{{next: map[rune]int32{}}}}
	for i := range entries {
		e := &entries[i]
		a.addTerm(e.Canonical, e)
		for _, v := range e.Variants {
			a.addTerm(v, e)
		}
	}
	a.buildFailureLinks()
	return a
}

func (a *Automaton) addTerm(surface string, entry *lexicon.Entry) {
	surface = strings.TrimSpace(surface)
	if surface == "" {
		return
	}
	lowered := strings.Map(unicode.ToLower, surface)
	t := term{
		text:      lowered,
		runeLen:   utf8.RuneCountInString(lowered),
		exactCase: isExactCaseTerm(surface),
		surface:   surface,
		canonical: entry.Canonical,
		entryType: entry.Type,
	}

	cur := int32(0)
	for _, r := range lowered {
		next, ok := a.nodes[cur].next[r]
		if !ok {
			a.nodes = append(a.nodes, acNode{next: map[rune]int32{}})
			next = int32(len(a.nodes) - 1)
			a.nodes[cur].next[r] = next
		}
		cur = next
	}

	a.terms = append(a.terms, t)
	a.nodes[cur].out = append(a.nodes[cur].out, int32(len(a.terms)-1))
	if t.runeLen > a.maxRuneLen {
		a.maxRuneLen = t.runeLen
	}
}

// buildFailureLinks wires the standard BFS failure function and folds each
// node's failure outputs into its own output list, so every term ending at
// a position is reported in one step.
func (a *Automaton) buildFailureLinks() {
	queue := make([]int32, 0, len(a.nodes))
	for _, child := range a.nodes[0].next {
		queue = append(queue, child)
	}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for r, v := range a.nodes[u].next {
			queue = append(queue, v)
			f := a.nodes[u].fail
			for f != 0 {
				if _, ok := a.nodes[f].next[r]; ok {
					break
				}
				f = a.nodes[f].fail
			}
			if w, ok := a.nodes[f].next[r]; ok && w != v {
				a.nodes[v].fail = w
			} else {
				a.nodes[v].fail = 0
			}
			a.nodes[v].out = append(a.nodes[v].out, a.nodes[a.nodes[v].fail].out...)
		}
	}
}

// FindAll scans text once and returns every gazetteer hit that survives the
// boundary and case rules. Spans are byte offsets into text.
func (a *Automaton) FindAll(text string) []models.RawMatch {
	if len(a.terms) == 0 {
		return nil
	}

	var matches []models.RawMatch
	// Ring buffer of the byte offsets of the last maxRuneLen rune starts,
	// so a hit of rune length L maps back to its start offset.
	starts := make([]int, a.maxRuneLen)
	seen := 0
	state := int32(0)

	for i, r := range text {
		lr := unicode.ToLower(r)
		starts[seen%len(starts)] = i
		seen++

		for state != 0 {
			if _, ok := a.nodes[state].next[lr]; ok {
				break
			}
			state = a.nodes[state].fail
		}
		if next, ok := a.nodes[state].next[lr]; ok {
			state = next
		} else {
			state = 0
		}

		if len(a.nodes[state].out) == 0 {
			continue
		}
		end := i + utf8.RuneLen(r)
		for _, ti := range a.nodes[state].out {
			t := &a.terms[ti]
			start := starts[(seen-t.runeLen)%len(starts)]
			if !hasWordBoundary(text, start, end) {
				continue
			}
			if t.exactCase && text[start:end] != t.surface {
				continue
			}
			matches = append(matches, models.RawMatch{
				Text:      text[start:end],
				Span:      models.Span{Start: start, End: end},
				Type:      t.entryType,
				Source:    models.MatchSourceGazetteer,
				Canonical: t.canonical,
			})
		}
	}
	return matches
}

// isExactCaseTerm reports whether a variant is a short all-uppercase
// abbreviation like a postal code.
func isExactCaseTerm(surface string) bool {
	if utf8.RuneCountInString(surface) > exactCaseMaxRunes {
		return false
	}
	hasLetter := false
	for _, r := range surface {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func hasWordBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// GazetteerSource matches lexicon entries with a shared Automaton.
type GazetteerSource struct {
	automaton *Automaton
}

func NewGazetteerSource(entries []lexicon.Entry) *GazetteerSource {
	return &GazetteerSource{automaton: NewAutomaton(entries)}
}

func (s *GazetteerSource) Name() string {
	return models.MatchSourceGazetteer
}

func (s *GazetteerSource) Extract(_ context.Context, text string) ([]models.RawMatch, error) {
	return s.automaton.FindAll(text), nil
}
