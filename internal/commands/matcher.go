package commands

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"voxroute/internal/domain"
)

// Fixed scores and acceptance threshold of the matcher.
const (
	ScoreExact     = 1.0
	ScorePrefix    = 0.95
	ScoreSubstring = 0.85
	MatchThreshold = 0.4
)

// Normalize lower-cases s, strips diacritics, drops everything outside
// [a-z0-9 ] and collapses runs of whitespace.
func Normalize(s string) string {
	// transform.Chain is stateful, so it is built per call.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	decomposed, _, err := transform.String(stripMarks, strings.ToLower(s))
	if err != nil {
		decomposed = strings.ToLower(s)
	}

	var builder strings.Builder
	builder.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		case unicode.IsSpace(r):
			builder.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}

// Match scores utterance against every catalog entry and returns the best
// candidate when it clears MatchThreshold. An exact normalized phrase match
// returns immediately with ScoreExact.
func Match(utterance string, catalog *Catalog) (domain.MatchResult, bool) {
	if catalog == nil {
		return domain.MatchResult{}, false
	}
	input := Normalize(utterance)
	if input == "" {
		return domain.MatchResult{}, false
	}
	inputTokens := tokenSet(input)

	var best domain.MatchResult
	found := false
	consider := func(candidate domain.MatchResult) {
		if !found || candidate.Score > best.Score {
			best = candidate
			found = true
		}
	}

	for i := range catalog.commands {
		command := &catalog.commands[i]
		for _, phrase := range catalog.normalized[i] {
			if command.MatchType == domain.MatchPrefix {
				if !strings.HasPrefix(input, phrase) {
					continue
				}
				remainder := strings.TrimSpace(input[len(phrase):])
				if remainder == "" {
					continue
				}
				consider(domain.MatchResult{Command: command, Score: ScorePrefix, ExtractedArgs: []string{remainder}})
				continue
			}

			if input == phrase {
				return domain.MatchResult{Command: command, Score: ScoreExact}, true
			}
			if strings.Contains(input, phrase) || strings.Contains(phrase, input) {
				consider(domain.MatchResult{Command: command, Score: ScoreSubstring})
				continue
			}
			consider(domain.MatchResult{Command: command, Score: jaccard(inputTokens, tokenSet(phrase))})
		}
	}

	if !found || best.Score < MatchThreshold {
		return domain.MatchResult{}, false
	}
	return best, true
}

func tokenSet(s string) map[string]struct{} {
	tokens := strings.Fields(s)
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
