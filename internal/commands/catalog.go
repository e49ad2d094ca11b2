package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"voxroute/internal/domain"
)

var (
	ErrDuplicateCommand = errors.New("duplicate command id")
	ErrEmptyPhrase      = errors.New("command phrase is empty")
)

// Catalog is the immutable, insertion-ordered set of known commands.
type Catalog struct {
	commands   []domain.Command
	normalized [][]string
}

// NewCatalog validates and freezes a command list.
func NewCatalog(commands []domain.Command) (*Catalog, error) {
	catalog := &Catalog{commands: make([]domain.Command, 0, len(commands))}
	seen := make(map[string]struct{}, len(commands))

	for _, command := range commands {
		id := strings.TrimSpace(command.ID)
		if id == "" {
			return nil, errors.New("command id cannot be empty")
		}
		if _, exists := seen[id]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateCommand, id)
		}
		if len(command.Phrases) == 0 {
			return nil, fmt.Errorf("command %q: %w", id, ErrEmptyPhrase)
		}
		normalized := make([]string, 0, len(command.Phrases))
		for _, phrase := range command.Phrases {
			n := Normalize(phrase)
			if n == "" {
				return nil, fmt.Errorf("command %q: %w", id, ErrEmptyPhrase)
			}
			normalized = append(normalized, n)
		}
		switch command.MatchType {
		case domain.MatchExactOrFuzzy, domain.MatchPrefix:
		case "":
			command.MatchType = domain.MatchExactOrFuzzy
		default:
			return nil, fmt.Errorf("command %q: unsupported match type %q", id, command.MatchType)
		}

		command.ID = id
		command.Phrases = append([]string(nil), command.Phrases...)
		seen[id] = struct{}{}
		catalog.commands = append(catalog.commands, command)
		catalog.normalized = append(catalog.normalized, normalized)
	}

	return catalog, nil
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.commands)
}

// Vocabulary lists every phrase once, in catalog order. It is sent to the
// backend as recognition context.
func (c *Catalog) Vocabulary() []string {
	if c == nil {
		return nil
	}
	phrases := lo.FlatMap(c.commands, func(command domain.Command, _ int) []string {
		return command.Phrases
	})
	return lo.Uniq(phrases)
}
