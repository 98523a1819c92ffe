package fuzzy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrInvalidBlocklist is returned when a blocklist definition cannot be used.
var ErrInvalidBlocklist = errors.New("invalid blocklist")

// Blocklist is an ordered, read-only list of canonical problem words.
type Blocklist struct {
	entries []string
}

var defaultEntries = []string{
	"problema", "falha", "erro", "conflito", "atraso", "parada", "complicacao", "aborrecimento",
	"travado", "lotado", "calor", "abarrotado", "quente", "cheio", "morte", "quebrado", "demora", "transtorno",
}

// DefaultBlocklist returns the built-in list of complaint words.
func DefaultBlocklist() *Blocklist {
	return NewBlocklist(defaultEntries...)
}

// NewBlocklist returns a blocklist holding a copy of entries in the given order.
func NewBlocklist(entries ...string) *Blocklist {
	return &Blocklist{entries: append([]string(nil), entries...)}
}

// LoadBlocklistJSON reads a JSON array of words from path.
func LoadBlocklistJSON(path string) (*Blocklist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var words []string
	if err := json.Unmarshal(data, &words); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBlocklist, path, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: %s: no entries", ErrInvalidBlocklist, path)
	}
	for i, w := range words {
		if strings.TrimSpace(w) == "" {
			return nil, fmt.Errorf("%w: %s: blank entry at index %d", ErrInvalidBlocklist, path, i)
		}
	}

	return NewBlocklist(words...), nil
}

// Entries returns a copy of the blocklist entries in order.
func (b *Blocklist) Entries() []string {
	return append([]string(nil), b.entries...)
}

func (b *Blocklist) Len() int {
	return len(b.entries)
}
