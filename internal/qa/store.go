// Package qa implements the static question/answer lookup that backs the
// mock agent. Entries are loaded from a JSON file, validated against a
// schema, and matched with an exact-then-keyword linear scan.
package qa

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"
)

//go:embed qa.json
var embeddedData []byte

// keywords shorter than this many runes are too generic to match on.
const minKeywordRunes = 3

// Entry is one stored question/answer pair.
type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// entriesSchema validates the knowledge-base file shape on load.
var entriesSchema = &jsonschema.Schema{
	Type: "array",
	Items: &jsonschema.Schema{
		Type:     "object",
		Required: []string{"question", "answer"},
		Properties: map[string]*jsonschema.Schema{
			"question": {Type: "string"},
			"answer":   {Type: "string"},
		},
	},
}

var (
	resolvedSchema     *jsonschema.Resolved
	resolveSchemaOnce  sync.Once
	resolveSchemaError error
)

// Store holds the loaded Q&A table. Reads vastly outnumber reloads, so a
// RWMutex keeps Find lock-cheap while a scheduled Reload swaps the table.
type Store struct {
	path string

	mu      sync.RWMutex
	entries []Entry
}

// NewStore loads the knowledge base from path.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewEmbeddedStore loads the knowledge base shipped with the binary. Used
// by the client's offline fallback and as the server default when no file
// is configured.
func NewEmbeddedStore() (*Store, error) {
	entries, err := parseEntries(embeddedData)
	if err != nil {
		return nil, fmt.Errorf("embedded qa data: %w", err)
	}
	return &Store{entries: entries}, nil
}

// Reload re-reads the file the store was created from. The previous table
// stays in place when the new file fails to load or validate.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read qa file: %w", err)
	}
	entries, err := parseEntries(data)
	if err != nil {
		return fmt.Errorf("invalid qa file %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// parseEntries validates raw JSON against the schema and decodes it.
func parseEntries(data []byte) ([]Entry, error) {
	resolveSchemaOnce.Do(func() {
		resolvedSchema, resolveSchemaError = entriesSchema.Resolve(nil)
	})
	if resolveSchemaError != nil {
		return nil, fmt.Errorf("failed to resolve qa schema: %w", resolveSchemaError)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("not valid JSON: %w", err)
	}
	if err := resolvedSchema.Validate(instance); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Question) == "" || strings.TrimSpace(e.Answer) == "" {
			return nil, fmt.Errorf("entry %d has an empty question or answer", i)
		}
	}
	return entries, nil
}

// Find resolves a question to an answer. Exact match on the normalized
// question wins; otherwise the first entry whose stored question contains
// any keyword of the input matches. Returns false when nothing matches.
func (s *Store) Find(question string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := normalize(question)

	for _, e := range s.entries {
		if normalize(e.Question) == q {
			return e.Answer, true
		}
	}

	keywords := extractKeywords(q)
	for _, e := range s.entries {
		stored := normalize(e.Question)
		for _, kw := range keywords {
			if strings.Contains(stored, kw) {
				return e.Answer, true
			}
		}
	}

	return "", false
}

// Questions returns all stored questions in load order.
func (s *Store) Questions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qs := make([]string, len(s.entries))
	for i, e := range s.entries {
		qs[i] = e.Question
	}
	return qs
}

// Search returns entries whose question or answer contains the query,
// case-insensitively.
func (s *Store) Search(query string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	var result []Entry
	for _, e := range s.entries {
		if strings.Contains(strings.ToLower(e.Question), q) ||
			strings.Contains(strings.ToLower(e.Answer), q) {
			result = append(result, e)
		}
	}
	return result
}

// Len returns the number of loaded entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// extractKeywords splits a normalized question into words long enough to
// be meaningful match candidates.
func extractKeywords(q string) []string {
	var keywords []string
	for _, w := range strings.Fields(q) {
		if utf8.RuneCountInString(w) >= minKeywordRunes {
			keywords = append(keywords, w)
		}
	}
	return keywords
}
