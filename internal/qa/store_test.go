package qa

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedStore_Loads(t *testing.T) {
	s, err := NewEmbeddedStore()
	if err != nil {
		t.Fatalf("NewEmbeddedStore() error = %v", err)
	}
	if s.Len() == 0 {
		t.Fatal("embedded store is empty")
	}
}

func TestStore_Find(t *testing.T) {
	s, err := NewEmbeddedStore()
	if err != nil {
		t.Fatalf("NewEmbeddedStore() error = %v", err)
	}

	tests := []struct {
		name     string
		question string
		wantHit  bool
	}{
		{"exact match", "¿Qué son los Hemp Hearts?", true},
		{"exact match different case", "¿qué son los hemp hearts?", true},
		{"exact match with padding", "  ¿Qué son los Hemp Hearts?  ", true},
		{"keyword match", "hablame de los hemp hearts", true},
		{"keyword match on envíos", "hacen envíos?", true},
		{"nonsense", "asdfqwerty nonsense", false},
		{"no matching keywords", "a ver si da", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, ok := s.Find(tt.question)
			if ok != tt.wantHit {
				t.Fatalf("Find(%q) hit = %v, want %v", tt.question, ok, tt.wantHit)
			}
			if ok && answer == "" {
				t.Error("matched entry has empty answer")
			}
		})
	}
}

func TestStore_ExactMatchWinsOverKeyword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qa.json")
	data := `[
		{"question": "precio del aceite", "answer": "aceite barato"},
		{"question": "precio", "answer": "depende del producto"}
	]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	answer, ok := s.Find("precio")
	if !ok || answer != "depende del producto" {
		t.Errorf("Find(precio) = %q, %v; want exact match answer", answer, ok)
	}
}

func TestStore_InvalidFileRejected(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"not an array", `{"question": "q", "answer": "a"}`},
		{"missing answer", `[{"question": "q"}]`},
		{"wrong types", `[{"question": 1, "answer": true}]`},
		{"empty strings", `[{"question": " ", "answer": "a"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(path, []byte(tt.data), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewStore(path); err == nil {
				t.Errorf("NewStore() accepted invalid data %q", tt.data)
			}
		})
	}
}

func TestStore_ReloadKeepsOldTableOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qa.json")
	if err := os.WriteFile(path, []byte(`[{"question": "hola", "answer": "buenas"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if err := os.WriteFile(path, []byte(`broken`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err == nil {
		t.Fatal("Reload() accepted broken file")
	}

	if _, ok := s.Find("hola"); !ok {
		t.Error("previous table lost after failed reload")
	}
}

func TestStore_Search(t *testing.T) {
	s, err := NewEmbeddedStore()
	if err != nil {
		t.Fatalf("NewEmbeddedStore() error = %v", err)
	}

	results := s.Search("cáñamo")
	if len(results) == 0 {
		t.Fatal("Search(cáñamo) returned nothing")
	}

	if got := s.Search("zzzzz"); len(got) != 0 {
		t.Errorf("Search(zzzzz) = %d results, want 0", len(got))
	}
}

func TestStore_Questions(t *testing.T) {
	s, err := NewEmbeddedStore()
	if err != nil {
		t.Fatalf("NewEmbeddedStore() error = %v", err)
	}
	qs := s.Questions()
	if len(qs) != s.Len() {
		t.Errorf("Questions() len = %d, want %d", len(qs), s.Len())
	}
	for i, q := range qs {
		if q == "" {
			t.Errorf("Questions()[%d] is empty", i)
		}
	}
}
