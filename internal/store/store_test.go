package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/youruser/instagrid/internal/grid"
)

func backends(t *testing.T) map[string]Backend {
	fb, err := NewFileBackend(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	return map[string]Backend{"file": fb, "memory": NewMemoryBackend()}
}

func TestSaveLoadClear(t *testing.T) {
	images := []grid.Image{{ID: "a", URL: "data:image/png;base64,AAAA"}, {ID: "b", URL: "https://example.com/b.jpg"}}

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(b)
			if got := s.LoadImages(); len(got) != 0 {
				t.Fatalf("Expected empty list before save, got %v", got)
			}
			s.SaveImages(images)
			if got := s.LoadImages(); !reflect.DeepEqual(got, images) {
				t.Errorf("LoadImages() = %v, want %v", got, images)
			}
			s.ClearImages()
			if got := s.LoadImages(); got == nil || len(got) != 0 {
				t.Errorf("Expected empty non-nil list after clear, got %#v", got)
			}
			s.ClearImages()
		})
	}
}

func TestSaveEmptyList(t *testing.T) {
	b := NewMemoryBackend()
	New(b).SaveImages(nil)
	data, err := b.Get(Key)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("Expected [], got %s", data)
	}
}

func TestCorruptDataLoadsEmpty(t *testing.T) {
	b := NewMemoryBackend()
	b.Set(Key, []byte("{not json"))
	if got := New(b).LoadImages(); len(got) != 0 {
		t.Errorf("Expected empty list, got %v", got)
	}
}

func TestQuotaExceededIsIgnored(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir, 64)
	if err != nil {
		t.Fatal(err)
	}
	s := New(b)
	small := []grid.Image{{ID: "a", URL: "u"}}
	s.SaveImages(small)

	big := []grid.Image{{ID: "a", URL: string(make([]byte, 128))}}
	if err := b.Set(Key, make([]byte, 128)); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}
	s.SaveImages(big)
	if got := s.LoadImages(); !reflect.DeepEqual(got, small) {
		t.Errorf("Expected previous save to survive, got %v", got)
	}
}

func TestQuotaCountsOtherKeys(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "other.json"), make([]byte, 60), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := NewFileBackend(dir, 64)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Set(Key, make([]byte, 10)); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("Expected ErrQuotaExceeded, got %v", err)
	}
	if err := b.Set(Key, make([]byte, 4)); err != nil {
		t.Errorf("Set within quota: %v", err)
	}
	if err := b.Set(Key, make([]byte, 4)); err != nil {
		t.Errorf("overwrite within quota: %v", err)
	}
}
