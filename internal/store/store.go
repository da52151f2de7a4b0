// Package store persists the image list between runs.
package store

import (
	"encoding/json"
	"errors"

	"github.com/youruser/instagrid/internal/grid"
	"k8s.io/klog/v2"
)

// Key is the fixed key the image list is saved under.
const Key = "instagrid-images"

// Store saves and restores the image list. Every operation is best-effort:
// failures are logged and otherwise ignored.
type Store struct {
	b Backend
}

func New(b Backend) *Store {
	return &Store{b: b}
}

func (s *Store) SaveImages(images []grid.Image) {
	if images == nil {
		images = []grid.Image{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		klog.Errorf("error saving images: %v", err)
		return
	}
	if err := s.b.Set(Key, data); err != nil {
		klog.Errorf("error saving images: %v", err)
	}
}

// LoadImages returns the saved list, or an empty one if nothing usable is
// stored.
func (s *Store) LoadImages() []grid.Image {
	data, err := s.b.Get(Key)
	if err != nil {
		if !errors.Is(err, ErrNoKey) {
			klog.Errorf("error loading images: %v", err)
		}
		return []grid.Image{}
	}
	var images []grid.Image
	if err := json.Unmarshal(data, &images); err != nil {
		klog.Errorf("error loading images: %v", err)
		return []grid.Image{}
	}
	if images == nil {
		images = []grid.Image{}
	}
	return images
}

func (s *Store) ClearImages() {
	if err := s.b.Delete(Key); err != nil {
		klog.Errorf("error clearing images: %v", err)
	}
}
