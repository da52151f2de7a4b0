package grid

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Image is a single record in the grid.
type Image struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

var (
	ErrDuplicateID = errors.New("duplicate image id")
	ErrNotFound    = errors.New("image not found")
	ErrEmptyURL    = errors.New("image url is empty")
)

// NewID returns a fresh record id.
func NewID() string {
	return uuid.NewString()
}

// List is the ordered set of images. Index 0 is the oldest record and is
// displayed last. Ids are unique. All methods are safe for concurrent use
// and never hand out the backing slice.
type List struct {
	mu    sync.RWMutex
	items []Image
}

// NewList builds a list from persisted records, dropping entries with an
// empty id or url and any repeated id after its first occurrence.
func NewList(items []Image) *List {
	l := &List{}
	seen := map[string]bool{}
	for _, it := range items {
		if it.ID == "" || it.URL == "" || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		l.items = append(l.items, it)
	}
	return l
}

func (l *List) indexOf(id string) int {
	for i, it := range l.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Add appends records, assigning an id to any record without one. Either
// all records are appended or none are.
func (l *List) Add(imgs ...Image) ([]Image, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := map[string]bool{}
	out := make([]Image, 0, len(imgs))
	for _, img := range imgs {
		if img.URL == "" {
			return nil, ErrEmptyURL
		}
		if img.ID == "" {
			img.ID = NewID()
		}
		if seen[img.ID] || l.indexOf(img.ID) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, img.ID)
		}
		seen[img.ID] = true
		out = append(out, img)
	}
	l.items = append(l.items, out...)
	return append([]Image(nil), out...), nil
}

// AppendURLs adds one freshly identified record per url.
func (l *List) AppendURLs(urls ...string) ([]Image, error) {
	imgs := make([]Image, len(urls))
	for i, u := range urls {
		imgs[i] = Image{URL: u}
	}
	return l.Add(imgs...)
}

// Move relocates the record with id to index to, shifting the records in
// between, like dropping a dragged tile onto another slot.
func (l *List) Move(id string, to int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.moveLocked(id, to)
}

func (l *List) moveLocked(id string, to int) error {
	from := l.indexOf(id)
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if to < 0 || to >= len(l.items) {
		return fmt.Errorf("move %s: index %d out of range [0,%d)", id, to, len(l.items))
	}
	if from == to {
		return nil
	}
	it := l.items[from]
	l.items = append(l.items[:from], l.items[from+1:]...)
	l.items = append(l.items[:to], append([]Image{it}, l.items[to:]...)...)
	return nil
}

// MoveOver moves the record with id into the slot currently held by overID.
func (l *List) MoveOver(id, overID string) error {
	if id == overID {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	to := l.indexOf(overID)
	if to < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, overID)
	}
	return l.moveLocked(id, to)
}

// Replace swaps the url of a record in place, keeping its id and position.
func (l *List) Replace(id, url string) error {
	if url == "" {
		return ErrEmptyURL
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	l.items[i].URL = url
	return nil
}

func (l *List) Remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return nil
}

func (l *List) Get(id string) (Image, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := l.indexOf(id)
	if i < 0 {
		return Image{}, false
	}
	return l.items[i], true
}

func (l *List) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Snapshot returns a copy in storage order.
func (l *List) Snapshot() []Image {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Image(nil), l.items...)
}

// Display returns a copy in display order: newest first.
func (l *List) Display() []Image {
	return Reversed(l.Snapshot())
}

// Reversed returns a reversed copy of imgs.
func Reversed(imgs []Image) []Image {
	out := make([]Image, len(imgs))
	for i, img := range imgs {
		out[len(imgs)-1-i] = img
	}
	return out
}
