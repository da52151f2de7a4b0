package grid

import "sync"

// Board is one profile being arranged: its images plus the active cell
// shape. OnChange, when set, receives a snapshot after every list mutation
// made through the board.
type Board struct {
	Images *List

	mu       sync.RWMutex
	ratio    AspectRatio
	OnChange func([]Image)

	changeMu sync.Mutex
}

func NewBoard(images []Image, ratio AspectRatio) *Board {
	if !ratio.Valid() {
		ratio = Square
	}
	return &Board{Images: NewList(images), ratio: ratio}
}

func (b *Board) Ratio() AspectRatio {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ratio
}

func (b *Board) SetRatio(r AspectRatio) error {
	if !r.Valid() {
		return ErrUnknownAspectRatio
	}
	b.mu.Lock()
	b.ratio = r
	b.mu.Unlock()
	return nil
}

// Changed reports a mutation to OnChange. Calls are serialized, so the
// last snapshot delivered is never older than one delivered before it.
func (b *Board) Changed() {
	if b.OnChange == nil {
		return
	}
	b.changeMu.Lock()
	defer b.changeMu.Unlock()
	b.OnChange(b.Images.Snapshot())
}
