package usecase

import (
	"context"
	"strings"
	"sync"
)

// Transcript accumulates dictation results in cycle order. A cycle reserves
// its slot when its clip is captured and resolves it once transcription
// returns; text only becomes visible when every earlier slot is resolved.
type Transcript struct {
	mu      sync.Mutex
	parts   []string
	slots   []transcriptSlot
	base    int
	sealed  bool
	settled chan struct{}
}

type transcriptSlot struct {
	text string
	done bool
}

func NewTranscript() *Transcript {
	settled := make(chan struct{})
	close(settled)
	return &Transcript{settled: settled}
}

func (t *Transcript) reserve() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealed {
		return 0, false
	}
	if len(t.slots) == 0 {
		t.settled = make(chan struct{})
	}
	t.slots = append(t.slots, transcriptSlot{})
	return t.base + len(t.slots) - 1, true
}

// resolve stores the text of a reserved slot and reports whether the visible
// transcript grew.
func (t *Transcript) resolve(index int, text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealed {
		return false
	}
	i := index - t.base
	if i < 0 || i >= len(t.slots) || t.slots[i].done {
		return false
	}
	t.slots[i] = transcriptSlot{text: strings.TrimSpace(text), done: true}

	grew := false
	for len(t.slots) > 0 && t.slots[0].done {
		if t.slots[0].text != "" {
			t.parts = append(t.parts, t.slots[0].text)
			grew = true
		}
		t.slots = t.slots[1:]
		t.base++
	}
	if len(t.slots) == 0 {
		close(t.settled)
	}
	return grew
}

// Text is the space-joined transcript committed so far.
func (t *Transcript) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.parts, " ")
}

// Pending reports how many captured clips still wait for their text.
func (t *Transcript) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// Wait blocks until every reserved slot is resolved or ctx is done.
func (t *Transcript) Wait(ctx context.Context) error {
	t.mu.Lock()
	settled := t.settled
	t.mu.Unlock()

	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Seal finalizes the transcript. Unresolved slots are dropped and later
// results are ignored. Sealing twice returns the same text.
func (t *Transcript) Seal() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.sealed {
		t.sealed = true
		if len(t.slots) > 0 {
			t.slots = nil
			close(t.settled)
		}
	}
	return strings.Join(t.parts, " ")
}

func (t *Transcript) Sealed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sealed
}
