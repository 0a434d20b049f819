package usecase

import (
	"sync"
	"time"

	"finnguide/internal/domain"
)

// ConversationWindow remembers the most recent exchange only. It is shared
// by every request the process serves.
type ConversationWindow struct {
	mu   sync.RWMutex
	last *domain.Exchange
	now  func() time.Time
}

// NewConversationWindow creates an empty window.
func NewConversationWindow() *ConversationWindow {
	return &ConversationWindow{now: time.Now}
}

// Save replaces the remembered exchange.
func (w *ConversationWindow) Save(input, output string) {
	ex := &domain.Exchange{Input: input, Output: output, At: w.now()}
	w.mu.Lock()
	w.last = ex
	w.mu.Unlock()
}

// Load returns a copy of the remembered exchange, or nil when empty.
func (w *ConversationWindow) Load() *domain.Exchange {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.last == nil {
		return nil
	}
	ex := *w.last
	return &ex
}

// Clear forgets the remembered exchange.
func (w *ConversationWindow) Clear() {
	w.mu.Lock()
	w.last = nil
	w.mu.Unlock()
}
