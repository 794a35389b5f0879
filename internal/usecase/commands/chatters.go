package commands

import (
	"math/rand/v2"
	"sync"

	"djBot/internal/domain"
)

// ActiveChatters remembers everyone who spoke since start, for !winner.
type ActiveChatters struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func NewActiveChatters() *ActiveChatters {
	return &ActiveChatters{names: make(map[string]struct{})}
}

func (a *ActiveChatters) ObserveLine(msg domain.Message) {
	if msg.Username == "" {
		return
	}
	a.mu.Lock()
	a.names[msg.Username] = struct{}{}
	a.mu.Unlock()
}

func (a *ActiveChatters) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.names)
}

// Pick returns a uniformly random chatter.
func (a *ActiveChatters) Pick(rnd *rand.Rand) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.names) == 0 {
		return "", false
	}
	var n int
	if rnd != nil {
		n = rnd.IntN(len(a.names))
	} else {
		n = rand.IntN(len(a.names))
	}
	for name := range a.names {
		if n == 0 {
			return name, true
		}
		n--
	}
	return "", false
}
