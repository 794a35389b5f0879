package outs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"djBot/internal/domain"
)

// ErrNoSender se devuelve cuando la plataforma no tiene adapter registrado.
var ErrNoSender = errors.New("outs: no sender registered")

// Sender es la interfaz que deben implementar los adapters de salida (Twitch, Kick, etc.)
type Sender interface {
	// channelID: canal al que hay que responder (ej. "#zeroproject" en Twitch)
	SendMessage(ctx context.Context, platform domain.Platform, channelID, text string) error
}

// MultiSender enruta los mensajes al sender correcto según la plataforma.
type MultiSender struct {
	mu      sync.RWMutex
	senders map[domain.Platform]Sender
}

var _ domain.OutgoingMessagePort = (*MultiSender)(nil)

func NewMultiSender() *MultiSender {
	return &MultiSender{
		senders: make(map[domain.Platform]Sender),
	}
}

func (m *MultiSender) Register(platform domain.Platform, sender Sender) {
	if m == nil || sender == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.senders[platform] = sender
}

func (m *MultiSender) Unregister(platform domain.Platform) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.senders, platform)
}

// Platforms lists the registered platforms in name order.
func (m *MultiSender) Platforms() []domain.Platform {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Platform, 0, len(m.senders))
	for p := range m.senders {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SendMessage busca el sender para esa plataforma y delega el envío.
func (m *MultiSender) SendMessage(ctx context.Context, platform domain.Platform, channelID, text string) error {
	if m == nil {
		return ErrNoSender
	}
	m.mu.RLock()
	sender, ok := m.senders[platform]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSender, platform)
	}
	if text == "" {
		return nil
	}
	return sender.SendMessage(ctx, platform, channelID, text)
}
