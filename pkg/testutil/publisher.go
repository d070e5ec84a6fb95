package testutil

import (
	"context"
	"sync"
)

// Message is one call captured by RecordingPublisher.
type Message struct {
	Topic   string
	Key     string
	Payload []byte
	// CtxErr is ctx.Err() observed when Publish was called.
	CtxErr error
}

// RecordingPublisher captures published messages. When Fail is set its result
// is returned instead of recording.
type RecordingPublisher struct {
	mu       sync.Mutex
	messages []Message
	Fail     func(topic, key string) error
}

func (p *RecordingPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if p.Fail != nil {
		if err := p.Fail(topic, key); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{
		Topic:   topic,
		Key:     key,
		Payload: append([]byte(nil), payload...),
		CtxErr:  ctx.Err(),
	})
	return nil
}

// Messages returns a copy of everything published so far.
func (p *RecordingPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

// Len returns how many messages were published.
func (p *RecordingPublisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}
