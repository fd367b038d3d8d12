package orchestrator

import (
	"sync"

	"github.com/langflow-ai/flowbuild/pkg/domain"
)

// messageSink accumulates the conversational output of one attempt.
// Token chunks are appended strictly in arrival order per message id,
// so replaying the same recorded sequence always reassembles the same
// final text.
type messageSink struct {
	mu    sync.Mutex
	order []string
	msgs  map[string]*domain.Message
}

func newMessageSink() *messageSink {
	return &messageSink{msgs: make(map[string]*domain.Message)}
}

// Add appends a message. Re-adding an existing id replaces its content
// but keeps its position.
func (s *messageSink) Add(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.msgs[msg.ID]; !ok {
		s.order = append(s.order, msg.ID)
	}
	copied := msg
	s.msgs[msg.ID] = &copied
}

// Remove drops a message from the sink.
func (s *messageSink) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.msgs[id]; !ok {
		return
	}
	delete(s.msgs, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// AppendToken appends a streaming chunk to an existing message. A
// chunk for an unknown id creates the message, so a token racing ahead
// of its add_message is not lost.
func (s *messageSink) AppendToken(id, chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.msgs[id]
	if !ok {
		msg = &domain.Message{ID: id}
		s.msgs[id] = msg
		s.order = append(s.order, id)
	}
	msg.Text += chunk
}

// Messages returns a snapshot of the sink in insertion order.
func (s *messageSink) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, 0, len(s.order))
	for _, id := range s.order {
		if msg, ok := s.msgs[id]; ok {
			out = append(out, *msg)
		}
	}
	return out
}

// Reset clears the sink for a delivery fallback restart.
func (s *messageSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.msgs = make(map[string]*domain.Message)
}
