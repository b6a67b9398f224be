package memory

// History is an append-only message log. It is not safe for concurrent
// writers; the controller that owns it is the only one that appends.
type History struct {
	msgs []Message
}

// NewHistory returns a history seeded with msgs (copied).
func NewHistory(msgs ...Message) *History {
	h := &History{}
	for _, m := range msgs {
		h.Append(m)
	}
	return h
}

// Append adds m at the end. The content slice is copied so later changes
// by the caller do not leak into history.
func (h *History) Append(m Message) {
	blocks := make([]Block, len(m.Content))
	copy(blocks, m.Content)
	h.msgs = append(h.msgs, Message{Role: m.Role, Content: blocks})
}

func (h *History) Len() int { return len(h.msgs) }

// Messages returns a copy of the log, oldest first.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Last returns the newest message, if any.
func (h *History) Last() (Message, bool) {
	if len(h.msgs) == 0 {
		return Message{}, false
	}
	return h.msgs[len(h.msgs)-1], true
}
