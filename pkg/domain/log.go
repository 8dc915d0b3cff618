package domain

import "fmt"

// ConversationLog is the ordered sequence of committed messages of one session.
// The zero value is an empty log.
type ConversationLog struct {
	messages []Message
}

// NewConversationLog creates a log holding copies of msgs.
// It fails if any message is not committed.
func NewConversationLog(msgs ...Message) (*ConversationLog, error) {
	l := &ConversationLog{messages: make([]Message, 0, len(msgs))}
	for _, m := range msgs {
		if err := l.Append(m); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Append adds a committed message to the end of the log.
func (l *ConversationLog) Append(m Message) error {
	if !m.Committed {
		return fmt.Errorf("%w: cannot append uncommitted %s message %s", ErrInvalidState, m.Role, m.ID)
	}
	l.messages = append(l.messages, m.Clone())
	return nil
}

// Messages returns a copy of the log contents.
func (l *ConversationLog) Messages() []Message {
	out := make([]Message, len(l.messages))
	for i, m := range l.messages {
		out[i] = m.Clone()
	}
	return out
}

// Last returns the most recent message.
func (l *ConversationLog) Last() (Message, bool) {
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1].Clone(), true
}

// Len returns the number of messages.
func (l *ConversationLog) Len() int {
	return len(l.messages)
}

// Clone returns an independent copy of the log.
func (l *ConversationLog) Clone() *ConversationLog {
	return &ConversationLog{messages: l.Messages()}
}

// Entries projects the log to role/content pairs.
func (l *ConversationLog) Entries() []HistoryEntry {
	return Entries(l.messages)
}

// Entries projects messages to role/content pairs.
func Entries(msgs []Message) []HistoryEntry {
	out := make([]HistoryEntry, len(msgs))
	for i, m := range msgs {
		out[i] = HistoryEntry{Role: m.Role, Content: m.Content}
	}
	return out
}

// ValidateTurn checks that msgs form one complete turn:
// one user message, zero or more model/tool pairs, and a final model
// message without a pending tool call.
func ValidateTurn(msgs []Message) error {
	if len(msgs) < 2 {
		return fmt.Errorf("%w: turn has %d messages, need at least 2", ErrInvalidState, len(msgs))
	}
	if msgs[0].Role != RoleUser {
		return fmt.Errorf("%w: turn starts with %s message", ErrInvalidState, msgs[0].Role)
	}
	body := msgs[1:]
	if len(body)%2 == 0 {
		return fmt.Errorf("%w: turn does not end with a model message", ErrInvalidState)
	}
	for i, m := range body {
		if !m.Committed {
			return fmt.Errorf("%w: message %d is not committed", ErrInvalidState, i+1)
		}
		last := i == len(body)-1
		switch {
		case i%2 == 0 && m.Role != RoleModel:
			return fmt.Errorf("%w: message %d is %s, want model", ErrInvalidState, i+1, m.Role)
		case i%2 == 1 && m.Role != RoleTool:
			return fmt.Errorf("%w: message %d is %s, want tool", ErrInvalidState, i+1, m.Role)
		case i%2 == 0 && !last && !m.HasPendingToolCall():
			return fmt.Errorf("%w: model message %d is followed by a tool message without a tool call", ErrInvalidState, i+1)
		case last && m.HasPendingToolCall():
			return fmt.Errorf("%w: turn ends with a pending tool call", ErrInvalidState)
		}
	}
	return nil
}
