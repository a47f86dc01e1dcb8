package session

import "hfllm/internal/models"

// Conversation stores the ordered turns exchanged during a session.
type Conversation struct {
	messages []models.Message
}

// Add appends a message.
func (c *Conversation) Add(role models.Role, content string) {
	c.messages = append(c.messages, models.Message{Role: role, Content: content})
}

// Messages returns a copy of the history in chronological order.
func (c *Conversation) Messages() []models.Message {
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Clear discards the whole history.
func (c *Conversation) Clear() {
	c.messages = nil
}

// truncate drops every message after the first n.
func (c *Conversation) truncate(n int) {
	if n < len(c.messages) {
		c.messages = c.messages[:n]
	}
}
