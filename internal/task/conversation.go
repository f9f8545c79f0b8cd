package task

// ContextMessage is one prior message in the thread the request came from.
type ContextMessage struct {
	Role   string `json:"role"` // "user" or "assistant"
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
}

// Conversation is the context a request arrives with: prior thread messages
// in order, plus an optional attached image.
type Conversation struct {
	ThreadID string           `json:"thread_id"`
	UserID   string           `json:"user_id,omitempty"`
	UserName string           `json:"user_name,omitempty"`
	Messages []ContextMessage `json:"messages,omitempty"`
	Image    *ImageRef        `json:"image,omitempty"`
}

// ThreadLength returns the number of prior messages.
func (c *Conversation) ThreadLength() int {
	if c == nil {
		return 0
	}
	return len(c.Messages)
}

// HasImage reports whether the request carries an attached image.
func (c *Conversation) HasImage() bool {
	return c != nil && c.Image != nil
}
