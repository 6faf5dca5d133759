package session

import (
	"encoding/json"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Message is a one-shot notice shown on the next rendered page.
type Message struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Flashes is the flash queue of the current session.
type Flashes struct {
	s sessions.Session
}

// Flash returns the flash queue bound to the request session.
func Flash(c *gin.Context) Flashes {
	return Flashes{s: sessions.Default(c)}
}

// Push queues a message and persists the session.
func (f Flashes) Push(kind, text string) error {
	raw, err := json.Marshal(Message{Kind: kind, Text: text})
	if err != nil {
		return err
	}
	f.s.AddFlash(string(raw))
	return f.s.Save()
}

// Pop returns the queued messages in order and clears the queue.
func (f Flashes) Pop() []Message {
	values := f.s.Flashes()
	if len(values) == 0 {
		return nil
	}
	_ = f.s.Save()
	out := make([]Message, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(raw), &msg); err == nil && msg.Text != "" {
			out = append(out, msg)
		}
	}
	return out
}
