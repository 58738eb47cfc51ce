package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
)

// wireID accepts a JSON string or number. The backend uses integer ids;
// the client treats them as opaque strings.
type wireID string

func (id *wireID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s", data)
	}
	*id = wireID(n.String())
	return nil
}

// wireTime accepts RFC 3339 timestamps and naive ISO-8601 timestamps,
// which are read as UTC.
type wireTime time.Time

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
			*t = wireTime{}
			return nil
		}
		return fmt.Errorf("invalid timestamp %s", data)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*t = wireTime{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = wireTime(parsed)
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*t = wireTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

type wireSession struct {
	ID           wireID   `json:"id"`
	Title        string   `json:"title"`
	CreatedAt    wireTime `json:"created_at"`
	UpdatedAt    wireTime `json:"updated_at"`
	MessageCount *int     `json:"message_count"`
}

func (w wireSession) summary() chat.SessionSummary {
	s := chat.SessionSummary{
		ID:        string(w.ID),
		Title:     w.Title,
		CreatedAt: time.Time(w.CreatedAt),
		UpdatedAt: time.Time(w.UpdatedAt),
	}
	if w.MessageCount != nil {
		s.MessageCount = *w.MessageCount
	}
	return s
}

type wireExchange struct {
	ID        wireID   `json:"id"`
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	Timestamp wireTime `json:"timestamp"`
}

type wireDetail struct {
	wireSession
	Messages []wireExchange `json:"messages"`
}

func (w wireDetail) detail() chat.SessionDetail {
	d := chat.SessionDetail{SessionSummary: w.summary()}
	for _, m := range w.Messages {
		d.Exchanges = append(d.Exchanges, chat.Exchange{
			ID:        string(m.ID),
			Question:  m.Question,
			Answer:    m.Answer,
			Timestamp: time.Time(m.Timestamp),
		})
	}
	if w.MessageCount == nil {
		d.MessageCount = len(d.Exchanges)
	}
	return d
}

type wireReply struct {
	Answer    string   `json:"answer"`
	Timestamp wireTime `json:"timestamp"`
}

func (w wireReply) reply() chat.Reply {
	return chat.Reply{Answer: w.Answer, Timestamp: time.Time(w.Timestamp)}
}
