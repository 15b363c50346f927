package models

import (
	"cmp"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	MaxTextLength     = 500
	DefaultAuthorName = "Anonymous"
)

var (
	ErrEmptyMessage   = errors.New("message text cannot be empty")
	ErrMessageTooLong = errors.New("message too long (max 500 characters)")
)

// Message is one confirmed chat message. Everything except Reactions is fixed
// once the server has assigned the id.
type Message struct {
	ID         int64     `json:"id"`
	AuthorName string    `json:"author_name"`
	CreatedAt  int64     `json:"created_at"`
	Text       string    `json:"text"`
	Reactions  Reactions `json:"reactions"`
}

// Compare orders messages by creation time, then by id.
func Compare(a, b Message) int {
	if c := cmp.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Clone returns a copy whose reactions can be mutated independently.
func (m Message) Clone() Message {
	m.Reactions = m.Reactions.Clone()
	return m
}

// DisplayTime renders the creation time as HH:MM in loc.
func (m Message) DisplayTime(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(m.CreatedAt, 0).In(loc).Format("15:04")
}

// Initial is the upper-cased first letter of the author, used for avatars.
func (m Message) Initial() string {
	name := strings.TrimSpace(m.AuthorName)
	if name == "" {
		return "?"
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r))
}

// ValidateText trims text and enforces the length rules shared by the client
// and the server.
func ValidateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return "", ErrMessageTooLong
	}
	return text, nil
}

func NormalizeAuthor(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultAuthorName
	}
	return name
}
