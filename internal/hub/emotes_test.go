package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEmote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello", "hello"},
		{"/shrug", "¯\\_(ツ)_/¯"},
		{"/shrug whatever", "whatever ¯\\_(ツ)_/¯"},
		{"/deploy friday", "friday 🚀"},
		{"/sparkles shiny", "✨ shiny ✨"},
		{"/sparkles", "✨"},
		{"/unknown thing", "/unknown thing"},
		{"not /shrug", "not /shrug"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEmote(tt.in))
		})
	}
}
