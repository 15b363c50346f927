package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"chat-window/internal/chat"
	"chat-window/internal/models"
)

const usage = "commands: /react <id> <emoji>, /list, /counts <id>, /quit"

var errQuit = errors.New("quit")

// printer serializes output from the input loop and the transport goroutine.
type printer struct {
	mu    sync.Mutex
	w     io.Writer
	loc   *time.Location
	state *chat.State
}

func newPrinter(w io.Writer, loc *time.Location) *printer {
	return &printer{w: w, loc: loc}
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) observe(ev chat.Event) {
	switch e := ev.(type) {
	case chat.MessageEvent:
		p.printf("%s\n", formatMessage(e.Message, p.loc))
	case chat.ReactionEvent:
		if p.state == nil {
			return
		}
		if msg, ok := p.state.Message(e.Update.MessageID); ok {
			p.printf("  #%d %s\n", msg.ID, formatCounts(msg.Reactions.Counts()))
		}
	case chat.ErrorEvent:
		p.printf("! server: %s\n", e.Message)
	case chat.CloseEvent:
		if e.Err != nil {
			p.printf("disconnected: %v\n", e.Err)
			return
		}
		p.printf("disconnected\n")
	}
}

// formatMessage renders "#12 [15:44] Author: text  👀 2".
func formatMessage(m models.Message, loc *time.Location) string {
	line := fmt.Sprintf("#%d [%s] %s: %s", m.ID, m.DisplayTime(loc), m.AuthorName, m.Text)
	if counts := m.Reactions.Counts(); len(counts) > 0 {
		line += "  " + formatCounts(counts)
	}
	return line
}

func formatCounts(counts []models.ReactionCount) string {
	if len(counts) == 0 {
		return "no reactions"
	}
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s %d", c.Emoji, c.Count)
	}
	return strings.Join(parts, " ")
}

type repl struct {
	state *chat.State
	out   *printer
}

// run reads lines from in until /quit, end of input, ctx is cancelled or the
// connection closes.
func (r *repl) run(ctx context.Context, in io.Reader, closed <-chan struct{}) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := r.exec(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				r.out.printf("! %v\n", err)
			}
		}
	}
}

func (r *repl) exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	fields := strings.Fields(line)

	switch fields[0] {
	case "/quit", "/exit":
		return errQuit

	case "/help":
		r.out.printf("%s\n", usage)
		return nil

	case "/list":
		msgs := r.state.OrderedMessages()
		if len(msgs) == 0 {
			r.out.printf("no messages yet\n")
		}
		for _, m := range msgs {
			r.out.printf("%s\n", formatMessage(m, r.out.loc))
		}
		return nil

	case "/counts":
		if len(fields) != 2 {
			return errors.New("usage: /counts <id>")
		}
		id, err := parseID(fields[1])
		if err != nil {
			return err
		}
		counts, err := r.state.ReactionCounts(id)
		if err != nil {
			return err
		}
		r.out.printf("  #%d %s\n", id, formatCounts(counts))
		return nil

	case "/react":
		if len(fields) != 3 {
			return errors.New("usage: /react <id> <emoji>")
		}
		id, err := parseID(fields[1])
		if err != nil {
			return err
		}
		return r.state.AddReaction(ctx, id, fields[2])
	}

	// anything else, including server-side emotes like /shrug, is a message
	return r.state.SendMessage(ctx, line)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid message id %q", s)
	}
	return id, nil
}
