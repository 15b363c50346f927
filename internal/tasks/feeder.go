// Package tasks runs background jobs for the dev server.
package tasks

import (
	"fmt"
	"sync"

	"chat-window/internal/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	ModeOff    = ""
	ModeNormal = "normal"
	ModeStress = "stress"
)

// Poster is where generated messages go. hub.Hub implements it.
type Poster interface {
	Post(text, author string) (models.Message, error)
}

var normalMessages = []string{
	"Great presentation!",
	"Can you share the slides?",
	"Very helpful, thanks",
	"What about mobile support?",
	"Love this new feature!",
}

type schedule struct {
	expr  string
	limit int
	next  func(i int) (text, author string)
}

var schedules = map[string]schedule{
	ModeNormal: {
		expr:  "@every 10s",
		limit: len(normalMessages),
		next: func(i int) (string, string) {
			return normalMessages[i], fmt.Sprintf("User%d", i+1)
		},
	},
	// cron cannot fire faster than once a second
	ModeStress: {
		expr:  "@every 1s",
		limit: 300,
		next: func(i int) (string, string) {
			return fmt.Sprintf("Stress test message #%d", i), fmt.Sprintf("Bot%d", i%10)
		},
	},
}

// MockFeeder posts a welcome message and then a fixed series of fake
// messages so a client has something to render.
type MockFeeder struct {
	poster Poster
	mode   string
	logger *zap.Logger

	mu    sync.Mutex
	cron  *cron.Cron
	entry cron.EntryID
	sent  int
}

func NewMockFeeder(poster Poster, mode string, logger *zap.Logger) *MockFeeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockFeeder{
		poster: poster,
		mode:   mode,
		logger: logger.Named("feeder"),
	}
}

// Start schedules the feed. It does nothing when the mode is off.
func (f *MockFeeder) Start() error {
	if f.mode == ModeOff {
		return nil
	}
	sched, ok := schedules[f.mode]
	if !ok {
		return fmt.Errorf("unknown MOCK_MODE %q (want %q or %q)", f.mode, ModeNormal, ModeStress)
	}

	f.post("Welcome to the chat!", "System")

	c := cron.New()
	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := c.AddFunc(sched.expr, f.tick)
	if err != nil {
		return fmt.Errorf("error scheduling mock feed: %w", err)
	}
	f.cron = c
	f.entry = id
	c.Start()

	f.logger.Info("mock feed started", zap.String("mode", f.mode), zap.String("schedule", sched.expr))
	return nil
}

// Stop halts the schedule and waits for a running tick to finish.
func (f *MockFeeder) Stop() {
	f.mu.Lock()
	c := f.cron
	f.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

func (f *MockFeeder) tick() {
	sched := schedules[f.mode]

	f.mu.Lock()
	if f.sent >= sched.limit {
		if f.cron != nil {
			f.cron.Remove(f.entry)
		}
		f.mu.Unlock()
		return
	}
	i := f.sent
	f.sent++
	f.mu.Unlock()

	text, author := sched.next(i)
	f.post(text, author)

	if i+1 == sched.limit {
		f.logger.Info("mock feed finished", zap.Int("messages", sched.limit))
	}
}

func (f *MockFeeder) post(text, author string) {
	if _, err := f.poster.Post(text, author); err != nil {
		f.logger.Warn("failed to post mock message", zap.Error(err))
	}
}
