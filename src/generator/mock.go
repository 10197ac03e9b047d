package generator

import (
	"context"
	_ "embed"
	"fmt"
	"iter"
	"math/rand/v2"
	"time"
)

// MarkdownTrigger is the prompt that makes the mock reply with a markdown
// showcase instead of an echo.
const MarkdownTrigger = "mockmd"

//go:embed markdown.txt
var mockMarkdown string

// Mock echoes the prompt back one character at a time with a typing delay.
type Mock struct {
	delay  time.Duration
	jitter time.Duration
}

// NewMock returns a mock that waits delay plus up to jitter between
// characters.
func NewMock(delay, jitter time.Duration) *Mock {
	return &Mock{delay: delay, jitter: jitter}
}

// DefaultMock types at 20 to 40ms per character.
func DefaultMock() *Mock {
	return NewMock(20*time.Millisecond, 20*time.Millisecond)
}

// Reply returns the full text the mock will stream for prompt.
func Reply(prompt string) string {
	if prompt == MarkdownTrigger {
		return mockMarkdown
	}
	return fmt.Sprintf("收到你的消息: \"%s\"。这是一个模拟的 AI 响应，用于演示打字机效果...", prompt)
}

func (m *Mock) Generate(ctx context.Context, prompt string) iter.Seq2[string, error] {
	text := Reply(prompt)
	return func(yield func(string, error) bool) {
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for _, r := range text {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(string(r), nil) {
				return
			}
			d := m.pause()
			if d <= 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(d)
			} else {
				timer.Reset(d)
			}
			select {
			case <-ctx.Done():
				yield("", ctx.Err())
				return
			case <-timer.C:
			}
		}
	}
}

func (m *Mock) pause() time.Duration {
	if m.jitter <= 0 {
		return m.delay
	}
	return m.delay + rand.N(m.jitter)
}
