// Package notify delivers user facing success and error messages produced
// by settled mutations.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Level distinguishes confirmation from failure messages.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Message is a delivered notification.
type Message struct {
	Level Level     `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Notifier receives fire-and-forget notifications.
type Notifier interface {
	NotifySuccess(message string)
	NotifyError(message string)
}

// Log writes notifications to a structured logger.
type Log struct {
	Logger *slog.Logger
}

// NotifySuccess implements Notifier.
func (l Log) NotifySuccess(message string) {
	l.logger().Info(message, slog.String("notification", string(LevelSuccess)))
}

// NotifyError implements Notifier.
func (l Log) NotifyError(message string) {
	l.logger().Error(message, slog.String("notification", string(LevelError)))
}

func (l Log) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Buffer retains the most recent notifications in memory.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	messages []Message
	nowFn    func() time.Time
}

// NewBuffer keeps up to capacity messages; zero or negative keeps all.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{capacity: capacity, nowFn: func() time.Time { return time.Now().UTC() }}
}

// NotifySuccess implements Notifier.
func (b *Buffer) NotifySuccess(message string) { b.add(LevelSuccess, message) }

// NotifyError implements Notifier.
func (b *Buffer) NotifyError(message string) { b.add(LevelError, message) }

func (b *Buffer) add(level Level, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, Message{Level: level, Text: text, At: b.nowFn()})
	if b.capacity > 0 && len(b.messages) > b.capacity {
		b.messages = append([]Message(nil), b.messages[len(b.messages)-b.capacity:]...)
	}
}

// Messages returns a copy of the retained notifications, oldest first.
func (b *Buffer) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.messages...)
}

// Multi fans notifications out to several notifiers in order.
type Multi []Notifier

// NotifySuccess implements Notifier.
func (m Multi) NotifySuccess(message string) {
	for _, n := range m {
		n.NotifySuccess(message)
	}
}

// NotifyError implements Notifier.
func (m Multi) NotifyError(message string) {
	for _, n := range m {
		n.NotifyError(message)
	}
}
