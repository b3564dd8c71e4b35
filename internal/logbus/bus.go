package logbus

import (
	"sync"
	"time"
)

type Message struct {
	Type string `json:"type"`
	Time int64  `json:"time"`
	Data any    `json:"data"`
}

type LogData struct {
	Level  string         `json:"level"`
	Msg    string         `json:"msg"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Sink receives every published message synchronously, in publish order.
type Sink func(Message)

type Bus struct {
	mu     sync.RWMutex
	buf    []Message
	cap    int
	sinks  []Sink
	closed bool
}

func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 200
	}
	return &Bus{
		cap: capacity,
		buf: make([]Message, 0, capacity),
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.sinks = nil
	b.buf = nil
}

func (b *Bus) Snapshot() []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Message, len(b.buf))
	copy(out, b.buf)
	return out
}

func (b *Bus) Attach(s Sink) {
	if s == nil {
		return
	}
	b.mu.Lock()
	if !b.closed {
		b.sinks = append(b.sinks, s)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(typ string, data any) {
	msg := Message{
		Type: typ,
		Time: time.Now().UnixMilli(),
		Data: data,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if len(b.buf) < b.cap {
		b.buf = append(b.buf, msg)
	} else if b.cap > 0 {
		copy(b.buf, b.buf[1:])
		b.buf[b.cap-1] = msg
	}
	sinks := b.sinks
	// sink 在锁内调用，保证控制台输出顺序与发布顺序一致
	for _, s := range sinks {
		s(msg)
	}
	b.mu.Unlock()
}

func (b *Bus) Log(level, message string, fields map[string]any) {
	b.Publish("log", LogData{Level: level, Msg: message, Fields: fields})
}

// Logs returns the buffered log entries, oldest first.
func (b *Bus) Logs() []LogData {
	var out []LogData
	for _, m := range b.Snapshot() {
		if d, ok := m.Data.(LogData); ok {
			out = append(out, d)
		}
	}
	return out
}
