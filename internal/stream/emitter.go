// Package stream replays a fully generated answer to a consumer as an
// ordered sequence of push events, on a worker detached from the request.
//
// Protocol on one session: start, chunk*, then exactly one of done or error,
// then the channel is closed. A blank prompt yields a lone error event.
package stream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State of a session
type State int32

const (
	StateInit State = iota
	StateRunning
	StateDone
	StateError
	// StateCancelled means the consumer went away before a terminal event
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	case StateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Generator produces the complete answer for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate implements Generator
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Recorder receives stream metrics. *metrics.Collector implements it.
type Recorder interface {
	StreamStarted()
	StreamFinished()
	ObserveEvent(event string)
}

type nopRecorder struct{}

func (nopRecorder) StreamStarted()      {}
func (nopRecorder) StreamFinished()     {}
func (nopRecorder) ObserveEvent(string) {}

// Session is one streaming delivery
type Session struct {
	ID string

	events    chan Event
	state     atomic.Int32
	closeOnce sync.Once
}

func newSession(buffer int) *Session {
	return &Session{
		ID:     uuid.NewString(),
		events: make(chan Event, buffer),
	}
}

// Events returns the session's channel. It is closed exactly once, after the
// terminal event or when the consumer cancels.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State returns the current state
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.events) })
}

// Config for the emitter
type Config struct {
	ChunkDelay time.Duration // pause between chunks
	Buffer     int           // events buffered per session
}

// Emitter schedules stream sessions onto a Pool
type Emitter struct {
	pool    *Pool
	config  Config
	metrics Recorder
	logger  *zap.Logger
}

// NewEmitter creates an emitter. The pool must be started by the caller.
func NewEmitter(pool *Pool, cfg Config, recorder Recorder, logger *zap.Logger) *Emitter {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{pool: pool, config: cfg, metrics: recorder, logger: logger}
}

// Stream starts a session for prompt and returns without waiting for
// generation. Cancelling ctx stops the session; the consumer should cancel
// it when it disconnects.
func (e *Emitter) Stream(ctx context.Context, prompt string, gen Generator) (*Session, error) {
	s := newSession(e.config.Buffer)

	err := e.pool.Submit(func(poolCtx context.Context) {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(poolCtx, cancel)
		defer stop()

		e.run(runCtx, s, prompt, gen)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (e *Emitter) run(ctx context.Context, s *Session, prompt string, gen Generator) {
	log := e.logger.With(zap.String("session_id", s.ID))
	e.metrics.StreamStarted()
	defer e.metrics.StreamFinished()
	defer s.close()
	defer func() {
		if r := recover(); r != nil {
			log.Error("Stream session panicked", zap.Any("panic", r))
			e.fail(ctx, log, s, fmt.Sprintf("Error: %v", r))
		}
	}()

	if strings.TrimSpace(prompt) == "" {
		e.fail(ctx, log, s, "Message is required")
		return
	}

	s.setState(StateRunning)
	if !e.emit(ctx, log, s, startEvent()) {
		return
	}

	answer, err := gen.Generate(ctx, prompt)
	if err != nil {
		log.Warn("Stream generation failed", zap.Error(err))
		e.fail(ctx, log, s, "Error: "+err.Error())
		return
	}

	tokens := Tokenize(answer)
	for i, token := range tokens {
		if i > 0 && !e.pause(ctx, log, s) {
			return
		}
		if !e.emit(ctx, log, s, chunkEvent(token)) {
			return
		}
	}

	if e.emit(ctx, log, s, doneEvent()) {
		s.setState(StateDone)
		log.Debug("Stream session completed", zap.Int("chunks", len(tokens)))
	}
}

// emit delivers ev unless the consumer is gone
func (e *Emitter) emit(ctx context.Context, log *zap.Logger, s *Session, ev Event) bool {
	if ctx.Err() == nil {
		select {
		case s.events <- ev:
			e.metrics.ObserveEvent(string(ev.Type))
			return true
		case <-ctx.Done():
		}
	}
	log.Debug("Consumer gone, dropping event", zap.String("event", string(ev.Type)))
	s.setState(StateCancelled)
	return false
}

func (e *Emitter) fail(ctx context.Context, log *zap.Logger, s *Session, msg string) {
	if e.emit(ctx, log, s, errorEvent(msg)) {
		s.setState(StateError)
	}
}

func (e *Emitter) pause(ctx context.Context, log *zap.Logger, s *Session) bool {
	if e.config.ChunkDelay <= 0 {
		return true
	}
	timer := time.NewTimer(e.config.ChunkDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		log.Debug("Consumer gone during pacing delay")
		s.setState(StateCancelled)
		return false
	}
}
