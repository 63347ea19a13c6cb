package agent

import (
	"sync"

	"go.uber.org/zap"

	"sysdesign-assistant/backend/internal/assistant"
	"sysdesign-assistant/backend/internal/constants"
	"sysdesign-assistant/backend/internal/store"
	"sysdesign-assistant/backend/pkg/logger"
)

// Session holds what every orchestration component needs: the remote
// service, the handle cache and the fixed model agents are created with.
// Build one per process and pass it around.
type Session struct {
	service              assistant.Service
	store                store.HandleStore
	model                string
	maxToolRounds        int
	responseInstructions string
	logger               *zap.Logger

	mu          sync.Mutex
	threadLocks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxToolRounds bounds how many tool-output submissions one run may take
func WithMaxToolRounds(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxToolRounds = n
		}
	}
}

// WithResponseInstructions replaces the per-run response directive
func WithResponseInstructions(instructions string) Option {
	return func(s *Session) {
		s.responseInstructions = instructions
	}
}

// NewSession creates a session
func NewSession(service assistant.Service, handles store.HandleStore, model string, opts ...Option) *Session {
	s := &Session{
		service:              service,
		store:                handles,
		model:                model,
		maxToolRounds:        constants.DefaultMaxToolRounds,
		responseInstructions: constants.ResponseInstructions,
		logger:               logger.Named("agent"),
		threadLocks:          make(map[string]*threadLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Service returns the remote assistant service
func (s *Session) Service() assistant.Service {
	return s.service
}

// Model returns the model new agents are created with
func (s *Session) Model() string {
	return s.model
}

// lockThread serializes work on one thread so it never has two runs in flight.
// The returned func releases the lock.
func (s *Session) lockThread(threadID string) func() {
	s.mu.Lock()
	l, ok := s.threadLocks[threadID]
	if !ok {
		l = &threadLock{}
		s.threadLocks[threadID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.threadLocks, threadID)
		}
		s.mu.Unlock()
	}
}
