package agent

import (
	"context"

	"go.uber.org/zap"

	"sysdesign-assistant/backend/internal/constants"
	apperrors "sysdesign-assistant/backend/pkg/errors"
)

// ConversationManager resolves the thread a pipeline runs on
type ConversationManager struct {
	session *Session
	fresh   bool
}

// NewConversationManager reuses the cached thread when there is one
func NewConversationManager(session *Session) *ConversationManager {
	return &ConversationManager{session: session}
}

// Fresh returns a manager that always opens a new, uncached thread
func (m *ConversationManager) Fresh() *ConversationManager {
	return &ConversationManager{session: m.session, fresh: true}
}

// GetOrCreateConversation returns the thread handle for this execution
func (m *ConversationManager) GetOrCreateConversation(ctx context.Context) (string, error) {
	if !m.fresh {
		handle, ok, err := m.session.store.Get(ctx, constants.ThreadKey)
		if err != nil {
			return "", err
		}
		if ok {
			m.session.logger.Info("Using existing thread", zap.String("thread_id", handle))
			return handle, nil
		}
	}

	handle, err := m.session.service.CreateThread(ctx)
	if err != nil {
		return "", apperrors.NewRemoteRequestFailed("create_thread", err)
	}
	m.session.logger.Info("New thread created",
		zap.String("thread_id", handle),
		zap.Bool("fresh", m.fresh),
	)

	if !m.fresh {
		if err := m.session.store.Set(ctx, constants.ThreadKey, handle); err != nil {
			m.session.logger.Warn("Failed to cache thread handle", zap.String("thread_id", handle), zap.Error(err))
		}
	}
	return handle, nil
}
