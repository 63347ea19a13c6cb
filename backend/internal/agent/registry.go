package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"sysdesign-assistant/backend/internal/assistant"
	"sysdesign-assistant/backend/internal/constants"
	apperrors "sysdesign-assistant/backend/pkg/errors"
)

var nonKeyChars = regexp.MustCompile(`[^A-Z0-9]+`)

// agentLookupTimeout bounds one coalesced lookup once it is detached from its caller
const agentLookupTimeout = 2 * time.Minute

// AgentKey derives the cache key for a role:
// "Requirements Analysis Agent" -> OPENAI_REQUIREMENTS_ANALYSIS_AGENT_ASSISTANT_KEY
func AgentKey(role string) string {
	normalized := nonKeyChars.ReplaceAllString(strings.ToUpper(role), "_")
	normalized = strings.Trim(normalized, "_")
	return constants.AgentKeyPrefix + normalized + constants.AgentKeySuffix
}

// Registry maps roles to remote agent handles, creating agents on first use
type Registry struct {
	session *Session
	group   singleflight.Group
}

// NewRegistry creates a registry over the session's store and service
func NewRegistry(session *Session) *Registry {
	return &Registry{session: session}
}

// GetOrCreateAgent returns the cached handle for def.Role, or creates the agent
// remotely and caches its handle. A cached handle is trusted as-is.
func (r *Registry) GetOrCreateAgent(ctx context.Context, def assistant.AgentDefinition) (string, error) {
	role := strings.TrimSpace(def.Role)
	if role == "" {
		return "", apperrors.NewConfigValidationFailed("role", "agent role must not be empty")
	}
	if nonKeyChars.ReplaceAllString(strings.ToUpper(role), "") == "" {
		return "", apperrors.NewConfigValidationFailed("role", fmt.Sprintf("role %q has no usable characters", role))
	}
	key := AgentKey(role)

	// The shared lookup outlives any one caller; each caller stops waiting on its own ctx.
	ch := r.group.DoChan(key, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), agentLookupTimeout)
		defer cancel()
		return r.getOrCreate(lookupCtx, key, def)
	})

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apperrors.NewContextTimeout("get_or_create_agent", 0, ctx.Err())
		}
		return "", apperrors.NewContextCancelled("get_or_create_agent", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			r.session.logger.Debug("Agent lookup coalesced", zap.String("role", role))
		}
		return res.Val.(string), nil
	}
}

func (r *Registry) getOrCreate(ctx context.Context, key string, def assistant.AgentDefinition) (string, error) {
	log := r.session.logger.With(zap.String("role", def.Role), zap.String("key", key))

	handle, ok, err := r.session.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if ok {
		log.Info("Using existing agent", zap.String("agent_id", handle))
		return handle, nil
	}

	if def.Function != nil {
		if err := validateFunctionSchema(def.Function); err != nil {
			return "", err
		}
	}

	handle, err = r.session.service.CreateAgent(ctx, def, r.session.model)
	if err != nil {
		return "", apperrors.NewAgentCreationFailed(def.Role, err)
	}
	log.Info("New agent created", zap.String("agent_id", handle))

	if err := r.session.store.Set(ctx, key, handle); err != nil {
		// The agent exists remotely; the next process will just create another one
		log.Warn("Failed to cache agent handle", zap.String("agent_id", handle), zap.Error(err))
	}
	return handle, nil
}
