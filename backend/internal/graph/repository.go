package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "sysdesign-assistant/backend/pkg/errors"
	"sysdesign-assistant/backend/pkg/logger"
)

// HandleStore keeps cached assistant and thread handles as (:CachedHandle) nodes,
// so several hosts running the pipeline share one set of remote agents.
type HandleStore struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewHandleStore creates a Neo4j-backed handle store
func NewHandleStore(driver neo4j.DriverWithContext) *HandleStore {
	return &HandleStore{
		driver: driver,
		logger: logger.Named("graph"),
	}
}

// Close closes the Neo4j driver connection
func (s *HandleStore) Close() error {
	return s.driver.Close(context.Background())
}

// EnsureSchema creates the uniqueness constraint on handle keys
func (s *HandleStore) EnsureSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `CREATE CONSTRAINT cached_handle_key IF NOT EXISTS
		FOR (h:CachedHandle) REQUIRE h.key IS UNIQUE`
	if _, err := session.Run(ctx, query, nil); err != nil {
		return fmt.Errorf("failed to create handle constraint: %w", err)
	}
	return nil
}

// Get returns the handle stored under key
func (s *HandleStore) Get(ctx context.Context, key string) (string, bool, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (h:CachedHandle {key: $key})
		RETURN h.value as value
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"key": key,
	})
	if err != nil {
		return "", false, apperrors.NewHandleStoreFailed(key, err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return "", false, apperrors.NewHandleStoreFailed(key, err)
		}
		return "", false, nil
	}

	value := getStringFromRecord(result.Record(), "value")
	return value, value != "", nil
}

// Set stores value under key, replacing any previous handle
func (s *HandleStore) Set(ctx context.Context, key, value string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (h:CachedHandle {key: $key})
		SET h.value = $value,
		    h.updated_at = datetime()
		RETURN h.key as key
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"key":   key,
		"value": value,
	})
	if err != nil {
		return apperrors.NewHandleStoreFailed(key, err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return apperrors.NewHandleStoreFailed(key, err)
	}

	s.logger.Debug("Cached handle stored",
		zap.String("key", key),
		zap.String("value", value),
	)
	return nil
}
