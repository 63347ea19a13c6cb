package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sysdesign-assistant/backend/internal/agent"
	"sysdesign-assistant/backend/internal/assistant"
	"sysdesign-assistant/backend/internal/assistant/assistanttest"
	"sysdesign-assistant/backend/internal/promptsource"
	"sysdesign-assistant/backend/internal/state"
	"sysdesign-assistant/backend/internal/store"
	apperrors "sysdesign-assistant/backend/pkg/errors"
)

type stubChat struct {
	system, message string
	reply           string
	err             error
}

func (s *stubChat) Complete(ctx context.Context, systemPrompt, userMsg string) (string, error) {
	s.system, s.message = systemPrompt, userMsg
	return s.reply, s.err
}

// newTestAPI wires the handlers to real pipelines over a scripted fake
func newTestAPI(fake *assistanttest.Fake) *api {
	session := agent.NewSession(fake, store.NewMemoryStore(nil), "gpt-test", agent.WithLogger(zap.NewNop()))
	registry := agent.NewRegistry(session)
	return &api{
		pipelines: func(mode string) (designer, error) {
			switch mode {
			case "", "multi":
				return agent.NewPipeline(session, agent.DefaultStages(), agent.WithRegistry(registry), agent.WithFreshConversation()), nil
			case "single":
				return agent.NewPipeline(session, agent.SystemDesignerStages(), agent.WithRegistry(registry), agent.WithFreshConversation()), nil
			}
			return nil, fmt.Errorf("unknown pipeline mode %q", mode)
		},
		fetch: func(ctx context.Context, url string) (string, error) {
			if url == "https://docs.example.com/missing" {
				return "", apperrors.NewRemoteRequestFailed("fetch_webpage", errors.New("HTTP 404"))
			}
			return "requirements from " + url, nil
		},
		log: zap.NewNop(),
	}
}

func scripted() *assistanttest.Fake {
	return assistanttest.New().
		Script(agent.RoleRequirements, assistanttest.Complete(`{"requirements": "Requirements Analysis Agent output"}`)).
		Script(agent.RoleArchitecture, assistanttest.Complete(`{"architecture": "Architecture Design Agent output"}`)).
		Script(agent.RoleDiagram, assistanttest.Complete(`{"diagram": "Diagram Generation Agent output"}`)).
		Script(agent.RoleDesigner, assistanttest.Complete(`{"diagram": "graph TD", "explain": "one box"}`))
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(method, path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := newRouter(newTestAPI(assistanttest.New()))

	w := doJSON(t, router, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestRequestID_KeepsClientValue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := newRouter(newTestAPI(assistanttest.New()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
}

func TestPipelineRun_Multi(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := scripted()
	router := newRouter(newTestAPI(fake))

	w := doJSON(t, router, http.MethodPost, "/api/pipeline/run", `{"prompt": "design architecture for feature X"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result state.PipelineResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Completed)
	assert.Equal(t, `{"diagram": "Diagram Generation Agent output"}`, result.Final)
	assert.Len(t, result.Stages, 3)
	assert.Equal(t, []string{"design architecture for feature X"}, fake.Inputs[agent.RoleRequirements])
}

func TestPipelineRun_SingleModeFromURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := scripted()
	router := newRouter(newTestAPI(fake))

	w := doJSON(t, router, http.MethodPost, "/api/pipeline/run", `{"url": "https://docs.example.com/reels", "mode": "single"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, []string{"requirements from https://docs.example.com/reels"}, fake.Inputs[agent.RoleDesigner])
	assert.Zero(t, fake.RunsStarted(agent.RoleRequirements))
}

func TestPipelineRun_FreshThreadPerRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := scripted()
	router := newRouter(newTestAPI(fake))

	for i := 0; i < 2; i++ {
		w := doJSON(t, router, http.MethodPost, "/api/pipeline/run", `{"prompt": "x", "mode": "single"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 2, fake.CreateThreadCalls)
	assert.Equal(t, 1, fake.CreateAgentCalls)
}

func TestPipelineRun_InvalidRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := newRouter(newTestAPI(scripted()))

	tests := map[string]string{
		"empty":        `{}`,
		"both":         `{"prompt": "a", "url": "https://b"}`,
		"blank prompt": `{"prompt": "   "}`,
		"bad mode":     `{"prompt": "a", "mode": "parallel"}`,
		"not json":     `prompt=a`,
	}
	for name, body := range tests {
		w := doJSON(t, router, http.MethodPost, "/api/pipeline/run", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestPipelineRun_StageFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := scripted().
		Script(agent.RoleRequirements, assistanttest.End(assistant.RunStatusExpired, ""))
	router := newRouter(newTestAPI(fake))

	w := doJSON(t, router, http.MethodPost, "/api/pipeline/run", `{"prompt": "x"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Error  string               `json:"error"`
		Result state.PipelineResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "expired")
	assert.False(t, body.Result.Completed)
	require.Len(t, body.Result.Stages, 1)
	assert.Zero(t, fake.RunsStarted(agent.RoleArchitecture))
}

func TestPipelineRun_FetchFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := newRouter(newTestAPI(scripted()))

	w := doJSON(t, router, http.MethodPost, "/api/pipeline/run", `{"url": "https://docs.example.com/missing"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPipelineRun_URLOnLoopbackRefused(t *testing.T) {
	gin.SetMode(gin.TestMode)
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>internal-admin</p><p>SECRET_TOKEN=abc123</p></body></html>")
	}))
	defer internal.Close()

	fake := scripted()
	a := newTestAPI(fake)
	a.fetch = promptsource.FetchWebpage
	router := newRouter(a)

	for _, target := range []string{internal.URL, "http://169.254.169.254/latest/meta-data/", "ftp://docs.example.com/reels"} {
		w := doJSON(t, router, http.MethodPost, "/api/pipeline/run", fmt.Sprintf(`{"url": %q}`, target))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.NotContains(t, w.Body.String(), "SECRET_TOKEN")
	}
	assert.Zero(t, fake.RunsStarted(agent.RoleRequirements))
}

func TestChatEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	chat := &stubChat{reply: "Use consistent hashing."}
	a := newTestAPI(assistanttest.New())
	a.chat = chat
	router := newRouter(a)

	w := doJSON(t, router, http.MethodPost, "/api/chat", `{"system": "You are an architect.", "message": "How do I shard?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Use consistent hashing.", response["content"])
	assert.Equal(t, "You are an architect.", chat.system)
	assert.Equal(t, "How do I shard?", chat.message)
}

func TestChatEndpoint_Errors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// not configured
	router := newRouter(newTestAPI(assistanttest.New()))
	w := doJSON(t, router, http.MethodPost, "/api/chat", `{"message": "hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	a := newTestAPI(assistanttest.New())
	a.chat = &stubChat{err: apperrors.NewRemoteRequestFailed("chat_completion", errors.New("500"))}
	router = newRouter(a)

	w = doJSON(t, router, http.MethodPost, "/api/chat", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/chat", `{"message": "hi"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(apperrors.NewContextTimeout("poll_run", 0, context.DeadlineExceeded)))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(apperrors.NewToolRoundsExceeded("run_1", 5)))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(agent.ErrNoOutput))
	assert.Equal(t, http.StatusBadRequest, statusFor(agent.ErrEmptyTurn))
	assert.Equal(t, http.StatusInternalServerError, statusFor(apperrors.NewAgentCreationFailed("x", nil)))
}
