package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sysdesign-assistant/backend/internal/constants"
	"sysdesign-assistant/backend/internal/state"
	apperrors "sysdesign-assistant/backend/pkg/errors"
)

// Designer runs the design pipeline on a prompt
type Designer interface {
	Run(ctx context.Context, prompt string) (*state.PipelineResult, error)
}

// Messenger is the part of *discordgo.Session the handler talks to
type Messenger interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// Handler answers !design commands sent in DMs or with a bot mention
type Handler struct {
	designer   Designer
	logger     *zap.Logger
	timeout    time.Duration
	chunkPause time.Duration
}

// NewHandler creates a new Discord message handler. A zero timeout means
// pipelines run without a deadline.
func NewHandler(designer Designer, logger *zap.Logger, timeout time.Duration) *Handler {
	return &Handler{
		designer:   designer,
		logger:     logger,
		timeout:    timeout,
		chunkPause: 100 * time.Millisecond,
	}
}

// HandleMessage processes a Discord message
func (h *Handler) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if s.State == nil || s.State.User == nil {
		return
	}
	h.handle(context.Background(), s, s.State.User.ID, m.Message)
}

func (h *Handler) handle(ctx context.Context, s Messenger, botID string, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.ID == botID || m.Author.Bot {
		return
	}

	prompt, ok := parseCommand(m, botID)
	if !ok {
		return
	}
	if prompt == "" {
		h.send(s, m.ChannelID, fmt.Sprintf("Usage: `%s <what to design>`", constants.DiscordDesignCommand))
		return
	}

	jobID := uuid.NewString()
	log := h.logger.With(
		zap.String("job_id", jobID),
		zap.String("user_id", m.Author.ID),
		zap.String("channel_id", m.ChannelID),
	)
	log.Info("Processing design request", zap.Int("prompt_chars", len(prompt)))

	_ = s.ChannelTyping(m.ChannelID)

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.designer.Run(ctx, prompt)
	if err != nil {
		log.Error("Design pipeline failed",
			zap.Error(err),
			zap.String("error_type", errorType(err)),
		)
		h.send(s, m.ChannelID, failureMessage(err, result))
		return
	}

	log.Info("Design request completed", zap.Int("stages", len(result.Stages)))
	h.sendLongMessage(s, m.ChannelID, formatResult(result))
}

// parseCommand reports whether m is addressed to the bot as a design command
// and returns the prompt that follows it
func parseCommand(m *discordgo.Message, botID string) (string, bool) {
	isDM := m.GuildID == ""
	isMentioned := false
	for _, mention := range m.Mentions {
		if mention != nil && mention.ID == botID {
			isMentioned = true
			break
		}
	}

	content := strings.TrimSpace(m.Content)
	for _, prefix := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if strings.HasPrefix(content, prefix) {
			isMentioned = true
			content = strings.TrimSpace(strings.TrimPrefix(content, prefix))
		}
	}

	if !isDM && !isMentioned {
		return "", false
	}

	fields := strings.Fields(content)
	if len(fields) == 0 || !strings.EqualFold(fields[0], constants.DiscordDesignCommand) {
		return "", false
	}
	return strings.TrimSpace(content[len(fields[0]):]), true
}

func failureMessage(err error, result *state.PipelineResult) string {
	switch {
	case apperrors.IsErrorType(err, apperrors.ErrorTypeContext):
		return "The design took too long and was stopped."
	case apperrors.IsConfigurationError(err):
		return "The designer is misconfigured; check the bot's OpenAI settings."
	case apperrors.IsUnexpectedStatus(err) || apperrors.IsErrorType(err, apperrors.ErrorTypeRun):
		if result != nil {
			if last, ok := result.LastStage(); ok {
				return fmt.Sprintf("The %s stopped with status `%s`.", last.Role, last.Status)
			}
		}
		return "A design stage stopped before finishing."
	default:
		return "Sorry, I encountered an error processing your design request."
	}
}

func errorType(err error) string {
	for _, t := range []apperrors.ErrorType{
		apperrors.ErrorTypeConfig,
		apperrors.ErrorTypeRemote,
		apperrors.ErrorTypeRun,
		apperrors.ErrorTypeStore,
		apperrors.ErrorTypeContext,
	} {
		if apperrors.IsErrorType(err, t) {
			return string(t)
		}
	}
	return "unknown"
}
