package discord

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"sysdesign-assistant/backend/internal/constants"
	"sysdesign-assistant/backend/internal/markdown"
)

// partIndicatorReserve leaves room for "\n*(Part X/Y)*"
const partIndicatorReserve = 20

func (h *Handler) send(s Messenger, channelID, content string) {
	if _, err := s.ChannelMessageSend(channelID, content); err != nil {
		h.logger.Error("Failed to send message",
			zap.Error(err),
			zap.String("channel_id", channelID),
		)
	}
}

// sendLongMessage splits content into chunks under Discord's limit
func (h *Handler) sendLongMessage(s Messenger, channelID, content string) {
	maxLength := constants.DiscordMaxMessageLength
	if len(content) <= maxLength {
		h.send(s, channelID, content)
		return
	}

	chunks := splitMessage(content, maxLength-partIndicatorReserve)
	for i, chunk := range chunks {
		message := chunk
		if len(chunks) > 1 {
			message = fmt.Sprintf("%s\n*(Part %d/%d)*", chunk, i+1, len(chunks))
		}
		if len(message) > maxLength {
			message = message[:maxLength-3] + "..."
			h.logger.Warn("Chunk still too long after splitting, truncating",
				zap.Int("chunk", i+1),
			)
		}

		if _, err := s.ChannelMessageSend(channelID, message); err != nil {
			h.logger.Error("Failed to send message chunk",
				zap.Error(err),
				zap.String("channel_id", channelID),
				zap.Int("chunk", i+1),
				zap.Int("total_chunks", len(chunks)),
			)
			break
		}

		if i < len(chunks)-1 && h.chunkPause > 0 {
			time.Sleep(h.chunkPause)
		}
	}
}

// splitMessage splits content into chunks of at most maxLength bytes. A code
// block cut in two is closed at the end of one chunk and reopened with the
// same fence marker and language at the start of the next.
func splitMessage(content string, maxLength int) []string {
	if len(content) <= maxLength {
		return []string{content}
	}

	closing := "\n" + markdown.FenceMarker
	var (
		chunks  []string
		current []string
		size    int
		opener  string // reopening fence of the block we are inside
		openAt  = -1   // index in current of the line that opened it
	)

	add := func(line string) {
		if len(current) > 0 {
			size++
		}
		current = append(current, line)
		size += len(line)
	}

	flush := func() {
		// don't leave a freshly opened, empty block at the end of a chunk
		if opener != "" && openAt == len(current)-1 && len(current) > 1 {
			current = current[:openAt]
			openAt = -1
			chunks = append(chunks, strings.Join(current, "\n"))
		} else {
			chunk := strings.Join(current, "\n")
			if opener != "" {
				chunk += closing
			}
			chunks = append(chunks, chunk)
		}
		current, size = nil, 0
		if opener != "" {
			openAt = 0
			add(opener)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		fence := markdown.IsFenceLine(line)
		nextOpener := opener
		if fence && opener == "" {
			nextOpener = markdown.OpenerOf(line)
		}
		budget := maxLength - len(closing) - len(nextOpener) - 1
		if budget < 1 {
			budget = 1
		}

		for i, piece := range wrapLine(line, budget) {
			reserve := 0
			if opener != "" || fence {
				reserve = len(closing)
			}
			extra := len(piece)
			if len(current) > 0 {
				extra++
			}
			if len(current) > 0 && size+extra+reserve > maxLength {
				flush()
			}
			add(piece)

			if fence && i == 0 {
				if opener == "" {
					opener, openAt = nextOpener, len(current)-1
				} else {
					opener, openAt = "", -1
				}
			}
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}

// wrapLine cuts a line longer than width at a late space, or at width,
// never inside a UTF-8 sequence
func wrapLine(line string, width int) []string {
	if width <= 0 || len(line) <= width {
		return []string{line}
	}
	var pieces []string
	for len(line) > width {
		cut := width
		if space := strings.LastIndex(line[:width], " "); space > width*3/4 {
			cut = space + 1
		}
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if cut == 0 {
			cut = width
		}
		pieces = append(pieces, line[:cut])
		line = line[cut:]
	}
	if line != "" {
		pieces = append(pieces, line)
	}
	return pieces
}
