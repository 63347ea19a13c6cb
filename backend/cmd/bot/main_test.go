package main

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestBotIntents(t *testing.T) {
	tests := []struct {
		name   string
		intent discordgo.Intent
		want   bool
	}{
		{"guilds", discordgo.IntentsGuilds, true},
		{"guild messages", discordgo.IntentsGuildMessages, true},
		{"direct messages", discordgo.IntentsDirectMessages, true},
		{"message content", discordgo.IntentsMessageContent, true},
		{"voice states", discordgo.IntentsGuildVoiceStates, false},
		{"presences", discordgo.IntentsGuildPresences, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, botIntents&tt.intent != 0)
		})
	}
}
