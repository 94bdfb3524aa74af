// Package discord implements the notify Adapter for Discord.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Adapter posts notifications to one Discord channel over the REST API.
type Adapter struct {
	session session
	channel string
}

// New builds a Discord adapter from a bot token and channel id.
func New(token, channel string) (*Adapter, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return &Adapter{session: s, channel: channel}, nil
}

// Name identifies the adapter in logs.
func (a *Adapter) Name() string { return "discord" }

// Send posts one message to the configured channel.
func (a *Adapter) Send(ctx context.Context, text string) error {
	_, err := a.session.ChannelMessageSend(a.channel, text, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: send to %s: %w", a.channel, err)
	}
	return nil
}
