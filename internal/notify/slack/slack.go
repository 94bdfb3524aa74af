// Package slack implements the notify Adapter for Slack.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// client abstracts the Slack API methods we use, enabling test mocks.
type client interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter posts notifications to one Slack channel.
type Adapter struct {
	client  client
	channel string
}

// New builds a Slack adapter from a bot token and channel id.
func New(token, channel string) *Adapter {
	return &Adapter{client: slackapi.New(token), channel: channel}
}

// Name identifies the adapter in logs.
func (a *Adapter) Name() string { return "slack" }

// Send posts one message to the configured channel.
func (a *Adapter) Send(ctx context.Context, text string) error {
	_, _, err := a.client.PostMessageContext(ctx, a.channel,
		slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack: post to %s: %w", a.channel, err)
	}
	return nil
}
