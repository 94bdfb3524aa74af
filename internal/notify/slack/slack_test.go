package slack

import (
	"context"
	"errors"
	"testing"

	slackapi "github.com/slack-go/slack"
)

type mockClient struct {
	channel string
	err     error
	calls   int
}

func (m *mockClient) PostMessageContext(_ context.Context, channelID string, _ ...slackapi.MsgOption) (string, string, error) {
	m.calls++
	m.channel = channelID
	return channelID, "ts", m.err
}

func TestSend(t *testing.T) {
	mc := &mockClient{}
	a := &Adapter{client: mc, channel: "C123"}

	if err := a.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mc.calls != 1 || mc.channel != "C123" {
		t.Errorf("calls = %d, channel = %q", mc.calls, mc.channel)
	}
}

func TestSend_Error(t *testing.T) {
	mc := &mockClient{err: errors.New("channel_not_found")}
	a := &Adapter{client: mc, channel: "C123"}

	err := a.Send(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, mc.err) {
		t.Errorf("error %v should wrap %v", err, mc.err)
	}
}

func TestName(t *testing.T) {
	if got := New("xoxb-test", "C123").Name(); got != "slack" {
		t.Errorf("Name() = %q, want slack", got)
	}
}
