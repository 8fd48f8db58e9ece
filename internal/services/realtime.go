package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pubnub "github.com/pubnub/go/v7"

	"ticket-market/models"
	"ticket-market/utils"
)

const publishTimeout = 10 * time.Second

// Publisher pushes a message to a realtime channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

type PubNubPublisher struct {
	pn *pubnub.PubNub
}

// NewPublisher returns a PubNub publisher, or a publisher that drops every
// message when no keys are configured.
func NewPublisher(cfg PubNubConfig) Publisher {
	if cfg.PublishKey == "" || cfg.SubscribeKey == "" {
		slog.Warn("pubnub keys not configured, realtime push disabled")
		return nopPublisher{}
	}

	userID := cfg.UserID
	if userID == "" {
		userID = "ticket-market-server"
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(userID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey

	return &PubNubPublisher{pn: pubnub.NewPubNub(pnCfg)}
}

func (p *PubNubPublisher) Publish(ctx context.Context, channel string, message any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, st, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", channel, err)
	}
	if st.StatusCode >= 400 {
		return fmt.Errorf("publishing to %s: status %d", channel, st.StatusCode)
	}
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

// UserChannel is the per-user realtime channel clients subscribe to.
func UserChannel(userID string) string {
	return "user-" + userID
}

// Realtime delivers committed notifications to connected clients. Delivery is
// best effort; failures are logged and never reach the caller.
type Realtime struct {
	publisher Publisher
	breaker   *utils.CircuitBreaker
}

func NewRealtime(publisher Publisher, opts ...utils.BreakerOption) *Realtime {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Realtime{
		publisher: publisher,
		breaker:   utils.NewCircuitBreaker("realtime", opts...),
	}
}

// Push sends each notification to its owner's channel.
func (r *Realtime) Push(ctx context.Context, notifications []*models.Notification) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	for _, n := range notifications {
		channel := UserChannel(n.UserID)
		err := r.breaker.Do(ctx, func(ctx context.Context) error {
			return r.publisher.Publish(ctx, channel, map[string]any{
				"type":         "notification",
				"notification": n,
			})
		})
		if errors.Is(err, utils.ErrCircuitOpen) {
			slog.Warn("realtime push skipped, circuit open", "channel", channel)
			return
		}
		if err != nil {
			slog.Error("realtime push failed", "channel", channel, "notification", n.ID, "error", err)
		}
	}
}
