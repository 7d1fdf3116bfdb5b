// Package relay bridges the rooms of several server processes over Redis pub/sub.
// Every broadcast produced locally is published once; broadcasts published by
// other nodes are delivered into the local room and never republished.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"framechat/internal/protocol"
)

const publishTimeout = 2 * time.Second

var ErrMalformedEnvelope = errors.New("malformed relay envelope")

// Deliverer is the local fan-out target, normally the room.
type Deliverer interface {
	Deliver(msg protocol.Message)
}

type Relay struct {
	client  *redis.Client
	channel string
	nodeID  string
	local   Deliverer
	logger  *slog.Logger
}

// NewClient parses a redis:// URL and checks the server is reachable.
func NewClient(ctx context.Context, url, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// constructor for Relay
func New(client *redis.Client, channel string, local Deliverer, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		client:  client,
		channel: channel,
		nodeID:  uuid.NewString(),
		local:   local,
		logger:  logger,
	}
}

// NodeID identifies this process on the channel.
func (r *Relay) NodeID() string {
	return r.nodeID
}

// Deliver fans msg out locally, then publishes it for the other nodes.
// A publish failure is logged; local members have already been served.
func (r *Relay) Deliver(msg protocol.Message) {
	r.local.Deliver(msg)

	payload, err := EncodeEnvelope(r.nodeID, msg)
	if err != nil {
		r.logger.Warn("relay_encode_failed", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Warn("relay_publish_failed",
			"channel", r.channel,
			"error", err,
		)
	}
}

// Run subscribes to the channel and delivers remote broadcasts until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// wait for the subscription to be confirmed before reporting ready
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	r.logger.Info("relay_subscribed",
		"channel", r.channel,
		"node_id", r.nodeID,
	)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(m.Payload)
		}
	}
}

func (r *Relay) handle(payload string) {
	origin, msg, err := DecodeEnvelope(payload)
	if err != nil {
		r.logger.Warn("relay_envelope_rejected", "error", err)
		return
	}
	if origin == r.nodeID {
		return
	}
	r.local.Deliver(msg)
}

// EncodeEnvelope formats "<node-id>\n<frame>".
func EncodeEnvelope(nodeID string, msg protocol.Message) (string, error) {
	if strings.ContainsRune(nodeID, '\n') {
		return "", fmt.Errorf("%w: node id contains newline", ErrMalformedEnvelope)
	}
	frame, err := msg.Frame()
	if err != nil {
		return "", err
	}
	return nodeID + "\n" + string(frame), nil
}

// DecodeEnvelope is the inverse of EncodeEnvelope. The frame must be complete
// and nothing may follow it.
func DecodeEnvelope(payload string) (string, protocol.Message, error) {
	nodeID, frame, ok := strings.Cut(payload, "\n")
	if !ok {
		return "", protocol.Message{}, fmt.Errorf("%w: missing node id", ErrMalformedEnvelope)
	}
	if len(frame) < protocol.HeaderLength {
		return "", protocol.Message{}, fmt.Errorf("%w: short frame", ErrMalformedEnvelope)
	}
	length, kind, err := protocol.DecodeHeader([]byte(frame[:protocol.HeaderLength]))
	if err != nil {
		return "", protocol.Message{}, err
	}
	body := frame[protocol.HeaderLength:]
	if len(body) != length {
		return "", protocol.Message{}, fmt.Errorf("%w: body is %d bytes, header says %d", ErrMalformedEnvelope, len(body), length)
	}
	return nodeID, protocol.NewTextMessage(kind, body), nil
}
