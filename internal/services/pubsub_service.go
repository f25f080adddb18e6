package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const settingsEventsChannel = "deepscout:settings:events"

// pubSubMessage is the cross-instance wire shape.
type pubSubMessage struct {
	Type       string `json:"type"`
	AccountID  string `json:"account_id"`
	InstanceID string `json:"instance_id"`
}

// PubSubService publishes settings-changed events to the local hub and, when
// Redis is configured, bridges them across instances so websocket clients
// connected elsewhere still hear about writes made here.
type PubSubService struct {
	hub        *EventsHub
	client     *redis.Client
	pubsub     *redis.PubSub
	instanceID string
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewPubSubService creates the service. An empty redisURL disables the
// cross-instance bridge; local fan-out still works.
func NewPubSubService(redisURL string, hub *EventsHub) (*PubSubService, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &PubSubService{
		hub:        hub,
		instanceID: uuid.NewString(),
		ctx:        ctx,
		cancel:     cancel,
	}

	if redisURL == "" {
		return s, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.client = client

	log.Println("✅ Redis connection established")
	return s, nil
}

// Start begins listening for cross-instance messages. No-op without Redis.
func (s *PubSubService) Start() error {
	if s.client == nil {
		return nil
	}

	s.pubsub = s.client.Subscribe(s.ctx, settingsEventsChannel)
	if _, err := s.pubsub.Receive(s.ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go s.processMessages()
	log.Printf("✅ [PUBSUB] Listening for settings events (instance: %s)", s.instanceID)
	return nil
}

func (s *PubSubService) processMessages() {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var message pubSubMessage
			if err := json.Unmarshal([]byte(msg.Payload), &message); err != nil {
				log.Printf("⚠️  [PUBSUB] Bad message: %v", err)
				continue
			}
			// Local subscribers already heard about our own writes.
			if message.InstanceID == s.instanceID {
				continue
			}
			s.hub.Publish(message.AccountID, message.Type)
		}
	}
}

// PublishSettingsUpdated notifies local subscribers and other instances that
// an account's document changed.
func (s *PubSubService) PublishSettingsUpdated(ctx context.Context, accountID string) {
	s.hub.Publish(accountID, EventTypeSettingsUpdated)

	if s.client == nil {
		return
	}
	payload, _ := json.Marshal(pubSubMessage{
		Type:       EventTypeSettingsUpdated,
		AccountID:  accountID,
		InstanceID: s.instanceID,
	})
	if err := s.client.Publish(ctx, settingsEventsChannel, payload).Err(); err != nil {
		log.Printf("⚠️  [PUBSUB] Publish failed: %v", err)
	}
}

// Close stops the subscriber loop and the Redis client.
func (s *PubSubService) Close() {
	s.cancel()
	if s.pubsub != nil {
		s.pubsub.Close()
	}
	if s.client != nil {
		s.client.Close()
	}
}
