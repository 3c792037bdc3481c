// Package kafka builds the franz-go producer used to relay registry events.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Config describes the brokers and the events topic.
type Config struct {
	Brokers           []string
	Topic             string
	ClientID          string
	Partitions        int32
	ReplicationFactor int16
	ProduceTimeout    time.Duration
}

// Client wraps a franz-go client bound to one topic.
type Client struct {
	*kgo.Client
	cfg Config
}

// New connects to the brokers. Returns nil if no brokers are configured
// (event relay disabled).
func New(cfg Config) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.ProduceTimeout > 0 {
		opts = append(opts, kgo.ProduceRequestTimeout(cfg.ProduceTimeout))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Client{Client: client, cfg: cfg}, nil
}

// Topic returns the events topic.
func (c *Client) Topic() string {
	return c.cfg.Topic
}

// EnsureTopic creates the events topic if it does not exist yet.
func (c *Client) EnsureTopic(ctx context.Context) error {
	partitions := c.cfg.Partitions
	if partitions <= 0 {
		partitions = 1
	}
	rf := c.cfg.ReplicationFactor
	if rf <= 0 {
		rf = 1
	}

	adm := kadm.NewClient(c.Client)
	resp, err := adm.CreateTopics(ctx, partitions, rf, nil, c.cfg.Topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", c.cfg.Topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Health pings the brokers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx)
}
