// Package publish sends compiled topologies to a Kafka topic, one record per
// compilation keyed by application name.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/birdayz/streamc/ktopology"
)

const (
	HeaderTopologyID = "streamc-topology-id"
	HeaderNodes      = "streamc-nodes"
)

type Publisher struct {
	client *kgo.Client
	admin  *kadm.Client
	topic  string
	log    *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLog sets the logger.
var WithLog = func(log *slog.Logger) Option {
	return func(p *Publisher) {
		p.log = log
	}
}

// New connects to brokers. Records are produced to topic.
func New(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("publish: brokers and topic are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("publish: create client: %w", err)
	}
	p := &Publisher{
		client: client,
		admin:  kadm.NewClient(client),
		topic:  topic,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// EnsureTopic creates the topic if it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context, partitions int32, replicas int16) error {
	resps, err := p.admin.CreateTopics(ctx, partitions, replicas, nil, p.topic)
	if err != nil {
		return fmt.Errorf("publish: create topic %s: %w", p.topic, err)
	}
	for _, r := range resps {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("publish: create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish produces topo and waits for the broker to acknowledge it.
func (p *Publisher) Publish(ctx context.Context, topo *ktopology.Topology) error {
	rec, err := Record(p.topic, topo)
	if err != nil {
		return err
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("publish: produce %s: %w", topo.Name, err)
	}
	p.log.Info("Published topology", "app", topo.Name, "id", topo.ID, "topic", p.topic)
	return nil
}

// Close closes the underlying client.
func (p *Publisher) Close() {
	p.client.Close()
}

// Record encodes topo as a JSON record for topic.
func Record(topic string, topo *ktopology.Topology) (*kgo.Record, error) {
	value, err := json.Marshal(topo)
	if err != nil {
		return nil, fmt.Errorf("publish: encode %s: %w", topo.Name, err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(topo.Name),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: HeaderTopologyID, Value: []byte(topo.ID.String())},
			{Key: HeaderNodes, Value: []byte(fmt.Sprint(len(topo.Nodes)))},
		},
	}, nil
}
