package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"go.ngs.io/geothermophone/internal/observability"
	"go.ngs.io/geothermophone/internal/usecase"
)

// SeriesMessage is the JSON body of one published octant series.
type SeriesMessage struct {
	Variable  string    `json:"variable"`
	Units     string    `json:"units"`
	Mode      string    `json:"mode"`
	ValueType string    `json:"value_type"`
	Octant    string    `json:"octant"`
	LonBand   int       `json:"lon_band"`
	LatBand   int       `json:"lat_band"`
	Times     []string  `json:"times"`
	Values    []float64 `json:"values"`
}

// Publisher produces octant series to a Kafka topic.
type Publisher struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a Kafka producer for topic.
func NewPublisher(brokers []string, topic string, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, metrics: metrics, logger: logger}
}

// Publish writes one message per octant in a single WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, resp *usecase.OctantResponse) error {
	if len(resp.Octants) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(resp.Octants))
	for i := range resp.Octants {
		msg, err := serializeToMessage(resp, resp.Octants[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %s: %w", resp.Variable, err)
	}
	p.metrics.MessagesPublished.Add(float64(len(msgs)))
	p.logger.Info("published octant series",
		"variable", resp.Variable,
		"topic", p.writer.Topic,
		"messages", len(msgs))
	return nil
}

// Close flushes pending writes and closes the producer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// MessageKey returns the key "<variable>/<octant>".
func MessageKey(variable, octant string) string {
	return variable + "/" + octant
}

// serializeToMessage marshals one octant series into a Kafka message.
func serializeToMessage(resp *usecase.OctantResponse, o usecase.OctantSeries) (kafkago.Message, error) {
	data, err := json.Marshal(SeriesMessage{
		Variable:  resp.Variable,
		Units:     resp.Units,
		Mode:      resp.Mode,
		ValueType: resp.ValueType,
		Octant:    o.Key,
		LonBand:   o.LonBand,
		LatBand:   o.LatBand,
		Times:     resp.Times,
		Values:    o.Values,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize octant %s: %w", o.Key, err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(resp.Variable, o.Key)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "variable", Value: []byte(resp.Variable)},
			{Key: "mode", Value: []byte(resp.Mode)},
			{Key: "generated_at", Value: []byte(resp.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
