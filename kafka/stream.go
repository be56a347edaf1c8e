package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/logger"
	"github.com/get-eventually/go-catchup/subscription"
)

// OffsetFetcher returns the oldest or newest offset of a topic partition.
//
// sarama.Client is an OffsetFetcher implementation.
type OffsetFetcher interface {
	GetOffset(topic string, partitionID int32, time int64) (int64, error)
}

var _ event.Stream = new(Stream)

// Stream is an event.Stream reading Domain Events from a single Kafka topic partition.
//
// Subscriptions catch up until the partition high water mark observed
// when subscribing, and are live afterwards.
//
// Consumer errors drop the subscription with subscription.DropReasonServerError,
// and the Messages channel being closed drops it with
// subscription.DropReasonConnectionClosed.
type Stream struct {
	consumer  sarama.Consumer
	offsets   OffsetFetcher
	serde     MessageSerde
	topic     string
	partition int32
	logger    logger.Logger
}

// NewStream returns a new Stream reading Domain Events from the specified
// topic partition, using the provided sarama.Consumer.
func NewStream(
	consumer sarama.Consumer,
	offsets OffsetFetcher,
	serde MessageSerde,
	topic string,
	partition int32,
	options ...Option[*Stream],
) *Stream {
	s := &Stream{
		consumer:  consumer,
		offsets:   offsets,
		serde:     serde,
		topic:     topic,
		partition: partition,
	}

	for _, opt := range options {
		opt.apply(s)
	}

	return s
}

func (s *Stream) startOffset(from event.Position) (int64, error) {
	if sequenceNumber, ok := from.Value(); ok {
		return int64(sequenceNumber), nil
	}

	oldest, err := s.offsets.GetOffset(s.topic, s.partition, sarama.OffsetOldest)
	if err != nil {
		return 0, fmt.Errorf("kafka.Stream: failed to get oldest offset of %s/%d: %w", s.topic, s.partition, err)
	}

	return oldest, nil
}

// Subscribe implements the event.Stream interface.
func (s *Stream) Subscribe(
	ctx context.Context,
	subscriber event.Subscriber,
	from event.Position,
) (subscription.Handle, error) {
	start, err := s.startOffset(from)
	if err != nil {
		return nil, err
	}

	highWaterMark, err := s.offsets.GetOffset(s.topic, s.partition, sarama.OffsetNewest)
	if err != nil {
		return nil, fmt.Errorf("kafka.Stream: failed to get newest offset of %s/%d: %w", s.topic, s.partition, err)
	}

	pc, err := s.consumer.ConsumePartition(s.topic, s.partition, start)
	if err != nil {
		return nil, fmt.Errorf("kafka.Stream: failed to consume %s/%d: %w", s.topic, s.partition, err)
	}

	l := logger.WithFields(s.logger,
		logger.With("topic", s.topic),
		logger.With("partition", s.partition),
		logger.With("offset", start),
	)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		defer func() {
			if err := pc.Close(); err != nil {
				logger.Error(l, "failed to close partition consumer", logger.Err(err))
			}
		}()

		if err := s.subscribe(ctx, subscriber, pc, start, highWaterMark); err != nil && ctx.Err() == nil {
			logger.Error(l, "kafka subscription stopped", logger.Err(err))
		}
	}()

	return subscription.HandleFunc(func() error {
		cancel()
		<-done

		return nil
	}), nil
}

func (s *Stream) subscribe(
	ctx context.Context,
	subscriber event.Subscriber,
	pc sarama.PartitionConsumer,
	start, highWaterMark int64,
) error {
	if err := subscriber.OnCatchingUp(ctx); err != nil {
		return err
	}

	live := start >= highWaterMark
	if live {
		if err := subscriber.OnLive(ctx); err != nil {
			return err
		}
	}

	errs := pc.Errors()

	for {
		select {
		case <-ctx.Done():
			return nil

		case consumerErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}

			return subscriber.OnSubscriptionDropped(ctx, subscription.DropReasonServerError, consumerErr)

		case msg, ok := <-pc.Messages():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}

				return subscriber.OnSubscriptionDropped(ctx, subscription.DropReasonConnectionClosed, nil)
			}

			evt, err := Decode(s.serde, msg)
			if err != nil {
				return subscriber.OnSubscriptionDropped(ctx, subscription.DropReasonServerError, err)
			}

			if err := subscriber.OnEvent(ctx, evt, evt.SequenceNumber); err != nil {
				return err
			}

			if !live && msg.Offset >= highWaterMark-1 {
				if err := subscriber.OnLive(ctx); err != nil {
					return err
				}

				live = true
			}
		}
	}
}

var _ event.Processor = new(Publisher)

// Publisher is an event.Processor publishing the processed Domain Events
// to a Kafka topic, using a sarama.SyncProducer.
//
// Use it with projection.NewConsumer to relay the Domain Events of an
// Event Store to Kafka.
type Publisher struct {
	producer sarama.SyncProducer
	serde    MessageSerde
	topic    string
}

// NewPublisher returns a new Publisher to the specified topic.
func NewPublisher(producer sarama.SyncProducer, serde MessageSerde, topic string) *Publisher {
	return &Publisher{
		producer: producer,
		serde:    serde,
		topic:    topic,
	}
}

// Process implements the event.Processor interface.
func (p *Publisher) Process(_ context.Context, evt event.Persisted) error {
	msg, err := Encode(p.serde, p.topic, evt)
	if err != nil {
		return fmt.Errorf("kafka.Publisher: failed to encode event %d: %w", evt.SequenceNumber, err)
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka.Publisher: failed to publish event %d: %w", evt.SequenceNumber, err)
	}

	return nil
}
