package kafka

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/message"
	"github.com/get-eventually/go-catchup/version"
)

// Record headers used to carry the Domain Event information.
// Any other header is mapped to the Domain Event metadata.
const (
	EventTypeHeader     = "catchup-event-type"
	StreamVersionHeader = "catchup-stream-version"
)

// ErrMissingEventType is returned when decoding a record with no EventTypeHeader.
var ErrMissingEventType = errors.New("kafka: record has no event type header")

// MessageSerde is used to serialize Domain Events into record values,
// and deserialize them back using the EventTypeHeader.
//
// serde.Registry is a MessageSerde implementation.
type MessageSerde interface {
	Serialize(msg message.Message) ([]byte, error)
	Deserialize(name string, data []byte) (message.Message, error)
}

// SequenceNumberFromOffset returns the sequence number of the record
// at the specified partition offset.
func SequenceNumberFromOffset(offset int64) version.SequenceNumber {
	return version.SequenceNumber(offset + 1)
}

// Decode maps a consumed record into a persisted Domain Event.
func Decode(serde MessageSerde, msg *sarama.ConsumerMessage) (event.Persisted, error) {
	var (
		eventType string
		metadata  message.Metadata
		evt       event.Persisted
	)

	for _, header := range msg.Headers {
		if header == nil {
			continue
		}

		switch key := string(header.Key); key {
		case EventTypeHeader:
			eventType = string(header.Value)
		case StreamVersionHeader:
			v, err := strconv.ParseUint(string(header.Value), 10, 32)
			if err != nil {
				return event.Persisted{}, fmt.Errorf("kafka: failed to parse stream version of offset %d: %w", msg.Offset, err)
			}

			evt.Version = version.Version(v)
		default:
			metadata = metadata.With(key, string(header.Value))
		}
	}

	if eventType == "" {
		return event.Persisted{}, fmt.Errorf("%w, offset %d", ErrMissingEventType, msg.Offset)
	}

	payload, err := serde.Deserialize(eventType, msg.Value)
	if err != nil {
		return event.Persisted{}, fmt.Errorf("kafka: failed to deserialize event of offset %d: %w", msg.Offset, err)
	}

	evt.StreamID = event.StreamID(msg.Key)
	evt.Message = payload
	evt.Metadata = metadata
	evt.SequenceNumber = SequenceNumberFromOffset(msg.Offset)

	return evt, nil
}

// Encode maps a persisted Domain Event into a record for the specified topic,
// keyed by the Event Stream id to preserve the per-stream ordering.
func Encode(serde MessageSerde, topic string, evt event.Persisted) (*sarama.ProducerMessage, error) {
	value, err := serde.Serialize(evt.Message)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to serialize event: %w", err)
	}

	headers := []sarama.RecordHeader{
		{Key: []byte(EventTypeHeader), Value: []byte(evt.Message.Name())},
		{Key: []byte(StreamVersionHeader), Value: []byte(strconv.FormatUint(uint64(evt.Version), 10))},
	}

	for key, value := range evt.Metadata {
		headers = append(headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
	}

	return &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(evt.StreamID),
		Value:   sarama.ByteEncoder(value),
		Headers: headers,
	}, nil
}
