package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Transport names, used as metric and log labels.
const (
	TransportValkey    = "valkey"
	TransportJetStream = "jetstream"
	TransportMemory    = "memory"
)

// ErrClosed is returned by Receive after Close.
var ErrClosed = errors.New("queue closed")

// Body is the JSON body of a notification.
type Body struct {
	FileKey string `json:"fileKey"`
}

// Encode marshals b.
func (b Body) Encode() ([]byte, error) {
	if b.FileKey == "" {
		return nil, errors.New("queue body: empty fileKey")
	}
	return json.Marshal(b)
}

// DecodeBody parses a notification body.
func DecodeBody(data []byte) (Body, error) {
	var b Body
	if err := json.Unmarshal(data, &b); err != nil {
		return Body{}, fmt.Errorf("decode queue body: %w", err)
	}
	if b.FileKey == "" {
		return Body{}, errors.New("decode queue body: missing fileKey")
	}
	return b, nil
}

// Message is one received notification.
type Message struct {
	ID        string
	Data      []byte
	Transport string
	// Partition and Offset are only meaningful on the partitioned transport.
	Partition int
	Offset    uint64

	ack func(context.Context) error
	nak func(context.Context) error
}

// NewMessage builds a message with transport specific ack and nak hooks.
// Either hook may be nil.
func NewMessage(id string, data []byte, transport string, ack, nak func(context.Context) error) *Message {
	return &Message{ID: id, Data: data, Transport: transport, ack: ack, nak: nak}
}

// Body decodes the message payload.
func (m *Message) Body() (Body, error) {
	return DecodeBody(m.Data)
}

// Ack confirms the message. On the point-to-point transport without
// reliable mode the message is already gone and Ack is a no-op.
func (m *Message) Ack(ctx context.Context) error {
	if m.ack == nil {
		return nil
	}
	return m.ack(ctx)
}

// Nak asks the transport to redeliver the message.
func (m *Message) Nak(ctx context.Context) error {
	if m.nak == nil {
		return nil
	}
	return m.nak(ctx)
}

// Consumer receives notifications.
type Consumer interface {
	// Receive waits for up to max messages. It returns an empty slice when
	// nothing arrived within the transport's wait time.
	Receive(ctx context.Context, max int) ([]*Message, error)
	Close() error
}

// Publisher sends notifications. key selects the partition on partitioned
// transports.
type Publisher interface {
	Publish(ctx context.Context, key string, body Body) error
}
