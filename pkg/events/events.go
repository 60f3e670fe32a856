package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/openfield/gatepass/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	AttendeeRegistered = "attendee.registered"
	CheckinRecorded    = "checkin.recorded"
	CheckinBatchSynced = "checkin.batch.synced"
	ScannerLoggedIn    = "scanner.login"
)

// Event payloads
type AttendeeRegisteredEvent struct {
	EntryID      int64     `json:"entry_id"`
	Name         string    `json:"name"`
	Organization string    `json:"organization"`
	Email        string    `json:"email"`
	PassTypes    []string  `json:"pass_types"`
	RegisteredAt time.Time `json:"registered_at"`
}

type CheckinRecordedEvent struct {
	CheckinID   int64     `json:"checkin_id"`
	EntryID     int64     `json:"entry_id"`
	PassType    string    `json:"pass_type"`
	GateNumber  string    `json:"gate_number"`
	Operator    string    `json:"operator"`
	DeviceID    string    `json:"device_id"`
	CheckInTime time.Time `json:"check_in_time"`
}

type CheckinBatchSyncedEvent struct {
	DeviceID   string    `json:"device_id"`
	Operator   string    `json:"operator"`
	Total      int       `json:"total"`
	Recorded   int       `json:"recorded"`
	Duplicates int       `json:"duplicates"`
	Errors     int       `json:"errors"`
	SyncedAt   time.Time `json:"synced_at"`
}

type ScannerLoggedInEvent struct {
	Operator   string    `json:"operator"`
	GateNumber string    `json:"gate_number"`
	DeviceID   string    `json:"device_id"`
	LoggedInAt time.Time `json:"logged_in_at"`
}
