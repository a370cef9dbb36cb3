// Package transport carries bid traffic between the dispatcher and the
// fleet adapters over NATS. Notices fan out to every fleet; responses come
// back on a per-task subject so late bids for one task never mix with
// another's; awards go out on a per-fleet subject.
package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/siot-decada-robotics/rmf-ros2/internal/model"
)

const (
	SubjectBidNotice = "rmf.bid.notice"

	bidResponsePrefix = "rmf.bid.response."
	bidAwardPrefix    = "rmf.bid.award."
)

// ResponseSubject is where fleets submit bids for a task.
func ResponseSubject(taskID string) string {
	return bidResponsePrefix + taskID
}

// AwardSubject is where a fleet hears about tasks it has won.
func AwardSubject(fleetName string) string {
	return bidAwardPrefix + fleetName
}

// BidTransport is the dispatcher's view of the bid wire.
type BidTransport interface {
	PublishNotice(notice model.BidNotice) error
	SubscribeResponses(taskID string, handle func(model.Response)) (Subscription, error)
	PublishAward(fleetName string, award model.AwardNotice) error
	Close()
}

// Subscription is an active per-task response stream.
type Subscription interface {
	Unsubscribe() error
}

// NATSTransport implements BidTransport on a NATS connection.
type NATSTransport struct {
	nc *nats.Conn
}

// Connect dials the NATS server and wires reconnect logging.
func Connect(url string) (*NATSTransport, error) {
	nc, err := nats.Connect(url,
		nats.Name("rmf-dispatcher"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return &NATSTransport{nc: nc}, nil
}

// NewNATSTransport wraps an existing connection.
func NewNATSTransport(nc *nats.Conn) *NATSTransport {
	return &NATSTransport{nc: nc}
}

func (t *NATSTransport) PublishNotice(notice model.BidNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal bid notice: %w", err)
	}
	if err := t.nc.Publish(SubjectBidNotice, body); err != nil {
		return fmt.Errorf("publish bid notice: %w", err)
	}
	slog.Info("bid notice published", "task_id", notice.TaskID, "category", notice.Category)
	return nil
}

func (t *NATSTransport) SubscribeResponses(taskID string, handle func(model.Response)) (Subscription, error) {
	subject := ResponseSubject(taskID)
	sub, err := t.nc.Subscribe(subject, func(msg *nats.Msg) {
		var response model.Response
		if err := json.Unmarshal(msg.Data, &response); err != nil {
			slog.Warn("dropping malformed bid response",
				"subject", subject, "error", err)
			return
		}
		handle(response)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}

func (t *NATSTransport) PublishAward(fleetName string, award model.AwardNotice) error {
	body, err := json.Marshal(award)
	if err != nil {
		return fmt.Errorf("marshal award: %w", err)
	}
	if err := t.nc.Publish(AwardSubject(fleetName), body); err != nil {
		return fmt.Errorf("publish award: %w", err)
	}
	slog.Info("award published", "task_id", award.TaskID, "fleet", fleetName)
	return nil
}

func (t *NATSTransport) Close() {
	if err := t.nc.Drain(); err != nil {
		t.nc.Close()
	}
}
