// Package events publishes organization lifecycle events onto NATS
// JetStream. Out-of-core consumers (invitation email delivery,
// notification fan-out) subscribe to these subjects; nothing in this
// service reads them back.
package events

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const streamName = "RECEIPTS_ORG_EVENTS"

// Subjects under receipts.org.>
const (
	SubjectOrgCreated        = "receipts.org.created"
	SubjectOrgVerified       = "receipts.org.verified"
	SubjectOrgDisabled       = "receipts.org.disabled"
	SubjectInviteSent        = "receipts.org.invite.sent"
	SubjectInviteAccepted    = "receipts.org.invite.accepted"
	SubjectMemberRoleChanged = "receipts.org.member.role_changed"
	SubjectMemberRemoved     = "receipts.org.member.removed"
	SubjectDepartmentCreated = "receipts.org.department.created"
	SubjectDepartmentDeleted = "receipts.org.department.deleted"
)

// Event is the msgpack payload shared by all subjects. Fields that do not
// apply to a subject stay zero. Token material never appears here.
type Event struct {
	OrgID      string    `msgpack:"org_id"`
	ActorID    string    `msgpack:"actor_id,omitempty"`
	SubjectID  string    `msgpack:"subject_id,omitempty"`
	Email      string    `msgpack:"email,omitempty"`
	Role       string    `msgpack:"role,omitempty"`
	OccurredAt time.Time `msgpack:"occurred_at"`
}

type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *zap.Logger
}

// Connect establishes the NATS connection and ensures the org-events
// stream exists.
func Connect(logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}

	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(1 * time.Second),
		nats.ReconnectJitter(500*time.Millisecond, 2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if err := ensureStream(js); err != nil {
		nc.Close()
		return nil, err
	}

	logger.Info("connected to NATS", zap.String("url", nc.ConnectedUrl()))
	return &Publisher{nc: nc, js: js, logger: logger}, nil
}

func ensureStream(js nats.JetStreamContext) error {
	_, err := js.StreamInfo(streamName)
	if err == nats.ErrStreamNotFound {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      streamName,
			Subjects:  []string{"receipts.org.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Discard:   nats.DiscardOld,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			return fmt.Errorf("create stream %s: %w", streamName, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	return nil
}

// Publish emits an event. Failures are logged, never surfaced: the store
// mutation has already committed and event delivery is best effort.
func (p *Publisher) Publish(ctx context.Context, subject string, ev Event) {
	if p == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	payload, err := msgpack.Marshal(&ev)
	if err != nil {
		p.logger.Error("marshal event", zap.String("subject", subject), zap.Error(err))
		return
	}

	if _, err := p.js.Publish(subject, payload, nats.Context(ctx)); err != nil {
		p.logger.Error("publish event",
			zap.String("subject", subject),
			zap.String("org_id", ev.OrgID),
			zap.Error(err))
	}
}

// Close drains the connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.nc.Drain()
}
