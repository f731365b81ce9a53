// Package events publishes job lifecycle events to NATS.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"openfashion/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const subjectPrefix = "openfashion.jobs."

// JobEvent is published on openfashion.jobs.<status>.
type JobEvent struct {
	JobID     string    `json:"job_id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher interface {
	PublishJob(evt JobEvent) error
	Close()
}

type NATSPublisher struct {
	nc *nats.Conn
}

// Connect dials NATS. An empty url yields a publisher that drops events.
func Connect(url string) (Publisher, error) {
	if url == "" {
		return Noop{}, nil
	}
	nc, err := nats.Connect(url,
		nats.Name("openfashion-api"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Get().Warn("[Events] NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Get().Info("[Events] NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Get().Info("Connected to NATS", zap.String("url", nc.ConnectedUrl()))
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) PublishJob(evt JobEvent) error {
	if p.nc == nil || !p.nc.IsConnected() {
		return nats.ErrConnectionClosed
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.nc.Publish(subjectPrefix+evt.Status, data)
}

// Close flushes pending messages before closing.
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

type Noop struct{}

func (Noop) PublishJob(JobEvent) error { return nil }
func (Noop) Close()                    {}
