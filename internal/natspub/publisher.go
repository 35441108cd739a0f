// Package natspub fans room snapshots out to NATS so companion services
// (projection screens, stream overlays) can follow a game without holding a
// websocket to the game server.
package natspub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/wheelhouse-game/backend/internal/room"
)

const subjectPrefix = "wheelhouse.rooms."

type Publisher struct {
	nc  *nats.Conn
	log *zap.Logger
}

func Connect(url string, log *zap.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Publisher{nc: nc, log: log}, nil
}

func (p *Publisher) Publish(code string, snap room.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return p.nc.Publish(subjectPrefix+code, payload)
}

func (p *Publisher) Close() {
	p.nc.Drain()
}
