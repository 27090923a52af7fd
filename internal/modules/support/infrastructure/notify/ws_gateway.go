package notify

import (
	"encoding/json"
	"errors"

	"ilpotaxi/internal/modules/support/domain/gateway"
	"ilpotaxi/pkg/ws"
)

var ErrClientOffline = errors.New("client session has no live connection")

// wsGateway pushes payloads to the web side through the session hub.
type wsGateway struct {
	hub *ws.Hub
}

func NewWsGateway(hub *ws.Hub) gateway.ClientGateway {
	return &wsGateway{hub: hub}
}

func (g *wsGateway) Send(sessionID string, payload gateway.ClientPayload) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if !g.hub.Send(sessionID, b) {
		return ErrClientOffline
	}
	return nil
}

func (g *wsGateway) Connected(sessionID string) bool {
	return g.hub.Connected(sessionID)
}
