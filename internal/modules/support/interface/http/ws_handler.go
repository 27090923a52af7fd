package handler

import (
	"net/http"
	"time"

	assistantService "ilpotaxi/internal/modules/assistant/application/service"
	"ilpotaxi/internal/modules/assistant/domain/session"
	"ilpotaxi/internal/modules/support/application/service"
	"ilpotaxi/internal/modules/support/domain/gateway"
	"ilpotaxi/pkg/util"
	"ilpotaxi/pkg/ws"
	"ilpotaxi/pkg/xerr"
	"ilpotaxi/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WsHandler runs the web-chat socket. Each inbound message goes either to
// the assistant or, once the session is handed over, through the relay.
type WsHandler struct {
	hub       *ws.Hub
	store     *session.Store
	assistant assistantService.AssistantService
	handoff   service.HandoffService
	relay     service.RelayService
}

func NewWsHandler(
	hub *ws.Hub,
	store *session.Store,
	assistant assistantService.AssistantService,
	handoff service.HandoffService,
	relay service.RelayService,
) *WsHandler {
	return &WsHandler{
		hub:       hub,
		store:     store,
		assistant: assistant,
		handoff:   handoff,
		relay:     relay,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsInbound struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	ClientName  string `json:"clientName"`
	ClientPhone string `json:"clientPhone"`
}

func (h *WsHandler) Connect(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = util.GenerateUUID()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zlog.Error(err.Error())
		return
	}

	h.store.Create(sessionID, c.Query("client_name"), c.Query("client_phone"))

	client := ws.NewClient(sessionID, conn)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	go client.WritePump()

	// tell the browser which session it got, it may have asked without one
	_ = h.hub.SendJSON(sessionID, gateway.ClientPayload{
		Type:      "session",
		SessionID: sessionID,
		Timestamp: time.Now().Format(time.RFC3339),
	})

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var req wsInbound
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		switch req.Type {
		case "ping":
			h.send(sessionID, "pong", "", "")
		case "transfer":
			h.transfer(c, sessionID, req)
		case "message":
			h.message(c, sessionID, req)
		}
	}
}

func (h *WsHandler) transfer(c *gin.Context, sessionID string, req wsInbound) {
	_, err := h.handoff.Transfer(c.Request.Context(), sessionID, req.ClientName, req.ClientPhone)
	if err == nil {
		return // the handoff greeting already went out
	}
	if xerr.Is(err, xerr.NoCapacity) {
		h.send(sessionID, "system", "system",
			"Все операторы сейчас заняты, я продолжу помогать вам. Попробуйте позвать оператора чуть позже. 🤖")
		return
	}
	zlog.Error("transfer over ws failed", zap.String("session", sessionID), zap.Error(err))
	h.send(sessionID, "system", "system", "Не получилось позвать оператора, попробуйте ещё раз.")
}

func (h *WsHandler) message(c *gin.Context, sessionID string, req wsInbound) {
	if req.Text == "" {
		return
	}

	if h.store.IsHandedOver(sessionID) {
		conv, err := h.relay.ActiveConversation(sessionID)
		if err != nil {
			// conversation gone, fall back to the assistant
			h.store.MarkResumed(sessionID)
		} else {
			name := req.ClientName
			if name == "" {
				name = conv.ClientName
			}
			if _, rErr := h.relay.Relay(c.Request.Context(), conv.Uuid, service.DirectionToOperator, name, req.Text); rErr != nil {
				if xerr.Is(rErr, xerr.TransportUnavailable) {
					h.send(sessionID, "system", "system",
						"Оператор временно недоступен, но ваше сообщение сохранено и будет доставлено.")
					return
				}
				zlog.Error("relay over ws failed", zap.String("session", sessionID), zap.Error(rErr))
			}
			return
		}
	}

	answer, err := h.assistant.Reply(c.Request.Context(), sessionID, req.Text)
	if err != nil || answer == "" {
		return
	}
	h.send(sessionID, gateway.NotifyMessage, "assistant", answer)
}

func (h *WsHandler) send(sessionID, typ, sender, text string) {
	_ = h.hub.SendJSON(sessionID, gateway.ClientPayload{
		Type:      typ,
		SessionID: sessionID,
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
