package handler

import (
	"strconv"

	supportRequest "ilpotaxi/internal/modules/support/application/dto/request"
	"ilpotaxi/internal/modules/support/application/service"
	"ilpotaxi/pkg/back"
	"ilpotaxi/pkg/xerr"
	"ilpotaxi/pkg/zlog"

	"github.com/gin-gonic/gin"
)

// ChatHandler serves the client-facing chat API next to the websocket.
type ChatHandler struct {
	handoff service.HandoffService
	relay   service.RelayService
}

func NewChatHandler(handoff service.HandoffService, relay service.RelayService) *ChatHandler {
	return &ChatHandler{handoff: handoff, relay: relay}
}

// Transfer asks for a human operator.
func (h *ChatHandler) Transfer(c *gin.Context) {
	var req supportRequest.TransferRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.handoff.Transfer(c.Request.Context(), req.SessionID, req.ClientName, req.ClientPhone)
	back.Result(c, data, err)
}

// Send relays a client message into an open conversation.
func (h *ChatHandler) Send(c *gin.Context) {
	var req supportRequest.SendMessageRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.relay.Relay(c.Request.Context(), req.ConversationUuid, service.DirectionToOperator, req.SenderName, req.Text)
	back.Result(c, data, err)
}

func (h *ChatHandler) History(c *gin.Context) {
	conversationUuid := c.Param("conversationUuid")
	if conversationUuid == "" {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 100
	}

	// an operator fetch marks the client messages as read
	markRead := c.GetString("uuid") != ""
	data, hErr := h.relay.History(conversationUuid, limit, markRead)
	back.Result(c, data, hErr)
}
