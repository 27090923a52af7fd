package handler

import (
	operatorRequest "ilpotaxi/internal/modules/operator/application/dto/request"
	operatorEntity "ilpotaxi/internal/modules/operator/domain/entity"
	supportRequest "ilpotaxi/internal/modules/support/application/dto/request"
	"ilpotaxi/internal/modules/support/application/service"
	"ilpotaxi/pkg/back"
	"ilpotaxi/pkg/xerr"
	"ilpotaxi/pkg/zlog"

	"github.com/gin-gonic/gin"
)

// ActionHandler exposes operator commands over authed HTTP. The Kafka events
// topic feeds the same action service.
type ActionHandler struct {
	actions service.ActionService
	relay   service.RelayService
}

func NewActionHandler(actions service.ActionService, relay service.RelayService) *ActionHandler {
	return &ActionHandler{actions: actions, relay: relay}
}

func (h *ActionHandler) Action(c *gin.Context) {
	var req supportRequest.OperatorActionRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	// identity always comes from the token, not the body
	req.OperatorUuid = c.GetString("uuid")
	if req.OperatorUuid == "" {
		back.Error(c, xerr.Unauthorized, "missing identity")
		return
	}

	err := h.actions.Dispatch(c.Request.Context(), req)
	back.Result(c, nil, err)
}

func (h *ActionHandler) SetStatus(c *gin.Context) {
	var req operatorRequest.SetStatusRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	uuid := c.GetString("uuid")
	if uuid == "" {
		back.Error(c, xerr.Unauthorized, "missing identity")
		return
	}
	status := operatorEntity.OperatorStatus(req.Status)
	if !status.Valid() {
		back.Error(c, xerr.BadRequest, "unknown status")
		return
	}

	err := h.actions.SetStatus(c.Request.Context(), uuid, status)
	back.Result(c, nil, err)
}

func (h *ActionHandler) MyConversations(c *gin.Context) {
	uuid := c.GetString("uuid")
	if uuid == "" {
		back.Error(c, xerr.Unauthorized, "missing identity")
		return
	}

	data, err := h.relay.ActiveConversations(uuid)
	back.Result(c, data, err)
}
