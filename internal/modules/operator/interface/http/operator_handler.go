package handler

import (
	operatorRequest "ilpotaxi/internal/modules/operator/application/dto/request"
	"ilpotaxi/internal/modules/operator/application/service"
	"ilpotaxi/pkg/back"
	"ilpotaxi/pkg/xerr"
	"ilpotaxi/pkg/zlog"

	"github.com/gin-gonic/gin"
)

type OperatorHandler struct {
	svc service.OperatorService
}

func NewOperatorHandler(svc service.OperatorService) *OperatorHandler {
	return &OperatorHandler{svc: svc}
}

func (h *OperatorHandler) Register(c *gin.Context) {
	var req operatorRequest.RegisterRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.svc.Register(req)
	back.Result(c, data, err)
}

func (h *OperatorHandler) Login(c *gin.Context) {
	var req operatorRequest.LoginRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.svc.Login(req)
	back.Result(c, data, err)
}

func (h *OperatorHandler) Stats(c *gin.Context) {
	uuid := c.GetString("uuid")
	if uuid == "" {
		back.Error(c, xerr.Unauthorized, "missing identity")
		return
	}

	data, err := h.svc.Stats(c.Request.Context(), uuid)
	back.Result(c, data, err)
}
