package handler

import (
	"strconv"

	assignmentRequest "ilpotaxi/internal/modules/assignment/application/dto/request"
	"ilpotaxi/internal/modules/assignment/application/service"
	"ilpotaxi/pkg/back"
	"ilpotaxi/pkg/xerr"
	"ilpotaxi/pkg/zlog"

	"github.com/gin-gonic/gin"
)

type ApplicationHandler struct {
	svc service.IntakeService
}

func NewApplicationHandler(svc service.IntakeService) *ApplicationHandler {
	return &ApplicationHandler{svc: svc}
}

// Apply is the public signup endpoint behind the web form.
func (h *ApplicationHandler) Apply(c *gin.Context) {
	var req assignmentRequest.CreateApplicationRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.svc.CreateApplication(c.Request.Context(), req)
	back.Result(c, data, err)
}

func (h *ApplicationHandler) GetByWorkItem(c *gin.Context) {
	workItemUuid := c.Param("workItemUuid")
	if workItemUuid == "" {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.svc.GetApplicationByWorkItem(workItemUuid)
	back.Result(c, data, err)
}

// MyWorkItems lists the authed operator's items.
func (h *ApplicationHandler) MyWorkItems(c *gin.Context) {
	uuid := c.GetString("uuid")
	if uuid == "" {
		back.Error(c, xerr.Unauthorized, "missing identity")
		return
	}

	data, err := h.svc.ListOperatorWorkItems(uuid, limitParam(c))
	back.Result(c, data, err)
}

func (h *ApplicationHandler) UnassignedWorkItems(c *gin.Context) {
	data, err := h.svc.ListUnassignedWorkItems(limitParam(c))
	back.Result(c, data, err)
}

func limitParam(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
