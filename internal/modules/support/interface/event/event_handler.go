package event

import (
	"context"
	"encoding/json"

	supportRequest "ilpotaxi/internal/modules/support/application/dto/request"
	"ilpotaxi/internal/modules/support/application/service"
	"ilpotaxi/internal/modules/support/infrastructure/mq"
	"ilpotaxi/pkg/xerr"
	"ilpotaxi/pkg/zlog"

	"go.uber.org/zap"
)

// OperatorEventHandler consumes the operator events topic and feeds each
// action into the same service the HTTP API uses.
type OperatorEventHandler struct {
	actions service.ActionService
}

func NewOperatorEventHandler(actions service.ActionService) *OperatorEventHandler {
	return &OperatorEventHandler{actions: actions}
}

// Handle implements mq.Handler. Malformed or rejected events are logged and
// acknowledged; retrying them cannot succeed.
func (h *OperatorEventHandler) Handle(ctx context.Context, msg mq.Message) error {
	var req supportRequest.OperatorActionRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		zlog.Warn("operator event not decodable", zap.Error(err))
		return nil
	}
	if req.OperatorUuid == "" {
		req.OperatorUuid = string(msg.Key)
	}
	if req.Action == "" || req.OperatorUuid == "" {
		zlog.Warn("operator event missing action or operator")
		return nil
	}

	if err := h.actions.Dispatch(ctx, req); err != nil {
		if e, ok := err.(*xerr.CodeError); ok {
			// business outcome, not a transport fault
			zlog.Warn("operator event rejected",
				zap.String("action", req.Action),
				zap.String("operator", req.OperatorUuid),
				zap.Int("code", e.Code))
			return nil
		}
		zlog.Error("operator event failed", zap.String("action", req.Action), zap.Error(err))
		return err
	}
	return nil
}

// Run consumes until ctx is cancelled.
func (h *OperatorEventHandler) Run(ctx context.Context, consumer mq.Consumer) {
	if err := consumer.Run(ctx, h); err != nil && ctx.Err() == nil {
		zlog.Error("operator event consumer stopped", zap.Error(err))
	}
}
