package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"pulse-carescore/internal/models"
	"pulse-carescore/internal/service"
)

// EscalationHandler 升级记录 Handler
type EscalationHandler struct {
	escalationService *service.EscalationService
	logger            *zap.Logger
}

// NewEscalationHandler 创建升级记录 Handler
func NewEscalationHandler(escalationService *service.EscalationService, logger *zap.Logger) *EscalationHandler {
	return &EscalationHandler{
		escalationService: escalationService,
		logger:            logger,
	}
}

// List 获取用户升级记录列表
func (h *EscalationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusOK, Fail("user_id is required"))
		return
	}

	openOnly := r.URL.Query().Get("open") == "true"
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	if limit > 200 {
		limit = 200
	}

	records, err := h.escalationService.ListEscalations(ctx, userID, openOnly, limit)
	if err != nil {
		h.logger.Error("Failed to list escalations",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": records,
		"total": len(records),
	}))
}

// Acknowledge 确认升级记录
func (h *EscalationHandler) Acknowledge(w http.ResponseWriter, r *http.Request, escalationID string) {
	ctx := r.Context()

	var body struct {
		Action string `json:"action"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	action := models.AckAction(strings.TrimSpace(body.Action))
	if !action.IsValid() {
		writeJSON(w, http.StatusOK, Fail("action must be 'dismissed' or 'scheduled'"))
		return
	}

	record, err := h.escalationService.Acknowledge(ctx, escalationID, action)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		h.logger.Error("Failed to acknowledge escalation",
			zap.String("escalation_id", escalationID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(record))
}
