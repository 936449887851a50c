package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pulse-carescore/internal/service"
)

// ExportHandler 分数历史导出 Handler
type ExportHandler struct {
	careService *service.CareScoreService
	logger      *zap.Logger
}

// NewExportHandler 创建导出 Handler
func NewExportHandler(careService *service.CareScoreService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{
		careService: careService,
		logger:      logger,
	}
}

// ExportScores 导出用户分数历史为 Excel
func (h *ExportHandler) ExportScores(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusOK, Fail("user_id is required"))
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 200)
	if limit > 1000 {
		limit = 1000
	}

	results, err := h.careService.GetScoreHistory(ctx, userID, limit)
	if err != nil {
		h.logger.Error("Failed to load score history for export",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	data, err := GenerateScoreHistoryExport(results)
	if err != nil {
		h.logger.Error("Failed to generate score export",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail("failed to generate export"))
		return
	}

	filename := fmt.Sprintf("carescore-%s-%s.xlsx", userID, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
