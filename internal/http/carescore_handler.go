package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"pulse-carescore/internal/engine"
	"pulse-carescore/internal/service"
)

// CareScoreHandler CareScore 查询与计算 Handler
type CareScoreHandler struct {
	careService *service.CareScoreService
	insights    *service.InsightsClient
	logger      *zap.Logger
}

// NewCareScoreHandler 创建 CareScore Handler
func NewCareScoreHandler(careService *service.CareScoreService, insights *service.InsightsClient, logger *zap.Logger) *CareScoreHandler {
	return &CareScoreHandler{
		careService: careService,
		insights:    insights,
		logger:      logger,
	}
}

// GetLatest 获取用户最新分数
func (h *CareScoreHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusOK, Fail("user_id is required"))
		return
	}

	result, err := h.careService.GetLatestScore(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to get latest score",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, Fail("no care score yet"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"score":      result,
		"suggestion": h.insights.GetSuggestion(result),
	}))
}

// GetHistory 获取用户分数历史
func (h *CareScoreHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusOK, Fail("user_id is required"))
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 30)
	if limit > 200 {
		limit = 200
	}

	results, err := h.careService.GetScoreHistory(ctx, userID, limit)
	if err != nil {
		h.logger.Error("Failed to get score history",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": results,
		"total": len(results),
	}))
}

// Compute 立即评估用户（不等下一个轮询周期）
func (h *CareScoreHandler) Compute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		UserID string `json:"user_id"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}
	if body.UserID == "" {
		writeJSON(w, http.StatusOK, Fail("user_id is required"))
		return
	}

	result, err := h.careService.EvaluateUser(ctx, body.UserID)
	if err != nil {
		if errors.Is(err, engine.ErrNoData) {
			writeJSON(w, http.StatusOK, Fail("no scorable data for user"))
			return
		}
		h.logger.Error("Failed to compute care score",
			zap.String("user_id", body.UserID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"score":      result,
		"suggestion": h.insights.GetSuggestion(result),
	}))
}
