package service

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"pulse-carescore/internal/engine"
	"pulse-carescore/internal/models"
)

// InsightsRequest 建议服务请求
type InsightsRequest struct {
	UserID              string                      `json:"user_id"`
	Score               int                         `json:"score"`
	Status              string                      `json:"status"`
	ContributingSignals []models.ContributingSignal `json:"contributing_signals"`
	Explanation         string                      `json:"explanation"`
}

// InsightsResponse 建议服务响应
type InsightsResponse struct {
	Suggestion string `json:"suggestion"`
}

// InsightsClient 外部健康建议服务客户端
// 外部服务不可用时回落到本地固定文案，评分流程不受影响
type InsightsClient struct {
	httpClient *resty.Client
	enabled    bool
	logger     *zap.Logger
}

// NewInsightsClient 创建建议服务客户端
// baseURL 为空时不调外部服务，只用本地回退文案
func NewInsightsClient(baseURL string, timeout int, logger *zap.Logger) *InsightsClient {
	if baseURL == "" {
		return &InsightsClient{enabled: false, logger: logger}
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(time.Duration(timeout) * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &InsightsClient{
		httpClient: client,
		enabled:    true,
		logger:     logger,
	}
}

// GetSuggestion 获取针对当前分数的健康建议
// 任何失败都返回本地回退文案，不返回错误
func (c *InsightsClient) GetSuggestion(result *models.CareScoreResult) string {
	fallback := engine.RecommendationForStatus(result.Status)
	if !c.enabled {
		return fallback
	}

	request := InsightsRequest{
		UserID:              result.UserID,
		Score:               result.Score,
		Status:              string(result.Status),
		ContributingSignals: result.ContributingSignals,
		Explanation:         result.Explanation,
	}

	var response InsightsResponse
	resp, err := c.httpClient.R().
		SetBody(request).
		SetResult(&response).
		Post("/v1/insights")

	if err != nil {
		c.logger.Warn("Insights API call failed, using fallback",
			zap.String("user_id", result.UserID),
			zap.Error(err),
		)
		return fallback
	}

	if resp.IsError() {
		c.logger.Warn("Insights API returned error, using fallback",
			zap.String("user_id", result.UserID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fallback
	}

	if response.Suggestion == "" {
		return fallback
	}

	return response.Suggestion
}

// SuggestionFor 组合建议文案（含解释）
func (c *InsightsClient) SuggestionFor(result *models.CareScoreResult) string {
	suggestion := c.GetSuggestion(result)
	if result.Explanation == "" {
		return suggestion
	}
	return fmt.Sprintf("%s %s", result.Explanation, suggestion)
}
