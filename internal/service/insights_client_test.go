package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulse-carescore/internal/engine"
	"pulse-carescore/internal/models"
)

func scoreForInsights() *models.CareScoreResult {
	return &models.CareScoreResult{
		ID:          "score-1",
		UserID:      "user-1",
		Score:       62,
		Status:      models.StatusModerate,
		Explanation: "heart rate is well above your usual baseline (z=3.0)",
	}
}

func TestInsightsClient_DisabledUsesFallback(t *testing.T) {
	client := NewInsightsClient("", 30, zap.NewNop())

	suggestion := client.GetSuggestion(scoreForInsights())

	assert.Equal(t, engine.RecommendationForStatus(models.StatusModerate), suggestion)
}

func TestInsightsClient_RemoteSuggestion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/insights", r.URL.Path)

		var req InsightsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user-1", req.UserID)
		assert.Equal(t, 62, req.Score)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(InsightsResponse{Suggestion: "Try a short walk after meals."})
	}))
	defer server.Close()

	client := NewInsightsClient(server.URL, 5, zap.NewNop())

	suggestion := client.GetSuggestion(scoreForInsights())

	assert.Equal(t, "Try a short walk after meals.", suggestion)
}

func TestInsightsClient_ServerErrorFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewInsightsClient(server.URL, 5, zap.NewNop())

	suggestion := client.GetSuggestion(scoreForInsights())

	assert.Equal(t, engine.RecommendationForStatus(models.StatusModerate), suggestion)
}

func TestInsightsClient_EmptySuggestionFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(InsightsResponse{})
	}))
	defer server.Close()

	client := NewInsightsClient(server.URL, 5, zap.NewNop())

	suggestion := client.GetSuggestion(scoreForInsights())

	assert.Equal(t, engine.RecommendationForStatus(models.StatusModerate), suggestion)
}

func TestInsightsClient_SuggestionForIncludesExplanation(t *testing.T) {
	client := NewInsightsClient("", 30, zap.NewNop())

	combined := client.SuggestionFor(scoreForInsights())

	assert.Contains(t, combined, "heart rate is well above your usual baseline")
	assert.Contains(t, combined, engine.RecommendationForStatus(models.StatusModerate))
}
