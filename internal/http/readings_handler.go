package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"pulse-carescore/internal/config"
	"pulse-carescore/internal/models"
	rediscommon "pulse-carescore/internal/redis"
	"pulse-carescore/internal/repository"
)

// ReadingsHandler 读数接入 Handler
// HTTP 接入的读数统一转发到接入流，与 MQTT 桥接走同一条消费路径
type ReadingsHandler struct {
	config      *config.Config
	redisClient *rediscommon.Client
	healthRepo  *repository.HealthDataRepository
	logger      *zap.Logger
}

// NewReadingsHandler 创建读数接入 Handler
func NewReadingsHandler(
	cfg *config.Config,
	redisClient *rediscommon.Client,
	healthRepo *repository.HealthDataRepository,
	logger *zap.Logger,
) *ReadingsHandler {
	return &ReadingsHandler{
		config:      cfg,
		redisClient: redisClient,
		healthRepo:  healthRepo,
		logger:      logger,
	}
}

// Ingest 接收一批归一化读数
func (h *ReadingsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Readings []models.ReadingMessage `json:"readings"`
	}
	if err := readBodyJSON(r, 4<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}
	if len(body.Readings) == 0 {
		writeJSON(w, http.StatusOK, Fail("readings is required"))
		return
	}

	accepted := 0
	skipped := 0
	for _, msg := range body.Readings {
		if msg.UserID == "" || !models.SignalKind(msg.Kind).IsValid() {
			skipped++
			continue
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now()
		}
		if _, err := rediscommon.PublishJSONToStream(ctx, h.redisClient, h.config.Care.Ingest.Stream, &msg); err != nil {
			h.logger.Error("Failed to publish reading to stream",
				zap.String("user_id", msg.UserID),
				zap.String("kind", msg.Kind),
				zap.Error(err),
			)
			writeJSON(w, http.StatusOK, Fail("failed to enqueue readings"))
			return
		}
		accepted++
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"accepted": accepted,
		"skipped":  skipped,
	}))
}

// SubmitManual 接收手动输入（血压/血糖/症状）
// 手动输入直接落库，下一个评估周期计入手动分量
func (h *ReadingsHandler) SubmitManual(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		UserID      string   `json:"user_id"`
		BpSystolic  *float64 `json:"bp_systolic"`
		BpDiastolic *float64 `json:"bp_diastolic"`
		BloodSugar  *float64 `json:"blood_sugar"`
		Symptoms    []string `json:"symptoms"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}
	if body.UserID == "" {
		writeJSON(w, http.StatusOK, Fail("user_id is required"))
		return
	}

	manual := &models.ManualInput{
		BpSystolic:  body.BpSystolic,
		BpDiastolic: body.BpDiastolic,
		BloodSugar:  body.BloodSugar,
		Symptoms:    body.Symptoms,
	}
	if manual.IsEmpty() {
		writeJSON(w, http.StatusOK, Fail("manual input is empty"))
		return
	}

	if err := h.healthRepo.InsertManualInput(ctx, body.UserID, manual, time.Now()); err != nil {
		h.logger.Error("Failed to insert manual input",
			zap.String("user_id", body.UserID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"user_id": body.UserID,
	}))
}
