package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pulse-carescore/internal/config"
	"pulse-carescore/internal/consumer"
	"pulse-carescore/internal/engine"
	"pulse-carescore/internal/models"
	"pulse-carescore/internal/repository"
)

// CareScoreService 评分编排服务
// 周期性地为每个用户取一致快照、推进持续状态、合成分数并落库
// 同一用户的评估串行化（用户级互斥），不同用户可并行
type CareScoreService struct {
	db           *sql.DB
	config       *config.Config
	policy       engine.Policy
	healthRepo   *repository.HealthDataRepository
	baselineRepo *repository.BaselineRepository
	scoreRepo    *repository.CareScoreRepository
	escRepo      *repository.EscalationRepository
	cache        *consumer.CacheManager
	states       *consumer.StateManager
	insights     *InsightsClient
	logger       *zap.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewCareScoreService 创建评分服务
func NewCareScoreService(
	db *sql.DB,
	cfg *config.Config,
	healthRepo *repository.HealthDataRepository,
	baselineRepo *repository.BaselineRepository,
	scoreRepo *repository.CareScoreRepository,
	escRepo *repository.EscalationRepository,
	cache *consumer.CacheManager,
	states *consumer.StateManager,
	insights *InsightsClient,
	logger *zap.Logger,
) *CareScoreService {
	policy := engine.DefaultPolicy()
	// 策略覆盖来自配置，权重表保持默认
	if cfg.Care.Policy.BaselineWindowDays > 0 {
		policy.BaselineWindowDays = cfg.Care.Policy.BaselineWindowDays
	}
	if cfg.Care.Policy.BaselineMinSamples > 0 {
		policy.BaselineMinSamples = cfg.Care.Policy.BaselineMinSamples
	}

	return &CareScoreService{
		db:           db,
		config:       cfg,
		policy:       policy,
		healthRepo:   healthRepo,
		baselineRepo: baselineRepo,
		scoreRepo:    scoreRepo,
		escRepo:      escRepo,
		cache:        cache,
		states:       states,
		insights:     insights,
		logger:       logger,
		userLocks:    map[string]*sync.Mutex{},
	}
}

// lockUser 获取用户级互斥锁（惰性创建）
func (s *CareScoreService) lockUser(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// Policy 获取生效的评分策略
func (s *CareScoreService) Policy() engine.Policy {
	return s.policy
}

// EvaluateUser 评估单个用户并返回新的 CareScore
//
// 评估流程：
// 1. 取用户级锁，串行化同一用户的评估
// 2. 重算基线（窗口内观察天数不足的信号保持无基线）
// 3. 取最新读数 + 手动输入 + 持续状态 + 分数历史的一致快照
// 4. 推进每个信号的持续状态
// 5. 合成 CareScore 并落库（只追加）
// 6. 推进升级状态机
func (s *CareScoreService) EvaluateUser(ctx context.Context, userID string) (*models.CareScoreResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	lock := s.lockUser(userID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()

	// 1. 重算基线
	baselines, err := s.refreshBaselines(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh baselines: %w", err)
	}

	// 2. 取快照
	readings, err := s.loadLatestReadings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load readings: %w", err)
	}

	manual, err := s.healthRepo.GetLatestManualInput(ctx, userID, 24)
	if err != nil {
		return nil, fmt.Errorf("failed to load manual input: %w", err)
	}

	states, err := s.states.GetStates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load persistence states: %w", err)
	}

	history, err := s.scoreRepo.GetRecentScoreValues(ctx, userID, s.config.Care.Evaluation.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load score history: %w", err)
	}

	// 3. 推进持续状态（先推进再合成，本周期的偏离计入持续性）
	advanced := map[models.SignalKind]models.PersistenceState{}
	for kind, reading := range readings {
		deviation := engine.Score(s.policy, reading, baselines[kind])
		next := engine.Advance(states[kind], deviation.Tier, now)
		advanced[kind] = next
		if err := s.states.SetState(ctx, next); err != nil {
			return nil, fmt.Errorf("failed to persist state for %s: %w", kind, err)
		}
	}

	// 4. 合成分数
	result, err := engine.Compute(s.policy, engine.ComposeInput{
		UserID:       userID,
		Timestamp:    now,
		Readings:     readings,
		Baselines:    baselines,
		Manual:       manual,
		Persistence:  advanced,
		ScoreHistory: history,
	})
	if err != nil {
		if errors.Is(err, engine.ErrNoData) {
			s.logger.Debug("No scorable data for user", zap.String("user_id", userID))
			return nil, err
		}
		return nil, fmt.Errorf("failed to compute care score: %w", err)
	}

	// 5. 落库 + 缓存
	if err := s.scoreRepo.InsertScore(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to persist care score: %w", err)
	}
	if err := s.cache.UpdateLatestScore(ctx, result); err != nil {
		// 缓存失败不影响评分结果
		s.logger.Warn("Failed to cache care score",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	// 6. 推进升级状态机
	if err := s.advanceEscalation(ctx, result, now); err != nil {
		return nil, fmt.Errorf("failed to advance escalation: %w", err)
	}

	s.logger.Info("Care score computed",
		zap.String("user_id", userID),
		zap.Int("score", result.Score),
		zap.String("status", string(result.Status)),
		zap.Float64("confidence", result.Confidence),
	)

	return result, nil
}

// refreshBaselines 重算用户所有信号的基线
// 观察天数不足的信号没有基线（map 值为 nil），对应信号不计分
func (s *CareScoreService) refreshBaselines(ctx context.Context, userID string, now time.Time) (map[models.SignalKind]*models.Baseline, error) {
	baselines := map[models.SignalKind]*models.Baseline{}

	for _, kind := range models.AllSignalKinds {
		window, err := s.healthRepo.GetWindowReadings(ctx, userID, kind, s.policy.BaselineWindowDays, now)
		if err != nil {
			return nil, err
		}

		baseline, err := engine.UpdateBaseline(s.policy, userID, kind, window, now)
		if err != nil {
			if errors.Is(err, engine.ErrInsufficientData) {
				baselines[kind] = nil
				continue
			}
			return nil, err
		}

		if err := s.baselineRepo.UpsertBaseline(ctx, baseline); err != nil {
			return nil, err
		}
		baselines[kind] = baseline
	}

	return baselines, nil
}

// loadLatestReadings 获取用户每种信号的最新读数（缓存优先，数据库兜底）
func (s *CareScoreService) loadLatestReadings(ctx context.Context, userID string) (map[models.SignalKind]models.Reading, error) {
	cached, err := s.cache.GetLatestReadings(ctx, userID)
	if err == nil && len(cached) > 0 {
		return cached, nil
	}
	if err != nil {
		s.logger.Warn("Reading cache unavailable, falling back to database",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	return s.healthRepo.GetLatestReadings(ctx, userID)
}

// advanceEscalation 按新分数推进升级状态机
// 同一用户最多一条打开的升级记录；只升不降
func (s *CareScoreService) advanceEscalation(ctx context.Context, result *models.CareScoreResult, now time.Time) error {
	open, err := s.escRepo.GetOpenEscalation(ctx, result.UserID)
	if err != nil {
		return err
	}

	outcome := engine.AdvanceEscalation(result, open, now)
	switch outcome.Decision {
	case engine.EscalationCreated:
		if err := s.escRepo.CreateEscalation(ctx, outcome.Record); err != nil {
			return err
		}
		s.logger.Info("Escalation created",
			zap.String("user_id", result.UserID),
			zap.String("escalation_id", outcome.Record.ID),
			zap.Int("level", outcome.Record.Level),
		)
	case engine.EscalationAlreadyOpen:
		s.logger.Debug("Escalation already open at same or higher level",
			zap.String("user_id", result.UserID),
			zap.Int("open_level", open.Level),
		)
	case engine.EscalationNotApplicable:
		// 分数未达升级档，无动作
	}

	return nil
}

// RunPollLoop 运行周期评估循环（阻塞直到上下文取消）
// 周期批处理，不保证实时：新读数最晚在下一个周期反映到分数
func (s *CareScoreService) RunPollLoop(ctx context.Context) error {
	interval := time.Duration(s.config.Care.PollInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Evaluation poll loop started",
		zap.Duration("interval", interval),
		zap.Int("batch_size", s.config.Care.Evaluation.BatchSize),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Evaluation poll loop stopped")
			return nil
		case <-ticker.C:
			if err := s.evaluateAllUsers(ctx); err != nil {
				s.logger.Error("Evaluation sweep failed", zap.Error(err))
			}
		}
	}
}

// evaluateAllUsers 评估所有活跃用户（分批并行）
func (s *CareScoreService) evaluateAllUsers(ctx context.Context) error {
	users, err := s.healthRepo.ListActiveUsers(ctx, s.policy.BaselineWindowDays)
	if err != nil {
		return fmt.Errorf("failed to list active users: %w", err)
	}

	batchSize := s.config.Care.Evaluation.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	for start := 0; start < len(users); start += batchSize {
		end := start + batchSize
		if end > len(users) {
			end = len(users)
		}

		var wg sync.WaitGroup
		for _, userID := range users[start:end] {
			wg.Add(1)
			go func(uid string) {
				defer wg.Done()
				if _, err := s.EvaluateUser(ctx, uid); err != nil {
					if !errors.Is(err, engine.ErrNoData) {
						s.logger.Error("Failed to evaluate user",
							zap.String("user_id", uid),
							zap.Error(err),
						)
					}
				}
			}(userID)
		}
		wg.Wait()

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}

	return nil
}

// GetLatestScore 获取用户最新分数（缓存优先）
func (s *CareScoreService) GetLatestScore(ctx context.Context, userID string) (*models.CareScoreResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	cached, err := s.cache.GetLatestScore(ctx, userID)
	if err != nil {
		s.logger.Warn("Score cache unavailable, falling back to database",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	if cached != nil {
		return cached, nil
	}

	return s.scoreRepo.GetLatestScore(ctx, userID)
}

// GetScoreHistory 获取用户分数历史
func (s *CareScoreService) GetScoreHistory(ctx context.Context, userID string, limit int) ([]*models.CareScoreResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	return s.scoreRepo.GetScoreHistory(ctx, userID, limit)
}
