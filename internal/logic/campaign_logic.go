package logic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/mliell/crowdmint/internal/logger"
	"github.com/mliell/crowdmint/internal/metrics"
	"github.com/mliell/crowdmint/internal/model"
	"github.com/mliell/crowdmint/internal/retry"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultBatchSize  = 3
	DefaultBatchDelay = 1500 * time.Millisecond
)

// Options 活动缓存服务配置
type Options struct {
	TTL                      time.Duration
	BatchSize                int
	BatchDelay               time.Duration
	KeepStaleOnRegistryError bool

	Policy  retry.Policy          // 链上读取的重试策略
	Store   SnapshotStore         // 可为空，为空时不持久化
	Metrics *metrics.CacheMetrics // 可为空
	Now     func() time.Time
	Sleep   retry.SleepFunc // 批次间等待
}

// DefaultOptions 默认配置
func DefaultOptions(retryable func(error) bool) Options {
	return Options{
		TTL:        DefaultTTL,
		BatchSize:  DefaultBatchSize,
		BatchDelay: DefaultBatchDelay,
		Policy:     retry.DefaultPolicy(retryable),
		Now:        time.Now,
		Sleep:      retry.Sleep,
	}
}

// CacheSnapshot 对外返回的缓存视图
type CacheSnapshot struct {
	Campaigns  []model.CampaignRecord
	Timestamp  time.Time
	TTL        time.Duration
	NextUpdate time.Time
}

// CacheStatus 缓存运行状态
type CacheStatus struct {
	Populated  bool
	InFlight   bool
	Campaigns  int
	Timestamp  time.Time
	Age        time.Duration
	TTL        time.Duration
	NextUpdate time.Time
	LastRun    *model.RefreshRunModel
}

// cacheEntry 一次刷新产出的不可变快照
type cacheEntry struct {
	campaigns []model.CampaignRecord
	timestamp time.Time
}

// CampaignService 活动缓存与刷新编排
type CampaignService struct {
	reader  ChainReader
	fetcher *CampaignFetcher
	opts    Options
	pool    *ants.Pool

	mu       sync.Mutex // 串行化缓存替换
	cache    atomic.Pointer[cacheEntry]
	inFlight atomic.Bool
	lastRun  atomic.Pointer[model.RefreshRunModel]
}

// NewCampaignService 创建活动缓存服务
func NewCampaignService(reader ChainReader, resolver MetadataResolver, opts Options) (*CampaignService, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Sleep
	}
	if opts.Policy.Sleep == nil {
		opts.Policy.Sleep = retry.Sleep
	}

	onRetry := opts.Policy.OnRetry
	m := opts.Metrics
	opts.Policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		m.RPCRetried()
		logger.Warn("Rate limited on attempt %d, retrying in %s: %v", attempt, wait, err)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}
	}

	pool, err := ants.NewPool(opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch pool: %w", err)
	}

	return &CampaignService{
		reader:  reader,
		fetcher: NewCampaignFetcher(reader, resolver, opts.Policy, opts.Now),
		opts:    opts,
		pool:    pool,
	}, nil
}

// Close 释放协程池
func (s *CampaignService) Close() {
	s.pool.Release()
}

// TTL 缓存有效期
func (s *CampaignService) TTL() time.Duration {
	return s.opts.TTL
}

// isStale 从未填充或超过 TTL 视为过期
func (s *CampaignService) isStale(now time.Time) bool {
	entry := s.cache.Load()
	if entry == nil {
		return true
	}
	return now.Sub(entry.timestamp) > s.opts.TTL
}

// GetCampaigns 返回缓存的活动列表，过期时先同步刷新
func (s *CampaignService) GetCampaigns(ctx context.Context) CacheSnapshot {
	now := s.opts.Now()
	if s.isStale(now) {
		// 刷新结果由所有调用方共享，不随单个请求取消
		s.Refresh(context.WithoutCancel(ctx))
	}

	snapshot := CacheSnapshot{TTL: s.opts.TTL}
	entry := s.cache.Load()
	if entry == nil {
		snapshot.Campaigns = []model.CampaignRecord{}
		snapshot.Timestamp = now
		snapshot.NextUpdate = now
		return snapshot
	}

	snapshot.Campaigns = make([]model.CampaignRecord, len(entry.campaigns))
	copy(snapshot.Campaigns, entry.campaigns)
	snapshot.Timestamp = entry.timestamp
	snapshot.NextUpdate = entry.timestamp.Add(s.opts.TTL)
	return snapshot
}

// Refresh 执行一次完整刷新；已有刷新在进行时立即返回 false
func (s *CampaignService) Refresh(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.opts.Metrics.RefreshSkipped()
		logger.Debug("Refresh already in progress, skipping")
		return false
	}
	defer s.inFlight.Store(false)

	started := s.opts.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic during campaign refresh: %v", r)
			s.opts.Metrics.ObserveRefresh("panic", s.opts.Now().Sub(started), s.cachedCount())
		}
	}()

	s.refresh(ctx, started)
	return true
}

func (s *CampaignService) refresh(ctx context.Context, started time.Time) {
	run := &model.RefreshRunModel{
		Id:        uuid.NewString(),
		StartedAt: started,
	}
	result := "ok"

	addresses, err := retry.Do(ctx, s.opts.Policy, s.reader.CampaignAddresses)
	if err != nil {
		logger.Error("Failed to fetch campaign addresses: %v", err)
		run.RegistryError = err.Error()
		result = "registry_error"

		if s.opts.KeepStaleOnRegistryError && s.cache.Load() != nil {
			logger.Warn("Keeping stale campaign cache after registry failure")
			s.finishRun(run, started)
			s.opts.Metrics.ObserveRefresh(result, run.FinishedAt.Sub(started), s.cachedCount())
			return
		}
		addresses = nil
	}
	run.AddressCount = len(addresses)

	campaigns, failed, err := s.fetchAll(ctx, addresses)
	run.CampaignCount = len(campaigns)
	run.FailedCount = failed
	if err != nil {
		logger.Warn("Refresh interrupted, keeping previous cache of %d campaigns: %v", s.cachedCount(), err)
		s.finishRun(run, started)
		s.opts.Metrics.ObserveRefresh("interrupted", run.FinishedAt.Sub(started), s.cachedCount())
		return
	}

	fetchedAt := s.opts.Now()
	s.mu.Lock()
	s.cache.Store(&cacheEntry{campaigns: campaigns, timestamp: fetchedAt})
	s.mu.Unlock()
	logger.Info("Campaign cache updated with %d campaigns (%d failed)", len(campaigns), failed)

	s.finishRun(run, started)
	if s.opts.Store != nil {
		if err := s.opts.Store.SaveRefresh(ctx, run, campaigns); err != nil {
			logger.Error("Failed to persist refresh run %s: %v", run.Id, err)
		}
	}
	s.opts.Metrics.ObserveRefresh(result, run.FinishedAt.Sub(started), len(campaigns))
}

func (s *CampaignService) finishRun(run *model.RefreshRunModel, started time.Time) {
	run.FinishedAt = s.opts.Now()
	run.DurationMs = run.FinishedAt.Sub(started).Milliseconds()
	s.lastRun.Store(run)
}

func (s *CampaignService) cachedCount() int {
	if entry := s.cache.Load(); entry != nil {
		return len(entry.campaigns)
	}
	return 0
}

// fetchAll 按批抓取，批内并发，批间等待；被取消时返回 ctx 的错误，结果不完整
func (s *CampaignService) fetchAll(ctx context.Context, addresses []common.Address) ([]model.CampaignRecord, int, error) {
	campaigns := make([]model.CampaignRecord, 0, len(addresses))
	if len(addresses) == 0 {
		return campaigns, 0, nil
	}

	batches := Partition(addresses, s.opts.BatchSize)
	logger.Info("Fetching %d campaigns in %d batches of %d", len(addresses), len(batches), s.opts.BatchSize)

	failed := 0
	for i, batch := range batches {
		for _, record := range s.fetchBatch(ctx, batch) {
			if record == nil {
				failed++
				continue
			}
			campaigns = append(campaigns, *record)
		}

		if i < len(batches)-1 {
			if err := s.opts.Sleep(ctx, s.opts.BatchDelay); err != nil {
				logger.Warn("Refresh interrupted after batch %d/%d: %v", i+1, len(batches), err)
				failed += countRemaining(batches[i+1:])
				return campaigns, failed, err
			}
		}
	}

	return campaigns, failed, ctx.Err()
}

// fetchBatch 并发抓取一批，结果按输入顺序返回，失败项为 nil
func (s *CampaignService) fetchBatch(ctx context.Context, batch []common.Address) []*model.CampaignRecord {
	results := make([]*model.CampaignRecord, len(batch))

	var wg sync.WaitGroup
	for i, address := range batch {
		i, address := i, address
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			record, err := s.fetcher.Fetch(ctx, address)
			if err != nil {
				s.recordFailure(err)
				return
			}
			results[i] = record
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit campaign %s to fetch pool: %v", address.Hex(), err)
			s.opts.Metrics.FetchFailed("submit")
		}
	}
	wg.Wait()

	return results
}

func (s *CampaignService) recordFailure(err error) {
	var fe *FetchError
	if errors.As(err, &fe) {
		s.opts.Metrics.FetchFailed(string(fe.Stage))
		logger.With(
			zap.String("campaign", fe.Address.Hex()),
			zap.String("stage", string(fe.Stage)),
		).Warn("Dropping campaign: %v", fe.Err)
		return
	}
	s.opts.Metrics.FetchFailed("unknown")
	logger.Warn("Dropping campaign: %v", err)
}

// Campaign 实时抓取单个活动
func (s *CampaignService) Campaign(ctx context.Context, address common.Address) (*model.CampaignRecord, error) {
	return s.fetcher.Fetch(ctx, address)
}

// Status 返回缓存运行状态
func (s *CampaignService) Status() CacheStatus {
	now := s.opts.Now()
	status := CacheStatus{
		InFlight: s.inFlight.Load(),
		TTL:      s.opts.TTL,
		LastRun:  s.lastRun.Load(),
	}
	if entry := s.cache.Load(); entry != nil {
		status.Populated = true
		status.Campaigns = len(entry.campaigns)
		status.Timestamp = entry.timestamp
		status.Age = now.Sub(entry.timestamp)
		status.NextUpdate = entry.timestamp.Add(s.opts.TTL)
	}
	return status
}

// WarmStart 用最近一次持久化的快照填充空缓存
func (s *CampaignService) WarmStart(ctx context.Context) error {
	if s.opts.Store == nil {
		return nil
	}
	campaigns, fetchedAt, err := s.opts.Store.LoadLatest(ctx, s.opts.Now())
	if err != nil {
		return fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	if fetchedAt.IsZero() {
		logger.Info("No persisted campaign snapshot found, starting cold")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache.Load() != nil {
		return nil
	}
	s.cache.Store(&cacheEntry{campaigns: campaigns, timestamp: fetchedAt})
	logger.Info("Warm started campaign cache with %d campaigns from %s", len(campaigns), fetchedAt.Format(time.RFC3339))
	return nil
}

// Partition 按 size 切分，最后一批可能不足
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

func countRemaining[T any](batches [][]T) int {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	return n
}
