package proxypool

import (
	"context"
	"time"

	"subcollect/internal/shared/logger"
	"subcollect/internal/shared/types"
	"subcollect/proxypool/cache"
	"subcollect/proxypool/client"
	"subcollect/proxypool/model"
	"subcollect/proxypool/racing"
	"subcollect/proxypool/source"
	"subcollect/proxypool/validator"
)

// Fetcher 是站点采集器消费的抓取契约：取回一个 URL 的原始文本，
// 失败时返回错误。由竞速抓取或直连客户端实现。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) (string, error)
}

// Manager 是代理池模块的总控制器，把源抓取、验证、缓存和竞速抓取
// 装配在一起。单次运行单趟使用：Prepare 一次，然后并发消费 Fetcher。
type Manager struct {
	cfg       *types.Config
	client    *client.Client
	source    *source.Fetcher
	validator *validator.Validator
	cache     *cache.Store
	registry  *Registry

	useCache bool
}

// NewManager 创建并装配代理池管理器。sources 由调用方显式传入，
// 没有进程级的默认源表。
func NewManager(cfg *types.Config, sources []model.SourceSpec, useCache bool) *Manager {
	httpClient := client.New(client.Options{
		UserAgent: cfg.FetchConf.UserAgent,
		VerifySSL: cfg.FetchConf.VerifySSL,
		Retries:   cfg.FetchConf.Retries,
	})

	return &Manager{
		cfg:    cfg,
		client: httpClient,
		source: source.NewFetcher(httpClient, source.Options{
			Sources:     sources,
			SampleSize:  cfg.PoolConf.SampleSize,
			GithubProxy: cfg.FetchConf.GithubProxy,
			Timeout:     time.Duration(cfg.FetchConf.TimeoutSeconds) * time.Second,
		}),
		validator: validator.New(httpClient, validator.Options{
			TestURL:      cfg.PoolConf.TestURL,
			Timeout:      time.Duration(cfg.PoolConf.CheckTimeoutSeconds) * time.Second,
			Concurrency:  cfg.PoolConf.CheckWorkers,
			MaxAvailable: cfg.PoolConf.MaxAvailable,
		}),
		cache: cache.NewStore(
			cfg.PoolConf.CacheFile,
			time.Duration(cfg.PoolConf.CacheTTLSeconds)*time.Second,
			cfg.PoolConf.MinHealthyCount,
		),
		registry: NewRegistry(),
		useCache: useCache && cfg.PoolConf.CacheEnabled,
	}
}

// Prepare 装填代理池：缓存仍然有效时直接复用，否则走一遍
// 抓取源 -> 验证 -> 更新缓存的完整流程。
// 缓存只在新一轮验证之后重写；复用缓存的运行不会回写文件。
func (m *Manager) Prepare(ctx context.Context) error {
	l := logger.WithComponent("ProxyPool/Manager")

	if m.useCache {
		m.cache.Load()
		if m.cache.IsValid(m.cfg.PoolConf.MinHealthScore) {
			healthy := m.cache.Healthy(m.cfg.PoolConf.MinHealthScore)
			for _, p := range healthy {
				m.registry.Upsert(p)
			}
			l.Info().Int("count", len(healthy)).Msg("Using proxies from cache.")
			return nil
		}
	}

	candidates := m.source.FetchCandidates(ctx)
	l.Info().Int("count", len(candidates)).Msg("Total proxies fetched.")

	validated := m.validator.ValidateBatch(ctx, candidates)
	l.Info().Int("count", len(validated)).Msg("Validated proxies.")

	for _, p := range validated {
		m.registry.Upsert(p)
	}

	if m.useCache {
		m.cache.UpdateProxies(validated)
		if err := m.cache.Save(); err != nil {
			l.Error().Err(err).Msg("Failed to save proxy cache.")
		}
	}
	return nil
}

// Fetcher 返回站点采集器使用的抓取器。池中有可用代理时按健康度
// 竞速，否则退化为直连——零可用代理不应让整次采集空手而归。
func (m *Manager) Fetcher() Fetcher {
	if m.registry.Len() == 0 {
		l := logger.WithComponent("ProxyPool/Manager")
		l.Warn().Msg("No proxies available, falling back to direct fetching.")
		return racing.New(m.client, m.registry, nil, m.cfg.PoolConf.RaceWorkers)
	}
	return racing.New(m.client, m.registry, m.registry, m.cfg.PoolConf.RaceWorkers)
}

// DirectFetcher 返回不走代理的抓取器。
func (m *Manager) DirectFetcher() Fetcher {
	return racing.New(m.client, m.registry, nil, m.cfg.PoolConf.RaceWorkers)
}

// Registry 返回底层注册表，用于观察统计。
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Available 返回当前池中的代理数量。
func (m *Manager) Available() int {
	return m.registry.Len()
}
