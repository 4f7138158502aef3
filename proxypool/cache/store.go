package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"subcollect/internal/shared/logger"
	"subcollect/proxypool/model"
)

// Store 负责代理池快照的持久化：带 TTL 和最小健康数量的有效性
// 判定，跨运行合并历史统计。
type Store struct {
	path       string
	ttl        time.Duration
	minHealthy int
	snap       *model.Snapshot
}

// NewStore 创建一个缓存存储。
func NewStore(path string, ttl time.Duration, minHealthy int) *Store {
	if minHealthy <= 0 {
		minHealthy = 10
	}
	return &Store{
		path:       path,
		ttl:        ttl,
		minHealthy: minHealthy,
	}
}

// Load 读取快照文件。文件缺失返回全新空快照；文件损坏记一条警告
// 后同样返回空快照，不让一次坏写入毁掉整个运行。
func (s *Store) Load() *model.Snapshot {
	l := logger.WithComponent("ProxyPool/Cache")

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.Warn().Err(err).Str("path", s.path).Msg("Failed to read cache file.")
		} else {
			l.Info().Str("path", s.path).Msg("Cache file not found, starting fresh.")
		}
		s.snap = &model.Snapshot{CreatedAt: time.Now()}
		return s.snap
	}

	snap := new(model.Snapshot)
	if err := json.Unmarshal(data, snap); err != nil {
		l.Warn().Err(err).Str("path", s.path).Msg("Malformed cache file, starting fresh.")
		s.snap = &model.Snapshot{CreatedAt: time.Now()}
		return s.snap
	}

	s.snap = snap
	l.Info().Int("count", len(snap.Proxies)).Str("path", s.path).Msg("Loaded proxies from cache.")
	return s.snap
}

// Save 写入当前快照，盖上 UpdatedAt 时间戳，按需创建父目录。
func (s *Store) Save() error {
	if s.snap == nil {
		return nil
	}
	l := logger.WithComponent("ProxyPool/Cache")

	now := time.Now()
	s.snap.UpdatedAt = now
	if s.snap.CreatedAt.IsZero() {
		s.snap.CreatedAt = now
	}

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(s.snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return err
	}
	l.Info().Int("count", len(s.snap.Proxies)).Str("path", s.path).Msg("Saved proxies to cache.")
	return nil
}

// IsValid 判定缓存是否可以直接复用：未过期，且健康度达标的记录
// 数量不少于 minHealthy。
func (s *Store) IsValid(minScore float64) bool {
	l := logger.WithComponent("ProxyPool/Cache")
	snap := s.snapshot()

	if snap.IsExpired(s.ttl) {
		l.Info().Msg("Cache expired.")
		return false
	}

	healthy := snap.HealthyProxies(minScore)
	if len(healthy) < s.minHealthy {
		l.Info().Int("healthy", len(healthy)).Int("required", s.minHealthy).Msg("Not enough healthy proxies in cache.")
		return false
	}
	return true
}

// Healthy 返回健康度达标的缓存代理。
func (s *Store) Healthy(minScore float64) []*model.ProxyInfo {
	return s.snapshot().HealthyProxies(minScore)
}

// UpdateProxies 把新记录合并进快照，合并语义与 Registry.Upsert 一致：
// 同键旧记录的统计计数器累加到新记录上，历史跨重启保留。
func (s *Store) UpdateProxies(newRecords []*model.ProxyInfo) {
	snap := s.snapshot()

	existing := make(map[string]*model.ProxyInfo, len(snap.Proxies))
	order := make([]string, 0, len(snap.Proxies)+len(newRecords))
	for _, p := range snap.Proxies {
		existing[p.Key()] = p
		order = append(order, p.Key())
	}

	for _, p := range newRecords {
		rec := p.Clone()
		if prev, ok := existing[rec.Key()]; ok {
			rec.MergeStats(prev)
		} else {
			order = append(order, rec.Key())
		}
		existing[rec.Key()] = rec
	}

	merged := make([]*model.ProxyInfo, 0, len(existing))
	for _, key := range order {
		merged = append(merged, existing[key])
	}
	snap.Proxies = merged
	snap.UpdatedAt = time.Now()
}

func (s *Store) snapshot() *model.Snapshot {
	if s.snap == nil {
		return s.Load()
	}
	return s.snap
}
