package proxypool

import (
	"sort"
	"sync"
	"time"

	"subcollect/internal/shared/logger"
	"subcollect/proxypool/model"
)

// Registry 是内存中的代理记录集合，以 "host:port" 为键。
// 它是整个模块唯一的可变共享状态；所有变更都经过它的同步方法。
// 竞速请求的迟到结果允许在调用方返回之后继续汇入，Registry 必须容忍
// 这种乱序更新而不丢计数。
type Registry struct {
	mu      sync.RWMutex
	proxies map[string]*model.ProxyInfo
}

// NewRegistry 创建一个空的 Registry。
func NewRegistry() *Registry {
	return &Registry{
		proxies: make(map[string]*model.ProxyInfo),
	}
}

// Upsert 按键合并一条代理记录。已存在同键记录时，旧记录的统计计数器
// 累加到新记录上，然后新记录整体替换旧记录（身份与协议字段以新为准）。
func (r *Registry) Upsert(p *model.ProxyInfo) {
	if p == nil {
		return
	}
	rec := p.Clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.proxies[rec.Key()]; ok {
		rec.MergeStats(prev)
	}
	r.proxies[rec.Key()] = rec
}

// RecordSuccess 为指定键的代理记录一次成功。键不存在时仅记日志，
// 不报错：迟到的竞速结果可能指向已被换掉的记录。
func (r *Registry) RecordSuccess(key string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proxies[key]
	if !ok {
		l := logger.WithComponent("ProxyPool/Registry")
		l.Debug().Str("proxy", key).Msg("Success for unknown proxy, ignoring.")
		return
	}
	p.RecordSuccess(elapsed)
}

// RecordFailure 为指定键的代理记录一次失败。
func (r *Registry) RecordFailure(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proxies[key]
	if !ok {
		l := logger.WithComponent("ProxyPool/Registry")
		l.Debug().Str("proxy", key).Msg("Failure for unknown proxy, ignoring.")
		return
	}
	p.RecordFailure()
}

// Ranked 返回按健康度降序排列的全部记录快照。
// 同分时按键升序，保证排序结果可复现。
func (r *Registry) Ranked() []*model.ProxyInfo {
	now := time.Now()

	r.mu.RLock()
	ranked := make([]*model.ProxyInfo, 0, len(r.proxies))
	for _, p := range r.proxies {
		ranked = append(ranked, p.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(ranked, func(i, j int) bool {
		si, sj := ranked[i].HealthScoreAt(now), ranked[j].HealthScoreAt(now)
		if si != sj {
			return si > sj
		}
		return ranked[i].Key() < ranked[j].Key()
	})
	return ranked
}

// Healthy 返回健康度达标的记录，按健康度降序。
func (r *Registry) Healthy(minScore float64) []*model.ProxyInfo {
	ranked := r.Ranked()
	healthy := ranked[:0]
	for _, p := range ranked {
		if p.HealthScore() >= minScore {
			healthy = append(healthy, p)
		}
	}
	return healthy
}

// Snapshot 返回全部记录的无序拷贝。
func (r *Registry) Snapshot() []*model.ProxyInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*model.ProxyInfo, 0, len(r.proxies))
	for _, p := range r.proxies {
		all = append(all, p.Clone())
	}
	return all
}

// Len 返回记录数量。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.proxies)
}
