package model

import (
	"encoding/json"
	"time"
)

// Snapshot 是代理池在两次运行之间的持久化形态。
type Snapshot struct {
	Proxies   []*ProxyInfo
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpired 检查快照是否过期。从未写入过 (UpdatedAt 为零值) 视为已过期。
func (s *Snapshot) IsExpired(ttl time.Duration) bool {
	if s.UpdatedAt.IsZero() {
		return true
	}
	return time.Since(s.UpdatedAt) > ttl
}

// HealthyProxies 返回健康度达标的代理。
func (s *Snapshot) HealthyProxies(minScore float64) []*ProxyInfo {
	healthy := make([]*ProxyInfo, 0, len(s.Proxies))
	for _, p := range s.Proxies {
		if p.HealthScore() >= minScore {
			healthy = append(healthy, p)
		}
	}
	return healthy
}

type snapshotJSON struct {
	Proxies   []*ProxyInfo `json:"proxies"`
	CreatedAt *float64     `json:"created_at"`
	UpdatedAt *float64     `json:"updated_at"`
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	proxies := s.Proxies
	if proxies == nil {
		proxies = []*ProxyInfo{}
	}
	return json.Marshal(snapshotJSON{
		Proxies:   proxies,
		CreatedAt: epochOrNil(s.CreatedAt),
		UpdatedAt: epochOrNil(s.UpdatedAt),
	})
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var j snapshotJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	s.Proxies = j.Proxies
	s.CreatedAt = timeFromEpoch(j.CreatedAt)
	s.UpdatedAt = timeFromEpoch(j.UpdatedAt)
	return nil
}
