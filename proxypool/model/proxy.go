package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// 支持的代理协议。
const (
	SchemeHTTP   = "http"
	SchemeHTTPS  = "https"
	SchemeSOCKS4 = "socks4"
	SchemeSOCKS5 = "socks5"
)

// ProxyInfo 定义了一个候选代理的完整信息，是整个模块的核心数据结构。
// 它在内存中使用，并通过 cache.Store 以 JSON 持久化。
// 身份键是 "host:port"；统计计数器在 Upsert 合并时相加而不是覆盖。
type ProxyInfo struct {
	Host   string
	Port   int
	Scheme string // http / https / socks4 / socks5

	// 健康统计
	SuccessCount  int
	FailCount     int
	TotalRespTime float64 // 秒，只累计成功请求
	LastCheck     time.Time
	LastSuccess   time.Time

	// 来源网址，仅供追溯
	SourceURL string
}

// Key 返回代理的唯一键 "host:port"。
func (p *ProxyInfo) Key() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// URL 生成代理 URL。socks5 呈现为 socks5h，强制远端 DNS 解析，
// 避免本地 DNS 泄露。
func (p *ProxyInfo) URL() string {
	scheme := p.Scheme
	if scheme == "" {
		scheme = SchemeSOCKS5
	}
	if scheme == SchemeSOCKS5 {
		scheme = "socks5h"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, p.Host, p.Port)
}

// TotalCount 总请求次数。
func (p *ProxyInfo) TotalCount() int {
	return p.SuccessCount + p.FailCount
}

// SuccessRate 成功率 (0-100)。
func (p *ProxyInfo) SuccessRate() float64 {
	total := p.TotalCount()
	if total == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(total) * 100
}

// AvgRespTime 平均响应时间（秒）。从未成功时为 +Inf。
func (p *ProxyInfo) AvgRespTime() float64 {
	if p.SuccessCount == 0 {
		return math.Inf(1)
	}
	return p.TotalRespTime / float64(p.SuccessCount)
}

// HealthScore 健康度评分 (0-100)。
//
// 算法:
//   - 成功率权重 60%
//   - 响应时间权重 30%
//   - 活跃度权重 10%
//
// 分档边界是排序约定的一部分，不是可调参数。
func (p *ProxyInfo) HealthScore() float64 {
	return p.HealthScoreAt(time.Now())
}

// HealthScoreAt 以给定时刻为"现在"计算健康度，用于对整批记录做一致排序。
func (p *ProxyInfo) HealthScoreAt(now time.Time) float64 {
	// 成功率得分 (0-60)
	successScore := p.SuccessRate() * 0.6

	// 响应时间得分 (0-30)
	var timeScore float64
	avg := p.AvgRespTime()
	switch {
	case math.IsInf(avg, 1):
		timeScore = 0
	case avg <= 1.0:
		timeScore = 30
	case avg <= 3.0:
		timeScore = 20
	case avg <= 5.0:
		timeScore = 10
	default:
		timeScore = 5
	}

	// 活跃度得分 (0-10)
	var activityScore float64
	if p.LastSuccess.IsZero() {
		activityScore = 0
	} else {
		hours := now.Sub(p.LastSuccess).Hours()
		switch {
		case hours <= 1:
			activityScore = 10
		case hours <= 6:
			activityScore = 7
		case hours <= 24:
			activityScore = 4
		default:
			activityScore = 1
		}
	}

	return successScore + timeScore + activityScore
}

// RecordSuccess 记录一次成功请求。
func (p *ProxyInfo) RecordSuccess(elapsed time.Duration) {
	now := time.Now()
	p.SuccessCount++
	p.TotalRespTime += elapsed.Seconds()
	p.LastCheck = now
	p.LastSuccess = now
}

// RecordFailure 记录一次失败请求。
func (p *ProxyInfo) RecordFailure() {
	p.FailCount++
	p.LastCheck = time.Now()
}

// MergeStats 将旧记录的统计计数器累加到当前记录上。
// 用于跨采集轮次、跨进程重启保留历史。
func (p *ProxyInfo) MergeStats(prev *ProxyInfo) {
	if prev == nil {
		return
	}
	p.SuccessCount += prev.SuccessCount
	p.FailCount += prev.FailCount
	p.TotalRespTime += prev.TotalRespTime
}

// Clone 返回记录的浅拷贝。
func (p *ProxyInfo) Clone() *ProxyInfo {
	c := *p
	return &c
}

// proxyJSON 是缓存文件中的持久化形态（epoch 秒，未设置的时间为 null）。
type proxyJSON struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	ProxyType       string   `json:"proxy_type"`
	SuccessCount    int      `json:"success_count"`
	FailCount       int      `json:"fail_count"`
	TotalRespTime   float64  `json:"total_response_time"`
	LastCheckTime   *float64 `json:"last_check_time"`
	LastSuccessTime *float64 `json:"last_success_time"`
	SourceURL       *string  `json:"source_url"`
}

func (p *ProxyInfo) MarshalJSON() ([]byte, error) {
	j := proxyJSON{
		Host:            p.Host,
		Port:            p.Port,
		ProxyType:       p.Scheme,
		SuccessCount:    p.SuccessCount,
		FailCount:       p.FailCount,
		TotalRespTime:   p.TotalRespTime,
		LastCheckTime:   epochOrNil(p.LastCheck),
		LastSuccessTime: epochOrNil(p.LastSuccess),
	}
	if j.ProxyType == "" {
		j.ProxyType = SchemeSOCKS5
	}
	if p.SourceURL != "" {
		j.SourceURL = &p.SourceURL
	}
	return json.Marshal(j)
}

func (p *ProxyInfo) UnmarshalJSON(data []byte) error {
	var j proxyJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	p.Host = j.Host
	p.Port = j.Port
	p.Scheme = j.ProxyType
	if p.Scheme == "" {
		p.Scheme = SchemeSOCKS5
	}
	p.SuccessCount = j.SuccessCount
	p.FailCount = j.FailCount
	p.TotalRespTime = j.TotalRespTime
	p.LastCheck = timeFromEpoch(j.LastCheckTime)
	p.LastSuccess = timeFromEpoch(j.LastSuccessTime)
	if j.SourceURL != nil {
		p.SourceURL = *j.SourceURL
	}
	return nil
}

func epochOrNil(t time.Time) *float64 {
	if t.IsZero() {
		return nil
	}
	sec := float64(t.UnixNano()) / float64(time.Second)
	return &sec
}

func timeFromEpoch(sec *float64) time.Time {
	if sec == nil || *sec == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(*sec*float64(time.Second)))
}
