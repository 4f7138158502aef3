package racing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"subcollect/internal/shared/logger"
	"subcollect/proxypool/model"
)

// ErrNoProxies 表示代理列表为空，整个抓取直接失败。
var ErrNoProxies = errors.New("no proxies available")

// ErrAllFailed 表示所有竞速尝试都失败了。
var ErrAllFailed = errors.New("all proxies failed")

// Getter 是竞速器依赖的最小 HTTP 能力。
type Getter interface {
	Get(ctx context.Context, rawURL string, proxyURL string, timeout time.Duration) (string, error)
}

// Recorder 接收每次尝试的结果。由 Registry 实现。
type Recorder interface {
	RecordSuccess(key string, elapsed time.Duration)
	RecordFailure(key string)
}

// Source 提供按健康度排序的代理列表。
type Source interface {
	Ranked() []*model.ProxyInfo
}

// Racer 对同一个 URL 同时通过多个代理发起请求，第一个成功的返回。
// source 为 nil 时退化为直连。
type Racer struct {
	client  Getter
	rec     Recorder
	source  Source
	sem     *semaphore.Weighted
	workers int
}

// New 创建竞速抓取器。source 为 nil 表示本次运行不走代理。
func New(client Getter, rec Recorder, source Source, workers int) *Racer {
	if workers <= 0 {
		workers = 10
	}
	return &Racer{
		client:  client,
		rec:     rec,
		source:  source,
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
	}
}

// Fetch 实现站点采集器消费的抓取契约。
//
// 有代理时按健康度排序竞速；第一个成功的结果立即返回，不等慢的
// 尝试收尾。输家在胜出前完成的失败会记录；胜出后才完成的迟到结果
// 仍会汇入 Recorder，但不影响已返回的结果——保持与历史实现一致的
// 宽松一致性，registry 必须容忍这种事后更新。
func (r *Racer) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	if r.source == nil {
		return r.client.Get(ctx, rawURL, "", timeout)
	}

	ranked := r.source.Ranked()
	if len(ranked) == 0 {
		return "", fmt.Errorf("%w for %s", ErrNoProxies, rawURL)
	}
	return r.race(ctx, rawURL, ranked, timeout)
}

type attempt struct {
	key     string
	body    string
	err     error
	skipped bool
}

func (r *Racer) race(ctx context.Context, rawURL string, ranked []*model.ProxyInfo, timeout time.Duration) (string, error) {
	l := logger.WithComponent("ProxyPool/Racer")
	l.Debug().Int("proxies", len(ranked)).Str("url", rawURL).Msg("Racing fetch...")

	// raceCtx 只约束调度：胜出后不再放行新的尝试。
	// 已在途的尝试继续使用调用方的 ctx 跑完并记录结果。
	raceCtx, stop := context.WithCancel(ctx)
	defer stop()

	results := make(chan attempt, len(ranked))
	for _, p := range ranked {
		go func(p *model.ProxyInfo) {
			if err := r.sem.Acquire(raceCtx, 1); err != nil {
				results <- attempt{skipped: true}
				return
			}
			defer r.sem.Release(1)

			start := time.Now()
			body, err := r.client.Get(ctx, rawURL, p.URL(), timeout)
			if err != nil {
				r.rec.RecordFailure(p.Key())
				results <- attempt{key: p.Key(), err: err}
				return
			}
			r.rec.RecordSuccess(p.Key(), time.Since(start))
			results <- attempt{key: p.Key(), body: body}
		}(p)
	}

	for i := 0; i < len(ranked); i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case a := <-results:
			if a.skipped {
				continue
			}
			if a.err == nil {
				l.Info().Str("proxy", a.key).Str("url", rawURL).Msg("Racing fetch succeeded.")
				return a.body, nil
			}
			l.Debug().Str("proxy", a.key).Err(a.err).Msg("Racing attempt failed.")
		}
	}
	return "", fmt.Errorf("%w to fetch %s", ErrAllFailed, rawURL)
}
