package validator

import (
	"context"
	"sync"
	"time"

	"subcollect/internal/shared/logger"
	"subcollect/proxypool/client"
	"subcollect/proxypool/model"
)

// Validator 通过候选代理向测试端点发起探测请求，在有界并发下
// 批量验证，凑够目标数量后提前收工。
type Validator struct {
	client       *client.Client
	testURL      string
	timeout      time.Duration
	concurrency  int
	maxAvailable int
}

// Options 定义验证行为。
type Options struct {
	TestURL      string
	Timeout      time.Duration
	Concurrency  int
	MaxAvailable int // 凑够这么多可用代理后停止调度新探测
}

// New 创建一个验证器。
func New(c *client.Client, opts Options) *Validator {
	if opts.TestURL == "" {
		opts.TestURL = "http://httpbin.org/ip"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 20
	}
	if opts.MaxAvailable <= 0 {
		opts.MaxAvailable = 15
	}
	return &Validator{
		client:       c,
		testURL:      opts.TestURL,
		timeout:      opts.Timeout,
		concurrency:  opts.Concurrency,
		maxAvailable: opts.MaxAvailable,
	}
}

// Probe 通过候选代理向测试端点发送一次 GET。
// 任何错误（超时、拒绝连接、坏响应）都折算为失败，不向外抛。
func (v *Validator) Probe(ctx context.Context, p *model.ProxyInfo) (bool, time.Duration) {
	start := time.Now()
	_, err := v.client.Get(ctx, v.testURL, p.URL(), v.timeout)
	if err != nil {
		return false, 0
	}
	return true, time.Since(start)
}

// ValidateBatch 在有界 worker 池下批量探测候选代理，返回可用的那部分。
// 每个探测结果直接记录到候选记录自身的计数器上。
//
// 凑够 maxAvailable 后不再调度新探测；已在途的探测无法中断，
// 会继续跑完并照常记录结果——这是接受的竞态，ValidateBatch
// 在返回前等它们收尾。
func (v *Validator) ValidateBatch(ctx context.Context, candidates []*model.ProxyInfo) []*model.ProxyInfo {
	l := logger.WithComponent("ProxyPool/Validator")
	if len(candidates) == 0 {
		return nil
	}

	l.Info().Int("count", len(candidates)).Int("concurrency", v.concurrency).Msg("Starting validation batch...")

	batchCtx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, v.concurrency)

	var mu sync.Mutex
	available := make([]*model.ProxyInfo, 0, v.maxAvailable)
	checked := 0

	for _, p := range candidates {
		select {
		case <-batchCtx.Done():
		case semaphore <- struct{}{}:
		}
		if batchCtx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(p *model.ProxyInfo) {
			defer wg.Done()
			defer func() { <-semaphore }()

			ok, elapsed := v.Probe(ctx, p)

			mu.Lock()
			defer mu.Unlock()
			checked++
			if ok {
				p.RecordSuccess(elapsed)
				available = append(available, p)
				if len(available) >= v.maxAvailable {
					stop()
				}
			} else {
				p.RecordFailure()
			}
			if checked%50 == 0 {
				l.Info().Int("checked", checked).Int("available", len(available)).Msg("Validation progress.")
			}
		}(p)
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	l.Info().Int("checked", checked).Int("available", len(available)).Msg("Validation batch finished.")
	return available
}
