package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"subcollect/collector"
	"subcollect/internal/shared/logger"
	"subcollect/internal/shared/types"
	"subcollect/proxypool"
	"subcollect/proxypool/model"
)

// Options 是一次采集运行的入参，来自命令行。
type Options struct {
	Sites    []string // 空表示全部站点
	Workers  int
	UseProxy bool
	UseCache bool
	OutDir   string // 覆盖配置中的输出目录，空表示不覆盖
}

// App 把代理池和站点采集器装配成一次完整的采集运行。
type App struct {
	cfg     *types.Config
	sources []model.SourceSpec
}

// New 创建应用实例。
func New(cfg *types.Config, sources []model.SourceSpec) *App {
	return &App{cfg: cfg, sources: sources}
}

// Run 执行一趟完整采集：准备代理池（可选）、并发跑站点采集器、
// 注入时间戳、更新 manifest 和 README、打印汇总。
// 所有站点都失败时返回错误，让进程以非零码退出。
func (a *App) Run(ctx context.Context, opts Options) error {
	runID := uuid.NewString()
	l := logger.WithComponent("App").With().Str("run_id", runID).Logger()

	sites, err := collector.LookupSites(opts.Sites)
	if err != nil {
		return err
	}
	l.Info().Int("sites", len(sites)).Msg("Collectors to run.")

	outDir := a.cfg.CollectConf.OutputDir
	if opts.OutDir != "" {
		outDir = opts.OutDir
	}
	manifestFile := a.cfg.CollectConf.ManifestFile
	if opts.OutDir != "" {
		manifestFile = filepath.Join(outDir, "manifest.json")
	}

	manifest := collector.LoadManifest(manifestFile)
	timestamp := time.Now().Format("2006-01-02 15:04")

	// 代理池准备。零可用代理退化为直连，采集照常进行。
	manager := proxypool.NewManager(a.cfg, a.sources, opts.UseCache)
	var fetcher proxypool.Fetcher
	if opts.UseProxy {
		if err := manager.Prepare(ctx); err != nil {
			return fmt.Errorf("proxy pool preparation failed: %w", err)
		}
		l.Info().Int("available", manager.Available()).Msg("Proxy pool ready.")
		fetcher = manager.Fetcher()
	} else {
		fetcher = manager.DirectFetcher()
	}

	client := collector.NewClient(fetcher, time.Duration(a.cfg.CollectConf.DownloadTimeoutSeconds)*time.Second)

	workers := opts.Workers
	if workers <= 0 {
		workers = a.cfg.CollectConf.Workers
	}

	results := a.runSites(ctx, sites, client, outDir, manifest, workers)

	for _, r := range results {
		manifest.UpdateFromResult(r)
		if r.Status != collector.StatusFailed {
			clashPath := filepath.Join(outDir, r.Site, "clash.yaml")
			collector.ProcessDownloadedFile(clashPath, r, timestamp)
		}
	}

	if err := manifest.Save(); err != nil {
		l.Error().Err(err).Msg("Failed to save manifest.")
	}

	PrintReport(results)

	if err := UpdateReadme(manifest, a.cfg.CollectConf.ReadmeFile, a.cfg.FetchConf.GithubProxy, a.cfg.CollectConf.PublishBase, outDir); err != nil {
		l.Error().Err(err).Msg("Failed to update README.")
	}

	failed := 0
	for _, r := range results {
		if r.Status == collector.StatusFailed {
			failed++
		}
	}
	if failed == len(results) && len(results) > 0 {
		return fmt.Errorf("all %d collectors failed", failed)
	}
	return nil
}

// runSites 在有界 worker 池下并发执行站点采集器。
func (a *App) runSites(ctx context.Context, sites []collector.Site, client *collector.Client, outDir string, manifest *collector.Manifest, workers int) []collector.Result {
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, workers)
	resultsChan := make(chan collector.Result, len(sites))

	for _, site := range sites {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(site collector.Site) {
			defer wg.Done()
			defer func() { <-semaphore }()
			resultsChan <- collector.RunSite(ctx, site, client, outDir, manifest)
		}(site)
	}

	wg.Wait()
	close(resultsChan)

	results := make([]collector.Result, 0, len(sites))
	for r := range resultsChan {
		results = append(results, r)
	}
	return results
}
