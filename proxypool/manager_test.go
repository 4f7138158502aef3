package proxypool

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"subcollect/internal/shared/types"
	"subcollect/proxypool/model"
)

func poolConfig(cacheFile string) *types.Config {
	cfg := &types.Config{}
	cfg.FetchConf = types.FetchConf{
		TimeoutSeconds: 5,
		Retries:        1,
	}
	cfg.PoolConf = types.PoolConf{
		TestURL:             "http://origin.invalid/ip",
		MaxAvailable:        5,
		CheckTimeoutSeconds: 5,
		CheckWorkers:        4,
		RaceWorkers:         2,
		CacheEnabled:        true,
		CacheFile:           cacheFile,
		CacheTTLSeconds:     3600,
		MinHealthScore:      30,
		MinHealthyCount:     1,
		SampleSize:          10,
	}
	return cfg
}

func healthyRecord(host string, port int) *model.ProxyInfo {
	now := time.Now()
	return &model.ProxyInfo{
		Host:          host,
		Port:          port,
		Scheme:        model.SchemeSOCKS5,
		SuccessCount:  10,
		TotalRespTime: 5, // 平均 0.5s
		LastCheck:     now,
		LastSuccess:   now,
	}
}

func writeCacheFile(t *testing.T, path string, updatedAt time.Time, proxies ...*model.ProxyInfo) []byte {
	t.Helper()
	snap := &model.Snapshot{Proxies: proxies, CreatedAt: updatedAt, UpdatedAt: updatedAt}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write cache file: %v", err)
	}
	return data
}

func TestManagerPrepare_ReusesValidCache(t *testing.T) {
	var sourceHits atomic.Int32
	listSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sourceHits.Add(1)
		w.Write([]byte("10.0.0.1:1080\n"))
	}))
	defer listSrv.Close()

	cacheFile := filepath.Join(t.TempDir(), "cache.json")
	before := writeCacheFile(t, cacheFile, time.Now(),
		healthyRecord("10.0.0.1", 1080),
		healthyRecord("10.0.0.2", 1080),
	)

	sources := []model.SourceSpec{{URL: listSrv.URL, Weight: 1.0, Scheme: model.SchemeHTTP}}
	m := NewManager(poolConfig(cacheFile), sources, true)
	if err := m.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	if got := m.Available(); got != 2 {
		t.Errorf("Available() = %d, want 2 from cache", got)
	}
	if n := sourceHits.Load(); n != 0 {
		t.Errorf("source fetched %d times on a cache hit, want 0", n)
	}
	// 复用缓存的运行不回写文件
	after, err := os.ReadFile(cacheFile)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("cache file was rewritten on a reuse run")
	}
}

func TestManagerPrepare_FreshValidationRewritesCache(t *testing.T) {
	// 代理和源站是同一个 server：验证请求以代理模式打到这里
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"origin":"1.2.3.4"}`))
	}))
	defer proxySrv.Close()
	proxyURL, err := url.Parse(proxySrv.URL)
	if err != nil {
		t.Fatal(err)
	}

	listSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(proxyURL.Host + "\n"))
	}))
	defer listSrv.Close()

	// 缓存文件不存在 → 走抓取+验证的完整流程
	cacheFile := filepath.Join(t.TempDir(), "cache.json")
	sources := []model.SourceSpec{{URL: listSrv.URL, Weight: 1.0, Scheme: model.SchemeHTTP}}
	m := NewManager(poolConfig(cacheFile), sources, true)
	if err := m.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	if got := m.Available(); got != 1 {
		t.Fatalf("Available() = %d, want 1 validated proxy", got)
	}

	data, err := os.ReadFile(cacheFile)
	if err != nil {
		t.Fatalf("cache file not written after validation: %v", err)
	}
	snap := new(model.Snapshot)
	if err := json.Unmarshal(data, snap); err != nil {
		t.Fatalf("unmarshal written cache: %v", err)
	}
	if len(snap.Proxies) != 1 {
		t.Fatalf("cached %d proxies, want 1", len(snap.Proxies))
	}
	p := snap.Proxies[0]
	if p.SuccessCount < 1 || p.LastSuccess.IsZero() {
		t.Errorf("cached proxy lacks validation stats: %+v", p)
	}
	if snap.UpdatedAt.IsZero() {
		t.Error("written snapshot must carry UpdatedAt")
	}
}

func TestManagerPrepare_ExpiredCacheTriggersRevalidation(t *testing.T) {
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"origin":"1.2.3.4"}`))
	}))
	defer proxySrv.Close()
	proxyURL, err := url.Parse(proxySrv.URL)
	if err != nil {
		t.Fatal(err)
	}

	var sourceHits atomic.Int32
	listSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sourceHits.Add(1)
		w.Write([]byte(proxyURL.Host + "\n"))
	}))
	defer listSrv.Close()

	// TTL 3600s，两小时前的快照已过期
	cacheFile := filepath.Join(t.TempDir(), "cache.json")
	stale := healthyRecord("10.0.0.9", 1080)
	writeCacheFile(t, cacheFile, time.Now().Add(-2*time.Hour), stale)

	sources := []model.SourceSpec{{URL: listSrv.URL, Weight: 1.0, Scheme: model.SchemeHTTP}}
	m := NewManager(poolConfig(cacheFile), sources, true)
	if err := m.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	if sourceHits.Load() == 0 {
		t.Error("expired cache must trigger a fresh source fetch")
	}
	data, err := os.ReadFile(cacheFile)
	if err != nil {
		t.Fatal(err)
	}
	snap := new(model.Snapshot)
	if err := json.Unmarshal(data, snap); err != nil {
		t.Fatal(err)
	}
	if time.Since(snap.UpdatedAt) > time.Minute {
		t.Errorf("cache not rewritten after revalidation, UpdatedAt = %v", snap.UpdatedAt)
	}
}

func TestManagerPrepare_CacheDisabledIgnoresFile(t *testing.T) {
	cacheFile := filepath.Join(t.TempDir(), "cache.json")
	before := writeCacheFile(t, cacheFile, time.Now(), healthyRecord("10.0.0.1", 1080))

	// useCache=false 时既不读也不写缓存；没配源 → 空池
	m := NewManager(poolConfig(cacheFile), nil, false)
	if err := m.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	if got := m.Available(); got != 0 {
		t.Errorf("Available() = %d, registry must not be filled from a disabled cache", got)
	}
	after, err := os.ReadFile(cacheFile)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("cache file was touched although caching is off")
	}
}
