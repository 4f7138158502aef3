package proxypool

import (
	"sync"
	"testing"
	"time"

	"subcollect/proxypool/model"
)

func TestRegistry_UpsertMergesStats(t *testing.T) {
	r := NewRegistry()

	r.Upsert(&model.ProxyInfo{Host: "1.2.3.4", Port: 1080, Scheme: model.SchemeSOCKS5, SuccessCount: 2, FailCount: 1, TotalRespTime: 1.0})
	r.Upsert(&model.ProxyInfo{Host: "1.2.3.4", Port: 1080, Scheme: model.SchemeSOCKS5, SuccessCount: 3, FailCount: 2, TotalRespTime: 2.0})

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after upserting the same key twice", r.Len())
	}

	p := r.Ranked()[0]
	if p.SuccessCount != 5 || p.FailCount != 3 || p.TotalRespTime != 3.0 {
		t.Errorf("merged stats: success=%d fail=%d total=%v, want 5/3/3.0",
			p.SuccessCount, p.FailCount, p.TotalRespTime)
	}
}

func TestRegistry_UpsertReplacesIdentityFields(t *testing.T) {
	r := NewRegistry()

	r.Upsert(&model.ProxyInfo{Host: "1.2.3.4", Port: 1080, Scheme: model.SchemeSOCKS4})
	r.Upsert(&model.ProxyInfo{Host: "1.2.3.4", Port: 1080, Scheme: model.SchemeSOCKS5, SourceURL: "https://b.example/list.txt"})

	p := r.Ranked()[0]
	if p.Scheme != model.SchemeSOCKS5 {
		t.Errorf("Scheme = %q, want the incoming record's scheme", p.Scheme)
	}
	if p.SourceURL != "https://b.example/list.txt" {
		t.Errorf("SourceURL = %q, want the incoming record's source", p.SourceURL)
	}
}

func TestRegistry_RankedOrderAndTieBreak(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	// 健康的代理：成功多、延迟低、刚成功过
	r.Upsert(&model.ProxyInfo{Host: "9.9.9.9", Port: 1080, SuccessCount: 10, TotalRespTime: 5.0, LastSuccess: now})
	// 差的代理：全失败
	r.Upsert(&model.ProxyInfo{Host: "8.8.8.8", Port: 1080, FailCount: 10})
	// 同样全失败，键更小
	r.Upsert(&model.ProxyInfo{Host: "7.7.7.7", Port: 1080, FailCount: 10})

	ranked := r.Ranked()
	if len(ranked) != 3 {
		t.Fatalf("Ranked() returned %d records, want 3", len(ranked))
	}
	if ranked[0].Host != "9.9.9.9" {
		t.Errorf("ranked[0] = %s, want the healthy proxy first", ranked[0].Host)
	}
	// 同分按键升序
	if ranked[1].Host != "7.7.7.7" || ranked[2].Host != "8.8.8.8" {
		t.Errorf("tie-break order = [%s %s], want [7.7.7.7 8.8.8.8]", ranked[1].Host, ranked[2].Host)
	}
}

func TestRegistry_RecordForUnknownKeyIsNoop(t *testing.T) {
	r := NewRegistry()
	// 迟到的竞速结果可能指向已不在池里的代理，不应崩溃也不应新建记录
	r.RecordSuccess("10.0.0.1:1080", time.Second)
	r.RecordFailure("10.0.0.2:1080")
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after recording against unknown keys", r.Len())
	}
}

func TestRegistry_LateUpdatesDoNotCorruptCounts(t *testing.T) {
	r := NewRegistry()
	r.Upsert(&model.ProxyInfo{Host: "1.2.3.4", Port: 1080, Scheme: model.SchemeSOCKS5})

	// 模拟竞速收尾后涌入的并发更新
	const successes = 50
	const failures = 30
	var wg sync.WaitGroup
	for i := 0; i < successes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RecordSuccess("1.2.3.4:1080", 100*time.Millisecond)
		}()
	}
	for i := 0; i < failures; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RecordFailure("1.2.3.4:1080")
		}()
	}
	wg.Wait()

	p := r.Ranked()[0]
	if p.SuccessCount != successes {
		t.Errorf("SuccessCount = %d, want %d (no lost updates)", p.SuccessCount, successes)
	}
	if p.FailCount != failures {
		t.Errorf("FailCount = %d, want %d (no double counting)", p.FailCount, failures)
	}
}

func TestRegistry_RankedReturnsSnapshots(t *testing.T) {
	r := NewRegistry()
	r.Upsert(&model.ProxyInfo{Host: "1.2.3.4", Port: 1080})

	snap := r.Ranked()[0]
	snap.SuccessCount = 99

	if r.Ranked()[0].SuccessCount != 0 {
		t.Error("mutating a Ranked() record must not affect the registry")
	}
}

func TestRegistry_Healthy(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.Upsert(&model.ProxyInfo{Host: "9.9.9.9", Port: 1080, SuccessCount: 10, TotalRespTime: 5.0, LastSuccess: now})
	r.Upsert(&model.ProxyInfo{Host: "8.8.8.8", Port: 1080, FailCount: 10})

	healthy := r.Healthy(50)
	if len(healthy) != 1 || healthy[0].Host != "9.9.9.9" {
		t.Errorf("Healthy(50) = %d records, want only the healthy proxy", len(healthy))
	}
}
