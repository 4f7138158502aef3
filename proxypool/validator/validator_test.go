package validator

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"subcollect/proxypool/client"
	"subcollect/proxypool/model"
)

func testClient() *client.Client {
	return client.New(client.Options{Retries: 1, Backoff: time.Millisecond})
}

// proxyFrom 把 httptest server 的地址变成一条 http 代理记录。
func proxyFrom(t *testing.T, srv *httptest.Server) *model.ProxyInfo {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())
	return &model.ProxyInfo{Host: u.Hostname(), Port: port, Scheme: model.SchemeHTTP}
}

// deadProxy 返回一条指向已关闭端口的代理记录。
func deadProxy(t *testing.T) *model.ProxyInfo {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return &model.ProxyInfo{Host: "127.0.0.1", Port: port, Scheme: model.SchemeHTTP}
}

func TestProbe_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"origin": "1.2.3.4"}`))
	}))
	defer srv.Close()

	v := New(testClient(), Options{TestURL: "http://origin.invalid/ip", Timeout: 5 * time.Second})
	ok, elapsed := v.Probe(context.Background(), proxyFrom(t, srv))
	if !ok {
		t.Fatal("Probe() = false, want success through working proxy")
	}
	if elapsed <= 0 {
		t.Errorf("Probe() elapsed = %v, want > 0", elapsed)
	}
}

func TestProbe_FailureDoesNotError(t *testing.T) {
	v := New(testClient(), Options{TestURL: "http://origin.invalid/ip", Timeout: time.Second})
	ok, elapsed := v.Probe(context.Background(), deadProxy(t))
	if ok {
		t.Fatal("Probe() = true against a dead proxy")
	}
	if elapsed != 0 {
		t.Errorf("Probe() elapsed = %v, want 0 on failure", elapsed)
	}
}

func TestValidateBatch_RecordsOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	good := proxyFrom(t, srv)
	bad := deadProxy(t)

	v := New(testClient(), Options{
		TestURL:      "http://origin.invalid/ip",
		Timeout:      5 * time.Second,
		Concurrency:  4,
		MaxAvailable: 15,
	})

	available := v.ValidateBatch(context.Background(), []*model.ProxyInfo{good, bad})
	if len(available) != 1 || available[0].Key() != good.Key() {
		t.Fatalf("ValidateBatch() = %d available, want only the working proxy", len(available))
	}
	if good.SuccessCount != 1 || good.LastSuccess.IsZero() {
		t.Errorf("working proxy not recorded: success=%d lastSuccess=%v", good.SuccessCount, good.LastSuccess)
	}
	if bad.FailCount != 1 {
		t.Errorf("dead proxy FailCount = %d, want 1", bad.FailCount)
	}
}

func TestValidateBatch_EmptyInput(t *testing.T) {
	v := New(testClient(), Options{})
	if got := v.ValidateBatch(context.Background(), nil); got != nil {
		t.Errorf("ValidateBatch(nil) = %v, want nil", got)
	}
}

func TestValidateBatch_StopsAtMaxAvailable(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(20 * time.Millisecond) // 放慢一点让提前停止有机会生效
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	// 60 条指向同一个可用代理端点的候选；凑够 3 条就该停
	candidates := make([]*model.ProxyInfo, 0, 60)
	for i := 0; i < 60; i++ {
		p := proxyFrom(t, srv)
		candidates = append(candidates, p)
	}

	v := New(testClient(), Options{
		TestURL:      "http://origin.invalid/ip",
		Timeout:      5 * time.Second,
		Concurrency:  2,
		MaxAvailable: 3,
	})

	available := v.ValidateBatch(context.Background(), candidates)

	// 已在途的探测可以跑完，所以结果可能略多于 3，但远小于 60
	if len(available) < 3 {
		t.Errorf("ValidateBatch() = %d available, want at least maxAvailable", len(available))
	}
	if got := hits.Load(); got >= 60 {
		t.Errorf("server saw %d probes, early stop should have skipped most of the batch", got)
	}
	// 并发上限 2：凑够 3 条后最多再有 2 条在途
	if len(available) > 3+2 {
		t.Errorf("ValidateBatch() = %d available, want at most maxAvailable+concurrency", len(available))
	}
}

func TestValidateBatch_CallerCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	candidates := make([]*model.ProxyInfo, 0, 20)
	for i := 0; i < 20; i++ {
		candidates = append(candidates, proxyFrom(t, srv))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	v := New(testClient(), Options{
		TestURL:     "http://origin.invalid/ip",
		Timeout:     5 * time.Second,
		Concurrency: 2,
	})

	done := make(chan struct{})
	go func() {
		v.ValidateBatch(ctx, candidates)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("ValidateBatch did not return after caller cancellation")
	}
}
