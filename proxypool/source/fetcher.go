package source

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"subcollect/internal/shared/logger"
	"subcollect/proxypool/client"
	"subcollect/proxypool/model"
)

// Fetcher 从配置的远程源拉取原始代理列表，按权重采样后去重。
// 单个源失败只记日志，不影响其余源。
type Fetcher struct {
	client      *client.Client
	sources     []model.SourceSpec
	sampleSize  int
	githubProxy string
	timeout     time.Duration
	rand        *rand.Rand
}

// Options 定义源抓取行为。
type Options struct {
	Sources     []model.SourceSpec
	SampleSize  int           // 权重 1.0 的源的采样基数
	GithubProxy string        // github 前置代理，空则直连
	Timeout     time.Duration // 单个源的抓取超时
	Seed        int64         // 采样随机种子，0 表示按时间
}

// NewFetcher 创建一个源抓取器。
func NewFetcher(c *client.Client, opts Options) *Fetcher {
	if opts.SampleSize <= 0 {
		opts.SampleSize = 200
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Fetcher{
		client:      c,
		sources:     opts.Sources,
		sampleSize:  opts.SampleSize,
		githubProxy: opts.GithubProxy,
		timeout:     opts.Timeout,
		rand:        rand.New(rand.NewSource(seed)),
	}
}

// FetchCandidates 依次处理每个源：抓取、解析、按权重采样，
// 最后跨源按 host:port 去重。空结果是合法的退化情况。
func (f *Fetcher) FetchCandidates(ctx context.Context) []*model.ProxyInfo {
	l := logger.WithComponent("ProxyPool/Source")

	var all []*model.ProxyInfo
	for _, src := range f.sources {
		proxies, err := f.fetchOne(ctx, src)
		if err != nil {
			l.Warn().Err(err).Str("source", src.URL).Msg("Source failed, skipping.")
			continue
		}
		l.Info().Int("count", len(proxies)).Str("source", src.URL).Msg("Fetched proxy list.")

		all = append(all, f.sample(proxies, src.Weight)...)
	}

	// 去重，同键保留先采样到的那个
	seen := make(map[string]struct{}, len(all))
	unique := make([]*model.ProxyInfo, 0, len(all))
	for _, p := range all {
		if _, ok := seen[p.Key()]; ok {
			continue
		}
		seen[p.Key()] = struct{}{}
		unique = append(unique, p)
	}

	l.Info().Int("candidates", len(unique)).Msg("Candidate sampling finished.")
	return unique
}

func (f *Fetcher) fetchOne(ctx context.Context, src model.SourceSpec) ([]*model.ProxyInfo, error) {
	if src.Format == model.FormatTable {
		return f.scrapeTable(src)
	}

	content, err := f.client.Get(ctx, f.rewriteURL(src.URL), "", f.timeout)
	if err != nil {
		return nil, err
	}

	var proxies []*model.ProxyInfo
	for _, line := range strings.Split(content, "\n") {
		p := parseProxyLine(line, src)
		if p != nil {
			proxies = append(proxies, p)
		}
	}
	return proxies, nil
}

// scrapeTable 抓取 HTML 表格形态的代理源，第一列 IP、第二列端口。
func (f *Fetcher) scrapeTable(src model.SourceSpec) ([]*model.ProxyInfo, error) {
	l := logger.WithComponent("ProxyPool/Source")

	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64)"),
	)
	c.SetRequestTimeout(f.timeout)

	var proxies []*model.ProxyInfo
	var scrapeErr error

	c.OnHTML("table tbody tr", func(e *colly.HTMLElement) {
		host := strings.TrimSpace(e.ChildText("td:nth-child(1)"))
		portStr := strings.TrimSpace(e.ChildText("td:nth-child(2)"))
		if host == "" || portStr == "" {
			return
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			l.Warn().Str("host", host).Str("port", portStr).Msg("Failed to parse port, skipping.")
			return
		}
		proxies = append(proxies, &model.ProxyInfo{
			Host:      host,
			Port:      port,
			Scheme:    src.Scheme,
			SourceURL: src.URL,
		})
	})
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("scrape failed for %s: %w", src.URL, err)
	})

	if err := c.Visit(src.URL); err != nil {
		return nil, err
	}
	c.Wait()

	if scrapeErr != nil {
		return nil, scrapeErr
	}
	return proxies, nil
}

// sample 均匀无放回采样 min(sampleSize*weight, len) 条。
func (f *Fetcher) sample(proxies []*model.ProxyInfo, weight float64) []*model.ProxyInfo {
	if weight <= 0 {
		weight = 1.0
	}
	n := int(float64(f.sampleSize) * weight)
	if n > len(proxies) {
		n = len(proxies)
	}
	f.rand.Shuffle(len(proxies), func(i, j int) {
		proxies[i], proxies[j] = proxies[j], proxies[i]
	})
	return proxies[:n]
}

// rewriteURL 为 github 上的源列表套上前置代理。
func (f *Fetcher) rewriteURL(rawURL string) string {
	if f.githubProxy == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	switch u.Host {
	case "raw.githubusercontent.com", "github.com", "gist.githubusercontent.com":
		return strings.TrimRight(f.githubProxy, "/") + "/" + rawURL
	}
	return rawURL
}

// parseProxyLine 解析 "host:port" 形式的一行。空行和坏端口返回 nil。
func parseProxyLine(line string, src model.SourceSpec) *model.ProxyInfo {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	idx := strings.LastIndex(line, ":")
	if idx <= 0 {
		return nil
	}
	host := line[:idx]
	port, err := strconv.Atoi(line[idx+1:])
	if err != nil || port < 1 || port > 65535 {
		return nil
	}
	scheme := src.Scheme
	if scheme == "" {
		scheme = model.SchemeSOCKS5
	}
	return &model.ProxyInfo{
		Host:      host,
		Port:      port,
		Scheme:    scheme,
		SourceURL: src.URL,
	}
}
