package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"subcollect/internal/shared/logger"
	"subcollect/proxypool"
)

// Task 是一个待下载的订阅文件。Process 在写盘前对原始内容做
// 站点特定的加工（解密、截取），为 nil 时原样保存。
type Task struct {
	Filename string
	URL      string
	Process  func(string) string
}

// Plan 是站点发现阶段的产物：今日页面地址和该页面上的下载任务。
type Plan struct {
	TodayPage string
	Tasks     []Task
}

// Site 是单个站点适配器。Discover 负责定位今日页面并解析出
// 下载任务；怎么抓取由注入的 Client 决定。
type Site interface {
	Name() string
	Discover(ctx context.Context, c *Client) (*Plan, error)
}

// Client 包装抓取契约，为站点适配器补充 HTML 解析能力。
type Client struct {
	fetcher proxypool.Fetcher
	timeout time.Duration
}

// NewClient 创建站点适配器使用的客户端。
func NewClient(fetcher proxypool.Fetcher, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{fetcher: fetcher, timeout: timeout}
}

// Text 取回 URL 的原始文本。
func (c *Client) Text(ctx context.Context, url string) (string, error) {
	l := logger.WithComponent("Collector/Client")
	l.Info().Str("url", url).Msg("Fetching...")
	return c.fetcher.Fetch(ctx, url, c.timeout)
}

// Document 取回 URL 并解析为 goquery 文档。
func (c *Client) Document(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := c.Text(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", url, err)
	}
	return doc, nil
}

// AllSites 返回全部站点适配器。
func AllSites() []Site {
	return []Site{
		NewCfmemSite(),
		NewNodefreeSite(),
		NewOneclashSite(),
		NewYudouSite(),
		NewJichangxSite(),
		NewLa85Site(),
		NewDatiyaSite(),
	}
}

// SiteNames 返回全部站点名称。
func SiteNames() []string {
	sites := AllSites()
	names := make([]string, 0, len(sites))
	for _, s := range sites {
		names = append(names, s.Name())
	}
	return names
}

// LookupSites 按名称筛选站点适配器，未知名称返回错误。
func LookupSites(names []string) ([]Site, error) {
	if len(names) == 0 {
		return AllSites(), nil
	}
	byName := make(map[string]Site)
	for _, s := range AllSites() {
		byName[s.Name()] = s
	}
	sites := make([]Site, 0, len(names))
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown site %q", name)
		}
		sites = append(sites, s)
	}
	return sites, nil
}

// discoverTwoStep 实现两步发现流程：首页 -> 今日链接 -> 今日页面 ->
// 下载任务。大多数站点都是这个形状，只有选择器不同。
func discoverTwoStep(
	ctx context.Context,
	c *Client,
	name, homePage string,
	todayURL func(*goquery.Document) string,
	parseTasks func(*goquery.Document) []Task,
) (*Plan, error) {
	home, err := c.Document(ctx, homePage)
	if err != nil {
		return nil, fmt.Errorf("[%s] failed to fetch homepage: %w", name, err)
	}

	today := strings.TrimSpace(todayURL(home))
	if today == "" {
		return nil, fmt.Errorf("[%s] no today URL found on homepage %s", name, homePage)
	}
	l := logger.WithComponent("Collector/" + name)
	l.Info().Str("url", today).Msg("Today URL resolved.")

	todayDoc, err := c.Document(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("[%s] failed to fetch today page: %w", name, err)
	}

	return &Plan{
		TodayPage: today,
		Tasks:     parseTasks(todayDoc),
	}, nil
}

// linkWithText 返回文本包含 marker 的第 n 个 <a> 的 href（n 从 0 起）。
func linkWithText(doc *goquery.Document, marker string, n int) string {
	var hrefs []string
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		if strings.Contains(s.Text(), marker) {
			if href, ok := s.Attr("href"); ok {
				hrefs = append(hrefs, href)
			}
		}
	})
	if n < len(hrefs) {
		return hrefs[n]
	}
	return ""
}

// textAfter 返回文本包含 marker 的第一个 selector 元素的下一个
// sibling 元素的文本。站点惯用"标题元素 + 紧跟的内容元素"的排版。
func textAfter(doc *goquery.Document, selector, marker, siblingSelector string) string {
	var out string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(s.Text(), marker) {
			return true
		}
		sibling := s.NextAllFiltered(siblingSelector).First()
		out = strings.TrimSpace(sibling.Text())
		return false
	})
	return out
}

// hrefAfter 返回文本包含 marker 的第一个 selector 元素之后第一个
// <a> 的 href。用于"标题 + 紧跟的订阅链接"的排版。
func hrefAfter(doc *goquery.Document, selector, marker string) string {
	var out string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(s.Text(), marker) {
			return true
		}
		out, _ = s.NextAllFiltered("a").First().Attr("href")
		return false
	})
	return out
}
