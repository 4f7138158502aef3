package collector

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// cfmemClashExtractor 从今日页面内嵌的 JSON 字符串里截出 clash
// 配置正文（mixed-port 到 rule-providers 段），并还原反斜杠转义。
var cfmemClashExtractor = newRegexExtractor(`(?s)"(mixed-port.*rule-providers.*?)"`, true)

// CfmemSite 采集 cfmem.com：首页第二条"免费节点更新"链接是今日页面，
// 订阅地址在 "V2Ray / XRay" 和 "Clash/Mihomo" 标题块的下一个 div 里。
type CfmemSite struct {
	homePage string
}

func NewCfmemSite() *CfmemSite {
	return &CfmemSite{homePage: "https://www.cfmem.com"}
}

func (s *CfmemSite) Name() string { return "cfmem" }

func (s *CfmemSite) Discover(ctx context.Context, c *Client) (*Plan, error) {
	return discoverTwoStep(ctx, c, s.Name(), s.homePage,
		func(home *goquery.Document) string {
			return linkWithText(home, "免费节点更新", 1)
		},
		func(today *goquery.Document) []Task {
			var tasks []Task
			if url := textAfter(today, "div", "V2Ray / XRay", "div"); url != "" {
				tasks = append(tasks, Task{Filename: "v2ray.txt", URL: url})
			}
			if url := textAfter(today, "div", "Clash/Mihomo", "div"); url != "" {
				tasks = append(tasks, Task{Filename: "clash.yaml", URL: url, Process: cfmemClashExtractor})
			}
			return tasks
		})
}
