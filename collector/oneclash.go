package collector

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// OneclashSite 采集 oneclash.cc：今日页面链接的文本是
// "免费节点高速订阅链接"，订阅地址在标题 p 后面的下一个 p 里。
type OneclashSite struct {
	homePage string
}

func NewOneclashSite() *OneclashSite {
	return &OneclashSite{homePage: "https://oneclash.cc"}
}

func (s *OneclashSite) Name() string { return "oneclash" }

func (s *OneclashSite) Discover(ctx context.Context, c *Client) (*Plan, error) {
	return discoverTwoStep(ctx, c, s.Name(), s.homePage,
		func(home *goquery.Document) string {
			return linkWithText(home, "免费节点高速订阅链接", 0)
		},
		func(today *goquery.Document) []Task {
			var tasks []Task
			if url := textAfter(today, "p", "v2ray订阅链接", "p"); url != "" {
				tasks = append(tasks, Task{Filename: "v2ray.txt", URL: url})
			}
			if url := textAfter(today, "p", "Clash订阅链接", "p"); url != "" {
				tasks = append(tasks, Task{Filename: "clash.yaml", URL: url})
			}
			return tasks
		})
}
