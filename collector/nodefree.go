package collector

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// NodefreeSite 采集 nodefree.me：今日页面链接的文本是
// "订阅链接免费节点"，订阅地址在 h2 标题后的第一个 p 里。
type NodefreeSite struct {
	homePage string
}

func NewNodefreeSite() *NodefreeSite {
	return &NodefreeSite{homePage: "https://nodefree.me"}
}

func (s *NodefreeSite) Name() string { return "nodefree" }

func (s *NodefreeSite) Discover(ctx context.Context, c *Client) (*Plan, error) {
	return discoverTwoStep(ctx, c, s.Name(), s.homePage,
		func(home *goquery.Document) string {
			return linkWithText(home, "订阅链接免费节点", 0)
		},
		func(today *goquery.Document) []Task {
			var tasks []Task
			if url := textAfter(today, "h2", "v2ray订阅链接", "p"); url != "" {
				tasks = append(tasks, Task{Filename: "v2ray.txt", URL: url})
			}
			if url := textAfter(today, "h2", "clash订阅链接", "p"); url != "" {
				tasks = append(tasks, Task{Filename: "clash.yaml", URL: url})
			}
			return tasks
		})
}
