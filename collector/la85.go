package collector

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// La85Site 采集 85la.com：今日页面链接的文本需同时包含"免费节点"和
// "高速节点"，订阅地址是 h3 标题后第一个 <a> 的 href。
type La85Site struct {
	homePage string
}

func NewLa85Site() *La85Site {
	return &La85Site{homePage: "https://www.85la.com"}
}

func (s *La85Site) Name() string { return "85la" }

func (s *La85Site) Discover(ctx context.Context, c *Client) (*Plan, error) {
	return discoverTwoStep(ctx, c, s.Name(), s.homePage,
		func(home *goquery.Document) string {
			var href string
			home.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				text := sel.Text()
				if strings.Contains(text, "免费节点") && strings.Contains(text, "高速节点") {
					href, _ = sel.Attr("href")
					return false
				}
				return true
			})
			return href
		},
		func(today *goquery.Document) []Task {
			var tasks []Task
			if url := hrefAfter(today, "h3", "V2ray 订阅地址"); url != "" {
				tasks = append(tasks, Task{Filename: "v2ray.txt", URL: url})
			}
			if url := hrefAfter(today, "h3", "Clash.meta 订阅地址"); url != "" {
				tasks = append(tasks, Task{Filename: "clash.yaml", URL: url})
			}
			return tasks
		})
}
