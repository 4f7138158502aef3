package collector

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DatiyaSite 采集 free.datiya.com：首页链接是相对路径，要拼上域名；
// 订阅地址直接写在 ol 标题块后第一个 <pre> 的文本里。
type DatiyaSite struct {
	homePage string
}

func NewDatiyaSite() *DatiyaSite {
	return &DatiyaSite{homePage: "https://free.datiya.com"}
}

func (s *DatiyaSite) Name() string { return "datiya" }

func (s *DatiyaSite) Discover(ctx context.Context, c *Client) (*Plan, error) {
	return discoverTwoStep(ctx, c, s.Name(), s.homePage,
		func(home *goquery.Document) string {
			href := linkWithText(home, "高速免费节点", 0)
			if href == "" || strings.HasPrefix(href, "http") {
				return href
			}
			return s.homePage + href
		},
		func(today *goquery.Document) []Task {
			var tasks []Task
			if url := textAfter(today, "ol", "V2ray配置", "pre"); url != "" {
				tasks = append(tasks, Task{Filename: "v2ray.txt", URL: url})
			}
			if url := textAfter(today, "ol", "Clash配置", "pre"); url != "" {
				tasks = append(tasks, Task{Filename: "clash.yaml", URL: url})
			}
			return tasks
		})
}
