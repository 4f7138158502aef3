package collector

import (
	"context"
	"fmt"
	"time"
)

// JichangxSite 采集 jichangx.com：下载地址直接按日期拼出来，
// 不需要翻页面。
type JichangxSite struct {
	homePage string
	now      func() time.Time
}

func NewJichangxSite() *JichangxSite {
	return &JichangxSite{
		homePage: "https://jichangx.com",
		now:      time.Now,
	}
}

func (s *JichangxSite) Name() string { return "jichangx" }

func (s *JichangxSite) Discover(ctx context.Context, c *Client) (*Plan, error) {
	dateStr := s.now().Format("20060102")
	return &Plan{
		Tasks: []Task{
			{Filename: "v2ray.txt", URL: fmt.Sprintf("%s/nodes/v2ray-%s-01", s.homePage, dateStr)},
		},
	}, nil
}
