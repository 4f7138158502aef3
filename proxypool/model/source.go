package model

// 代理源列表的两种发布形态。
const (
	FormatList  = "list"  // 纯文本，一行一个 host:port
	FormatTable = "table" // HTML 表格页面
)

// SourceSpec 定义一个远程代理源。weight 按比例放大该源的采样数量，
// 让可信度更高的源贡献更多候选。
type SourceSpec struct {
	URL    string  `json:"url"`
	Weight float64 `json:"weight"`
	Scheme string  `json:"proxy_type"`
	Format string  `json:"format,omitempty"`
}

// DefaultSources 返回内置的默认代理源列表。
// sources.json 不存在时使用；存在时完全以文件内容为准。
func DefaultSources() []SourceSpec {
	return []SourceSpec{
		{URL: "https://raw.githubusercontent.com/hookzof/socks5_list/refs/heads/master/proxy.txt", Weight: 2.0, Scheme: SchemeSOCKS5},
		{URL: "https://raw.githubusercontent.com/proxifly/free-proxy-list/refs/heads/main/proxies/protocols/socks5/data.txt", Weight: 1.5, Scheme: SchemeSOCKS5},
		{URL: "https://raw.githubusercontent.com/roosterkid/openproxylist/refs/heads/main/SOCKS5_RAW.txt", Weight: 1.0, Scheme: SchemeSOCKS5},
		{URL: "https://raw.githubusercontent.com/sunny9577/proxy-scraper/refs/heads/master/generated/socks5_proxies.txt", Weight: 1.0, Scheme: SchemeSOCKS5},
		{URL: "https://raw.githubusercontent.com/zloi-user/hideip.me/refs/heads/master/socks5.txt", Weight: 1.5, Scheme: SchemeSOCKS5},
		{URL: "https://raw.githubusercontent.com/TheSpeedX/PROXY-List/refs/heads/master/socks5.txt", Weight: 2.0, Scheme: SchemeSOCKS5},
	}
}
