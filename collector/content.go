package collector

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"subcollect/internal/shared/logger"
)

// newRegexExtractor 构造一个内容加工函数：按正则截取第一处匹配，
// 可选还原反斜杠转义。不匹配时返回原内容。
func newRegexExtractor(pattern string, unescape bool) func(string) string {
	re := regexp.MustCompile(pattern)
	return func(content string) string {
		m := re.FindStringSubmatch(content)
		if m == nil {
			l := logger.WithComponent("Collector/Extractor")
			l.Warn().Str("pattern", pattern).Msg("Regex pattern not matched.")
			return content
		}
		result := m[0]
		if len(m) > 1 {
			result = m[1]
		}
		if unescape {
			result = unescapeBackslashes(result)
		}
		return result
	}
}

// unescapeBackslashes 还原内嵌 JSON 字符串里常见的转义。
func unescapeBackslashes(content string) string {
	content = strings.ReplaceAll(content, `\n`, "\n")
	content = strings.ReplaceAll(content, `\"`, `"`)
	content = strings.ReplaceAll(content, `\\`, `\`)
	return content
}

// InjectClashTimestamp 在 clash.yaml 的 proxies 前面插入三个信息节点
// （更新时间、站点、采集地址），并在 proxy-groups 前面插入一个
// "订阅信息" 分组，让订阅时间在客户端里一眼可见。
func InjectClashTimestamp(content string, r Result, timestamp string) (string, error) {
	names := []string{
		"更新时间 " + timestamp,
		"站点 " + r.Site,
		"采集地址 " + r.TodayPage,
	}

	var data map[string]interface{}
	if err := yaml.Unmarshal([]byte(content), &data); err != nil {
		return "", err
	}

	if proxies, ok := data["proxies"].([]interface{}); ok {
		for _, name := range names {
			node := map[string]interface{}{
				"name":             name,
				"type":             "vless",
				"server":           "127.0.0.1",
				"port":             0,
				"uuid":             "00000000-0000-0000-0000-000000000000",
				"network":          "ws",
				"skip-cert-verify": true,
				"tls":              false,
			}
			proxies = append([]interface{}{node}, proxies...)
		}
		data["proxies"] = proxies
	}

	if groups, ok := data["proxy-groups"].([]interface{}); ok {
		group := map[string]interface{}{
			"name":    "订阅信息",
			"proxies": names,
			"type":    "select",
		}
		data["proxy-groups"] = append([]interface{}{group}, groups...)
	}

	out, err := yaml.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ProcessDownloadedFile 对已落盘的 clash.yaml 做时间戳注入。
// 文件不存在或不是 yaml 时什么都不做。
func ProcessDownloadedFile(path string, r Result, timestamp string) {
	ext := filepath.Ext(path)
	if ext != ".yaml" && ext != ".yml" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	l := logger.WithComponent("Collector/Content")
	processed, err := InjectClashTimestamp(string(data), r, timestamp)
	if err != nil {
		l.Warn().Err(err).Str("path", path).Msg("Timestamp injection failed, keeping original file.")
		return
	}
	if err := os.WriteFile(path, []byte(processed), 0644); err != nil {
		l.Error().Err(err).Str("path", path).Msg("Failed to rewrite file.")
		return
	}
	l.Info().Str("site", r.Site).Str("path", path).Msg("Injected timestamp.")
}
