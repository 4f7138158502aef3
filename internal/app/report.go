package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"subcollect/collector"
)

const (
	statusSectionMarker  = "## 采集状态"
	dailySectionMarker   = "## 每日更新订阅"
	sectionSeparator     = "\n---\n"
	readmeUpdatedAtWidth = 16 // "2006-01-02 15:04"
)

// PrintReport 在控制台打印每个站点的采集汇总表。
func PrintReport(results []collector.Result) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("                    代理采集报告")
	fmt.Println(strings.Repeat("=", 60))

	var success, partial, failed int
	sorted := make([]collector.Result, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Site < sorted[j].Site })

	for _, r := range sorted {
		switch r.Status {
		case collector.StatusSuccess:
			success++
		case collector.StatusPartial:
			partial++
		case collector.StatusFailed:
			failed++
		}

		icon := map[string]string{
			collector.StatusSuccess: "✓",
			collector.StatusPartial: "!",
			collector.StatusFailed:  "✗",
		}[r.Status]
		if icon == "" {
			icon = "?"
		}

		fileNames := make([]string, 0, len(r.Files))
		for name := range r.Files {
			fileNames = append(fileNames, name)
		}
		sort.Strings(fileNames)

		var parts []string
		for _, name := range fileNames {
			mark := "✗"
			if r.Files[name].Success {
				mark = "✓"
			}
			parts = append(parts, fmt.Sprintf("%s %s", name, mark))
		}
		filesStr := strings.Join(parts, "  ")
		if filesStr == "" && r.Err != "" {
			filesStr = "(" + r.Err + ")"
		}

		fmt.Printf("[%s] %-12s │ %s\n", icon, r.Site, filesStr)
	}

	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("总计: %d 站点 │ 成功: %d │ 部分: %d │ 失败: %d\n", len(results), success, partial, failed)
	fmt.Println(strings.Repeat("=", 60) + "\n")
}

// UpdateReadme 重写 README 的"采集状态"表和"每日更新订阅"链接段，
// 标记之前的手写内容原样保留。publishBase 为空时不生成订阅链接段。
func UpdateReadme(manifest *collector.Manifest, readmeFile, githubProxy, publishBase, outDir string) error {
	var lines []string
	lines = append(lines, "\n"+statusSectionMarker+"\n")
	lines = append(lines, "| 站点 | 状态 | 更新时间 | 今日来源 |")
	lines = append(lines, "|------|------|----------|----------|")

	siteNames := make([]string, 0, len(manifest.Sites))
	for name := range manifest.Sites {
		siteNames = append(siteNames, name)
	}
	sort.Strings(siteNames)

	for _, name := range siteNames {
		site := manifest.Sites[name]
		icon := map[string]string{
			collector.StatusSuccess: "✅",
			collector.StatusPartial: "⚠️",
			collector.StatusFailed:  "❌",
		}[site.Status]
		if icon == "" {
			icon = "❓"
		}
		updated := "-"
		if site.UpdatedAt != "" {
			updated = site.UpdatedAt
			if len(updated) > readmeUpdatedAtWidth {
				updated = updated[:readmeUpdatedAtWidth]
			}
		}
		source := "-"
		if site.TodayPage != "" {
			source = fmt.Sprintf("[链接](%s)", site.TodayPage)
		}
		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s |", name, icon, updated, source))
	}

	lines = append(lines, fmt.Sprintf("\n**最后运行**: %s\n", manifest.LastRun))
	lines = append(lines, sectionSeparator)
	lines = append(lines, "\n"+dailySectionMarker+"\n")

	if publishBase != "" {
		for _, name := range siteNames {
			site := manifest.Sites[name]
			if site.Status == collector.StatusFailed {
				continue
			}

			suffix := ""
			if site.Status == collector.StatusPartial {
				suffix = " ⚠️"
			}
			lines = append(lines, fmt.Sprintf("### %s%s\n", name, suffix))
			lines = append(lines, "| 类型 | 订阅链接 |")
			lines = append(lines, "|:----:|----------|")

			if fileExists(filepath.Join(outDir, name, "clash.yaml")) {
				lines = append(lines, fmt.Sprintf("| Clash | %s |", publishURL(githubProxy, publishBase, name, "clash.yaml")))
			}
			if fileExists(filepath.Join(outDir, name, "v2ray.txt")) {
				lines = append(lines, fmt.Sprintf("| V2Ray | %s |", publishURL(githubProxy, publishBase, name, "v2ray.txt")))
			}
			lines = append(lines, "")
		}
	}

	lines = append(lines, sectionSeparator)

	content := strings.Join(lines, "\n")
	if data, err := os.ReadFile(readmeFile); err == nil {
		existing := string(data)
		if idx := strings.Index(existing, statusSectionMarker); idx >= 0 {
			existing = strings.TrimRight(existing[:idx], "\n ")
		} else if idx := strings.Index(existing, dailySectionMarker); idx >= 0 {
			existing = strings.TrimRight(existing[:idx], "\n ")
		}
		content = existing + "\n" + content
	}

	return os.WriteFile(readmeFile, []byte(content), 0644)
}

func publishURL(githubProxy, publishBase, site, filename string) string {
	raw := strings.TrimRight(publishBase, "/") + "/" + site + "/" + filename
	if githubProxy != "" {
		return strings.TrimRight(githubProxy, "/") + "/" + raw
	}
	return raw
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
