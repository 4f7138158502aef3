package collector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"subcollect/internal/shared/logger"
)

// 内容验证边界。小于下限多半是错误页，大于上限不是订阅文件。
const (
	minFileSize = 100
	maxFileSize = 10 * 1024 * 1024
)

// 站点运行状态。
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// FileResult 是单个文件的下载结果。
type FileResult struct {
	URL     string
	Success bool
	Err     string
}

// Result 是单个站点的采集结果。
type Result struct {
	Site      string
	TodayPage string
	Files     map[string]FileResult
	Status    string
	Err       string
}

// RunSite 执行一个站点的完整采集：发现今日页面、逐个下载任务、
// 校验内容并写盘。单个文件的失败只影响状态汇总，不中断其余任务。
// manifest 里已成功且文件仍在磁盘上的 URL 跳过下载。
func RunSite(ctx context.Context, site Site, c *Client, outDir string, man *Manifest) Result {
	l := logger.WithComponent("Collector/Runner")
	l.Info().Str("site", site.Name()).Msg("Start collector.")

	result := Result{
		Site:  site.Name(),
		Files: make(map[string]FileResult),
	}

	plan, err := site.Discover(ctx, c)
	if err != nil {
		l.Error().Err(err).Str("site", site.Name()).Msg("Site discovery failed.")
		result.Status = StatusFailed
		result.Err = err.Error()
		return result
	}
	result.TodayPage = plan.TodayPage
	l.Info().Str("site", site.Name()).Int("tasks", len(plan.Tasks)).Msg("Discovery finished.")

	for _, task := range plan.Tasks {
		result.Files[task.Filename] = downloadTask(ctx, c, site.Name(), task, outDir, man)
	}

	result.Status = statusOf(result)
	l.Info().Str("site", site.Name()).Str("status", result.Status).Msg("Collector finished.")
	return result
}

func downloadTask(ctx context.Context, c *Client, siteName string, task Task, outDir string, man *Manifest) FileResult {
	l := logger.WithComponent("Collector/Runner")
	filePath := filepath.Join(outDir, siteName, task.Filename)

	if man != nil && !man.ShouldDownload(siteName, task.URL) {
		if _, err := os.Stat(filePath); err == nil {
			l.Info().Str("site", siteName).Str("file", task.Filename).Msg("Already downloaded, skipping.")
			return FileResult{URL: task.URL, Success: true}
		}
	}

	content, err := c.Text(ctx, task.URL)
	if err != nil {
		l.Error().Err(err).Str("site", siteName).Str("url", task.URL).Msg("Download failed.")
		return FileResult{URL: task.URL, Err: err.Error()}
	}

	if task.Process != nil {
		content = task.Process(content)
	}

	if err := validateContent(content, task.Filename); err != nil {
		l.Warn().Err(err).Str("site", siteName).Str("file", task.Filename).Msg("Content validation failed.")
		return FileResult{URL: task.URL, Err: err.Error()}
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return FileResult{URL: task.URL, Err: err.Error()}
	}
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return FileResult{URL: task.URL, Err: err.Error()}
	}

	l.Info().Str("site", siteName).Str("path", filePath).Msg("Saved.")
	return FileResult{URL: task.URL, Success: true}
}

// validateContent 检查文件大小边界；yaml 文件还要能解析。
func validateContent(content, filename string) error {
	size := len(content)
	if size < minFileSize {
		return fmt.Errorf("file too small: %d bytes (min %d)", size, minFileSize)
	}
	if size > maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max %d)", size, maxFileSize)
	}

	ext := filepath.Ext(filename)
	if ext == ".yaml" || ext == ".yml" {
		var doc map[string]interface{}
		if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
			return fmt.Errorf("invalid YAML format: %w", err)
		}
	}
	return nil
}

func statusOf(r Result) string {
	if len(r.Files) == 0 {
		return StatusFailed
	}
	succeeded := 0
	for _, f := range r.Files {
		if f.Success {
			succeeded++
		}
	}
	switch {
	case succeeded == len(r.Files):
		return StatusSuccess
	case succeeded > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}
