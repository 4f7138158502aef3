package collector

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"subcollect/internal/shared/logger"
)

// FileEntry 记录单个文件在上次运行中的下载情况。
type FileEntry struct {
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SiteEntry 记录单个站点在上次运行中的状态。
type SiteEntry struct {
	TodayPage string               `json:"today_page"`
	Status    string               `json:"status"`
	UpdatedAt string               `json:"updated_at"`
	Files     map[string]FileEntry `json:"files"`
	Error     string               `json:"error,omitempty"`
}

// Manifest 是跨运行的采集账本，决定哪些 URL 可以跳过重复下载。
type Manifest struct {
	LastRun string               `json:"last_run"`
	Sites   map[string]SiteEntry `json:"sites"`

	path string
}

// LoadManifest 读取 manifest 文件。缺失或损坏的文件只记一条警告，
// 返回空账本。
func LoadManifest(path string) *Manifest {
	m := &Manifest{
		Sites: make(map[string]SiteEntry),
		path:  path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			l := logger.WithComponent("Collector/Manifest")
			l.Warn().Err(err).Str("path", path).Msg("Failed to read manifest.")
		}
		return m
	}
	if err := json.Unmarshal(data, m); err != nil {
		l := logger.WithComponent("Collector/Manifest")
		l.Warn().Err(err).Str("path", path).Msg("Malformed manifest, starting fresh.")
		m.LastRun = ""
		m.Sites = make(map[string]SiteEntry)
	}
	if m.Sites == nil {
		m.Sites = make(map[string]SiteEntry)
	}
	return m
}

// ShouldDownload 判断 URL 是否需要重新下载：上次同 URL 成功过就跳过。
func (m *Manifest) ShouldDownload(site, url string) bool {
	entry, ok := m.Sites[site]
	if !ok {
		return true
	}
	for _, f := range entry.Files {
		if f.URL == url && f.Success {
			return false
		}
	}
	return true
}

// UpdateFromResult 用一次采集结果覆盖站点条目。
// updated_at 只在非失败的运行上更新。
func (m *Manifest) UpdateFromResult(r Result) {
	files := make(map[string]FileEntry, len(r.Files))
	for name, f := range r.Files {
		files[name] = FileEntry{
			URL:     f.URL,
			Success: f.Success,
			Error:   f.Err,
		}
	}

	updatedAt := ""
	if r.Status != StatusFailed {
		updatedAt = time.Now().Format("2006-01-02 15:04:05")
	}

	m.Sites[r.Site] = SiteEntry{
		TodayPage: r.TodayPage,
		Status:    r.Status,
		UpdatedAt: updatedAt,
		Files:     files,
		Error:     r.Err,
	}
}

// Save 写入 manifest，盖上 last_run 时间戳，按需创建父目录。
func (m *Manifest) Save() error {
	m.LastRun = time.Now().Format("2006-01-02 15:04:05")

	if dir := filepath.Dir(m.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0644)
}
