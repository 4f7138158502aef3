package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/ini.v1"

	"subcollect/internal/shared/types"
	"subcollect/proxypool/model"
)

// Default 返回内置的默认行为配置。ini 文件只覆盖其中出现的键。
func Default() *types.Config {
	return &types.Config{
		LogConf: types.LogConf{Level: "info"},
		FetchConf: types.FetchConf{
			TimeoutSeconds: 30,
			Retries:        3,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
			VerifySSL:      false,
			GithubProxy:    "https://ghproxy.net",
		},
		PoolConf: types.PoolConf{
			TestURL:             "http://httpbin.org/ip",
			MaxAvailable:        15,
			CheckTimeoutSeconds: 5,
			CheckWorkers:        20,
			RaceWorkers:         10,
			CacheEnabled:        true,
			CacheFile:           "dist/proxy_cache.json",
			CacheTTLSeconds:     3600,
			MinHealthScore:      30.0,
			MinHealthyCount:     10,
			SampleSize:          200,
		},
		CollectConf: types.CollectConf{
			Workers:                4,
			DownloadTimeoutSeconds: 30,
			OutputDir:              "dist",
			ManifestFile:           "dist/manifest.json",
			ReadmeFile:             "README.md",
			PublishBase:            "",
		},
	}
}

// LoadIni 加载 collector.ini 行为配置文件，文件不存在时保留默认值。
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	overrideFromEnvString(&cfg.FetchConf.GithubProxy, "GITHUB_PROXY")
	overrideFromEnvString(&cfg.LogConf.Level, "LOG_LEVEL")
	return nil
}

// LoadSources 加载 sources.json 代理源数据文件。
// 文件不存在时返回内置的默认源列表，而不是错误。
func LoadSources(fileName string) ([]model.SourceSpec, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return model.DefaultSources(), nil
		}
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var sources []model.SourceSpec
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources.json: %w", err)
	}
	for i := range sources {
		if sources[i].Weight <= 0 {
			sources[i].Weight = 1.0
		}
		if sources[i].Scheme == "" {
			sources[i].Scheme = model.SchemeSOCKS5
		}
	}
	return sources, nil
}

// SaveSources 将代理源列表保存到 sources.json。
func SaveSources(fileName string, sources []model.SourceSpec) error {
	data, err := json.MarshalIndent(sources, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal proxy sources: %w", err)
	}
	return os.WriteFile(fileName, data, 0644)
}

func overrideFromEnvString(target *string, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		*target = envValue
	}
}
