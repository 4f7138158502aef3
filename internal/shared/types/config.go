package types

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// FetchConf 包含HTTP抓取层的行为配置
type FetchConf struct {
	TimeoutSeconds int    `ini:"timeout"`
	Retries        int    `ini:"retries"`
	UserAgent      string `ini:"user_agent"`
	VerifySSL      bool   `ini:"verify_ssl"` // 默认关闭：很多中转代理使用自签名证书
	GithubProxy    string `ini:"github_proxy"`
}

// PoolConf 包含代理池模块的配置
type PoolConf struct {
	TestURL             string  `ini:"test_url"`
	MaxAvailable        int     `ini:"max_available"`
	CheckTimeoutSeconds int     `ini:"check_timeout"`
	CheckWorkers        int     `ini:"check_workers"`
	RaceWorkers         int     `ini:"race_workers"`
	CacheEnabled        bool    `ini:"cache_enabled"`
	CacheFile           string  `ini:"cache_file"`
	CacheTTLSeconds     int     `ini:"cache_ttl"`
	MinHealthScore      float64 `ini:"min_health_score"`
	MinHealthyCount     int     `ini:"min_healthy"`
	SampleSize          int     `ini:"sample_size"`
}

// CollectConf 包含采集器运行的配置
type CollectConf struct {
	Workers                int    `ini:"workers"`
	DownloadTimeoutSeconds int    `ini:"download_timeout"`
	OutputDir              string `ini:"output_dir"`
	ManifestFile           string `ini:"manifest_file"`
	ReadmeFile             string `ini:"readme_file"`
	PublishBase            string `ini:"publish_base"`
}

// Config 是采集器的统一配置结构体 (只包含行为配置，代理源列表在 sources.json)
type Config struct {
	LogConf     `ini:"log"`
	FetchConf   `ini:"fetch"`
	PoolConf    `ini:"pool"`
	CollectConf `ini:"collect"`
}
