package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"subcollect/collector"
	"subcollect/internal/app"
	"subcollect/internal/shared/config"
	"subcollect/internal/shared/logger"
)

var version = "dev"

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	siteFlag := flag.String("site", "", "Comma separated list of sites to collect (default: all)")
	listFlag := flag.Bool("list", false, "List all supported sites and exit")
	workers := flag.Int("workers", 0, "Number of concurrent collectors (default from config)")
	useProxy := flag.Bool("proxy", true, "Fetch through the proxy pool (use -proxy=false to go direct)")
	noProxyCache := flag.Bool("no-proxy-cache", false, "Disable the proxy cache and force a fresh validation pass")
	outDir := flag.String("out", "", "Output directory (default from config)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("subcollect", version)
		return
	}

	if *listFlag {
		fmt.Println("Supported sites:")
		for _, name := range collector.SiteNames() {
			fmt.Printf("  - %s\n", name)
		}
		return
	}

	iniPath := filepath.Join(*configDir, "collector.ini")
	sourcesPath := filepath.Join(*configDir, "sources.json")

	// 1. 加载 .ini 行为配置
	cfg := config.Default()
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	// 1.1 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// 2. 加载 sources.json 数据配置
	sources, err := config.LoadSources(sourcesPath)
	if err != nil {
		logger.Fatal().Err(err).Msgf("Failed to load sources file '%s'", sourcesPath)
	}

	var sites []string
	if *siteFlag != "" {
		for _, name := range strings.Split(*siteFlag, ",") {
			if name = strings.TrimSpace(name); name != "" {
				sites = append(sites, name)
			}
		}
	}

	// 3. 执行采集
	a := app.New(cfg, sources)
	err = a.Run(context.Background(), app.Options{
		Sites:    sites,
		Workers:  *workers,
		UseProxy: *useProxy,
		UseCache: !*noProxyCache,
		OutDir:   *outDir,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Collection run failed.")
		os.Exit(1)
	}
}
