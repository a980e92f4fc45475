package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/detcache/detcache/internal/cache"
	"github.com/detcache/detcache/internal/config"
	"github.com/detcache/detcache/internal/logging"
	"github.com/detcache/detcache/internal/registry"
	"github.com/detcache/detcache/internal/server"
	"github.com/detcache/detcache/internal/server/routes"
	"github.com/detcache/detcache/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	jsonOutput  bool
	verbosity   int
	command     string
	key         string
}

var (
	stdIn  io.Reader = os.Stdin
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		fmt.Fprintln(stdErr, usage)
		os.Exit(exitConfigError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, opts)
	stop()
	os.Exit(code)
}

const usage = `usage: detcache [--config PATH] [-v] [-q] [--json] <command>

commands:
  get KEY    print the value stored under KEY (exit 1 when absent)
  put KEY    store stdin under KEY (exit 1 when no cache accepted it)
  serve      expose GET/PUT /kv/:hash over HTTP

KEY must be a lowercase hex SHA-256 string.`

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(ctx context.Context, opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return exitSuccess
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return exitConfigError
	}

	logger, err := logging.InitLogger(cfg.Global, opts.verbosity)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return exitConfigError
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["caches"] = cfg.CacheSummary()
		fields["primary"] = cfg.Global.Primary
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return exitSuccess
	}

	// get/put 在打开后端前先校验 key，避免无效输入触发任何 I/O。
	if opts.command == "get" || opts.command == "put" {
		if err := cache.ValidateHash(opts.key); err != nil {
			fmt.Fprintf(stdErr, "无效的 key %q: 需要 64 位小写十六进制 SHA-256\n", opts.key)
			return exitInvalidKey
		}
	}

	c, err := registry.Build(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "构建缓存后端失败: %v\n", err)
		return exitConfigError
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["caches"] = cfg.CacheSummary()
	fields["put_policy"] = cfg.Global.PutPolicy
	fields["primary"] = cfg.Global.Primary
	fields["version"] = version.Full()
	logger.WithFields(fields).Debug("配置加载完成")

	switch opts.command {
	case "get":
		return handleGet(ctx, c, logger, opts)
	case "put":
		return handlePut(ctx, c, logger, opts)
	case "serve":
		if err := startHTTPServer(ctx, cfg, c, logger); err != nil {
			fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
			return exitCacheError
		}
		return exitSuccess
	default:
		fmt.Fprintf(stdErr, "未知命令: %s\n", opts.command)
		return exitConfigError
	}
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("detcache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		jsonOut    bool
		verbose    countFlag
		quiet      countFlag
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（可被 DETCACHE_CONFIG 提供）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.BoolVar(&jsonOut, "json", false, "以 JSON 输出结果")
	fs.Var(&verbose, "v", "提高日志级别（可重复）")
	fs.Var(&verbose, "verbose", "提高日志级别（可重复）")
	fs.Var(&quiet, "q", "降低日志级别（可重复）")
	fs.Var(&quiet, "quiet", "降低日志级别（可重复）")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("DETCACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	opts := cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		jsonOutput:  jsonOut,
		verbosity:   int(verbose) - int(quiet),
	}
	if showVer || checkOnly {
		return opts, nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return cliOptions{}, errors.New("缺少子命令")
	}
	opts.command = rest[0]
	switch opts.command {
	case "get", "put":
		if len(rest) != 2 {
			return cliOptions{}, fmt.Errorf("%s 需要且仅需要一个 KEY 参数", opts.command)
		}
		opts.key = rest[1]
	case "serve":
		if len(rest) != 1 {
			return cliOptions{}, errors.New("serve 不接受额外参数")
		}
	default:
		return cliOptions{}, fmt.Errorf("未知命令: %s", opts.command)
	}
	return opts, nil
}

// countFlag 记录布尔标志出现的次数，用于 -v/-q。
type countFlag int

func (c *countFlag) String() string {
	if c == nil {
		return "0"
	}
	return strconv.Itoa(int(*c))
}

func (c *countFlag) Set(value string) error {
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return err
	}
	if enabled {
		*c++
	}
	return nil
}

func (c *countFlag) IsBoolFlag() bool {
	return true
}

func startHTTPServer(ctx context.Context, cfg *config.Config, c cache.Cache, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Cache:      c,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterBackendRoutes(app, c)

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
