package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/any-hub/artifact-hub/internal/config"
	"github.com/any-hub/artifact-hub/internal/logging"
	"github.com/any-hub/artifact-hub/internal/proxy"
	"github.com/any-hub/artifact-hub/internal/server"
	"github.com/any-hub/artifact-hub/internal/server/routes"
	"github.com/any-hub/artifact-hub/internal/version"
)

// configEnv 在未显式传入 --config 时提供配置路径。
const configEnv = "ARTIFACT_HUB_CONFIG"

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	watch       bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := configSummary("check_config", opts.configPath, cfg)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序为“配置 → 代理组注册表 → 解析引擎 → Fiber server”，
	// 注册表在监听前构建一次，配置问题在启动阶段即可暴露。
	registry := proxy.NewGroupRegistry(proxy.StaticSource(cfg), logger)
	if _, err := registry.Snapshot(); err != nil {
		fmt.Fprintf(stdErr, "构建代理组失败: %v\n", err)
		return 1
	}
	engine := proxy.NewEngine(registry, logger)

	fields := configSummary("startup", opts.configPath, cfg)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if opts.watch {
		if err := watchConfig(opts.configPath, registry, logger); err != nil {
			fmt.Fprintf(stdErr, "监听配置失败: %v\n", err)
			return 1
		}
	}

	if err := startHTTPServer(cfg, engine, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := pflag.NewFlagSet("artifact-hub", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts cliOptions
	var configFlag string
	fs.StringVarP(&configFlag, "config", "c", "", "配置文件路径（默认 ./config.toml，可被 "+configEnv+" 覆盖）")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	fs.BoolVar(&opts.watch, "watch", false, "监听配置文件变化并重建代理组")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fs.SetOutput(stdOut)
			fs.PrintDefaults()
			return cliOptions{}, err
		}
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	opts.configPath = os.Getenv(configEnv)
	if configFlag != "" {
		opts.configPath = configFlag
	}
	if opts.configPath == "" {
		opts.configPath = config.DefaultPath
	}
	return opts, nil
}

func configSummary(action, configPath string, cfg *config.Config) logrus.Fields {
	fields := logging.BaseFields(action, configPath)
	fields["repositories"] = len(cfg.Repositories)
	fields["proxied_repositories"] = len(cfg.Proxies)
	fields["credentials"] = config.CredentialModes(cfg.Proxies)
	fields["network_proxy"] = cfg.NetworkProxy.Enabled()
	return fields
}

// watchConfig 在配置文件变化时重建代理组；重建失败时保留旧快照。
func watchConfig(path string, registry *proxy.GroupRegistry, logger *logrus.Logger) error {
	return config.Watch(path,
		func(cfg *config.Config) {
			if err := registry.Update(cfg); err != nil {
				return
			}
			if err := logging.ApplyLevel(logger, cfg.Global.LogLevel); err != nil {
				logger.WithFields(logging.BaseFields("config_reload", path)).WithError(err).Warn("日志级别未更新")
			}
			logger.WithFields(configSummary("config_reload", path, cfg)).Info("配置已重新加载")
		},
		func(err error) {
			logger.WithFields(logging.BaseFields("config_reload", path)).WithError(err).Error("配置重新加载失败")
		},
	)
}

// newHTTPApp 组装仓库路由与诊断接口，不负责监听。
func newHTTPApp(cfg *config.Config, engine *proxy.Engine, logger *logrus.Logger) (*fiber.App, error) {
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Proxy:      proxy.NewHandler(engine, logger),
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterDiagnostics(app, engine)
	return app, nil
}

func startHTTPServer(cfg *config.Config, engine *proxy.Engine, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := newHTTPApp(cfg, engine, logger)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
