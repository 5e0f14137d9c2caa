package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/api/server"
	"github.com/amitpo23/medici-web03012026-sub000/internal/alert"
	"github.com/amitpo23/medici-web03012026-sub000/internal/config"
	"github.com/amitpo23/medici-web03012026-sub000/internal/database"
	"github.com/amitpo23/medici-web03012026-sub000/internal/elasticsearch"
	"github.com/amitpo23/medici-web03012026-sub000/internal/logger"
	"github.com/amitpo23/medici-web03012026-sub000/internal/monitor"
	"github.com/amitpo23/medici-web03012026-sub000/internal/notify"
	"github.com/amitpo23/medici-web03012026-sub000/internal/persist"
	"github.com/amitpo23/medici-web03012026-sub000/internal/signals"
	"github.com/amitpo23/medici-web03012026-sub000/internal/websocket"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	configFile = flag.String("config", "etc/config.yaml", "Path to configuration file")
	version    = "1.0.0"
)

func main() {
	flag.Parse()

	// 加载配置
	var cfg *config.Config
	configPath := *configFile

	// 优先从配置文件加载，如果失败则从环境变量加载
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.LoadFromFile(configPath)
		if err != nil {
			fmt.Printf("Failed to load config from file: %v\n", err)
			fmt.Println("Falling back to environment variables...")
			cfg = config.Load()
			configPath = ""
		}
	} else {
		fmt.Println("Config file not found, loading from environment variables...")
		cfg = config.Load()
		configPath = ""
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志系统
	if err := logger.Init(cfg.Logger.Level, cfg.Logger.Output); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Alert Monitor",
		zap.String("version", version),
		zap.String("config_file", *configFile),
	)

	// 初始化数据库
	var db *gorm.DB
	if cfg.Database.Enabled {
		var err error
		db, err = database.Open(database.Config{
			Driver:   cfg.Database.Driver,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		logger.Info("Database initialized",
			zap.String("driver", cfg.Database.Driver),
			zap.String("database", cfg.Database.DBName),
		)
	} else {
		logger.Info("Database is disabled, database signals and SQL archive are off")
	}

	// 初始化 Elasticsearch（如果启用）
	esClient, err := elasticsearch.NewClient(cfg.Elasticsearch, logger.Named("elasticsearch"))
	if err != nil {
		logger.Fatal("Failed to initialize Elasticsearch", zap.Error(err))
	}
	if esClient != nil {
		// 创建索引模板
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := esClient.CreateIndexTemplate(ctx); err != nil {
			logger.Warn("Failed to create index template", zap.Error(err))
		}
		cancel()
	} else {
		logger.Info("Elasticsearch is disabled")
	}

	// 实时推送
	hub := websocket.NewHub(logger.Named("websocket"))
	go hub.Run()

	// 通知路由
	router := notify.NewRouter(
		time.Duration(cfg.Alert.ChannelTimeoutSeconds)*time.Second,
		cfg.Notify.RatePerMinute,
		logger.Named("notify"),
	)
	channels, err := notify.NewChannelsFromConfig(cfg.Notify, hub)
	if err != nil {
		logger.Fatal("Invalid notification channel configuration", zap.Error(err))
	}
	for _, ch := range channels {
		router.Register(ch)
	}

	// 存档
	var sinks []alert.Sink
	var sqlSink *persist.GormSink
	if db != nil {
		sqlSink = persist.NewGormSink(db)
		sinks = append(sinks, sqlSink)
	}
	if esClient != nil {
		sinks = append(sinks, esClient)
	}

	thresholds, err := alert.NewThresholds(cfg.Thresholds)
	if err != nil {
		logger.Fatal("Invalid threshold configuration", zap.Error(err))
	}

	engineLog := logger.Named("engine")
	logCooldown := time.Duration(cfg.Alert.LogSuppressMinutes) * time.Minute
	engine := alert.NewEngine(alert.EngineOptions{
		Providers:       buildProviders(cfg, db),
		Rules:           alert.NewRuleEngine(engineLog, alert.BuiltinRules(logCooldown)...),
		Store:           alert.NewStore(cfg.Alert.HistoryCapacity, alert.WithStoreLogger(logger.Named("store"))),
		Thresholds:      thresholds,
		Dispatcher:      router,
		Sinks:           sinks,
		ProviderTimeout: time.Duration(cfg.Alert.ProviderTimeoutSeconds) * time.Second,
		ResolveNotify:   cfg.Alert.ResolveNotify,
		Logger:          engineLog,
	})

	interval := time.Duration(cfg.Alert.CheckInterval) * time.Second
	scheduler := monitor.NewScheduler(engine, 2*interval, logger.Named("scheduler"))
	if cfg.Alert.Enabled {
		if err := scheduler.Start(interval); err != nil {
			logger.Fatal("Failed to start alert scheduler", zap.Error(err))
		}
		// 启动后立即执行一次检查
		go func() {
			if o := <-scheduler.TriggerNow(); o.Err != nil {
				logger.Warn("Initial alert check failed", zap.Error(o.Err))
			}
		}()
	} else {
		logger.Info("Alert scheduler is disabled, checks run only on demand")
	}

	// 启动HTTP服务器
	httpServer := server.NewServer(server.Options{
		Engine:     engine,
		Scheduler:  scheduler,
		Hub:        hub,
		ES:         esClient,
		Events:     sqlSink,
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     logger.Named("http"),
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Run(httpAddr)
	}()

	logger.Info("Alert monitor is running",
		zap.String("address", httpAddr),
		zap.Strings("channels", router.Channels()),
		zap.Duration("check_interval", interval),
	)

	// 设置信号处理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down...", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	if err := scheduler.Shutdown(ctx); err != nil {
		logger.Warn("In-flight alert cycle did not finish", zap.Error(err))
	}
	if err := router.Wait(ctx); err != nil {
		logger.Warn("Pending notifications abandoned", zap.Error(err))
	}
	hub.Stop()

	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	logger.Info("Alert monitor stopped")
}

// buildProviders 根据配置组装信号源
func buildProviders(cfg *config.Config, db *gorm.DB) []signals.Provider {
	window := time.Duration(cfg.Signals.LogWindowMinutes) * time.Minute

	var providers []signals.Provider
	if db != nil {
		providers = append(providers, signals.DBProviders(db, window)...)
	}
	if cfg.Signals.LogDir != "" {
		providers = append(providers, signals.NewLogFileProvider(cfg.Signals.LogDir, window))
	}
	if cfg.Signals.SystemEnabled {
		providers = append(providers, &signals.SystemProvider{CPUSample: time.Second})
	}
	if len(cfg.Signals.Probes) > 0 {
		targets := make([]signals.ProbeTarget, 0, len(cfg.Signals.Probes))
		for _, p := range cfg.Signals.Probes {
			targets = append(targets, signals.ProbeTarget{
				Name:                p.Name,
				Type:                p.Type,
				Address:             p.Address,
				Method:              p.Method,
				ExpectedStatusCodes: p.ExpectedStatusCodes,
			})
		}
		providers = append(providers, signals.NewProbeProvider(targets))
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	logger.Info("Signal providers configured", zap.Strings("providers", names))
	return providers
}
