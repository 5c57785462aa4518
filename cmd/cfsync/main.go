package main

import (
	"cfsync/audit"
	"cfsync/cfsync"
	"cfsync/common"
	"cfsync/config"
	"cfsync/ddns"
	"cfsync/log"
	"cfsync/viewer"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	configPath = flag.StringP("config", "c", "", "path to config file (toml, yaml or json)")
	envFile    = flag.String("env-file", ".env", "path to dotenv file, ignored if missing")
	debug      = flag.Bool("debug", false, "enable debug output")
	help       = flag.BoolP("help", "h", false, "Print help message")
)

var buildDate string

const httpTimeout = 30 * time.Second

var conf config.Config

func init() {
	flag.Parse()
	if *help {
		fmt.Println(flag.CommandLine.FlagUsages())
		os.Exit(0)
	}
}

func getInitLogger() context.Context {
	var err error
	var logger *zap.Logger

	if *debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}

	if err != nil {
		fmt.Printf("Failed creating logger: %v\n", err)
		os.Exit(1)
	}

	return log.WithLogger(context.Background(), logger)
}

func getLogger(ctx context.Context) context.Context {
	var logOption zap.Config
	if *debug {
		logOption = zap.NewDevelopmentConfig()
	} else {
		logOption = zap.NewProductionConfig()
	}

	if conf.Log.Level != nil {
		logOption.Level.SetLevel(*conf.Log.Level)
	}

	if conf.Log.Encoding != nil {
		logOption.Encoding = *conf.Log.Encoding
	}

	if conf.Log.InfoPath != nil {
		logOption.OutputPaths = *conf.Log.InfoPath
	}

	if conf.Log.ErrorPath != nil {
		logOption.ErrorOutputPaths = *conf.Log.ErrorPath
	}

	if conf.Service.Name != "" {
		logOption.InitialFields = map[string]interface{}{
			"node": conf.Service.Name,
		}
	}

	logger, err := logOption.Build()
	if err != nil {
		log.S(ctx).Fatalw("cannot build real logger", zap.Error(err))
	}

	return log.WithLogger(context.Background(), logger)
}

func main() {
	ctx := getInitLogger()

	if buildDate != "" {
		log.S(ctx).Infow("cfsync starting", "variant", "release", "build_date", buildDate)
	} else {
		log.S(ctx).Infow("cfsync starting", "variant", "debug")
	}

	var err error
	conf, err = config.Load(ctx, *configPath, *envFile)
	if err != nil {
		log.S(ctx).Fatalw("failed loading config", zap.Error(err))
	}

	if err = config.Validate(conf); err != nil {
		log.S(ctx).Fatalw("invalid config", zap.Error(err))
	}

	ctx = getLogger(ctx)
	defer log.L(ctx).Sync()

	ctx = context.WithValue(ctx, common.HttpClientKey, &http.Client{Timeout: httpTimeout})

	if len(conf.Records) == 0 {
		log.S(ctx).Warnw("no records configured, updates will be skipped")
	}

	store, err := audit.Open(ctx, conf.Store.Path)
	if err != nil {
		log.S(ctx).Fatalw("cannot open audit store", zap.Error(err))
	}
	defer store.Close()

	resolver, err := cfsync.NewResolver(ctx, conf.Sources)
	if err != nil {
		log.S(ctx).Fatalw("cannot init resolver", zap.Error(err))
	}

	provider, err := ddns.New(ctx, conf.Provider)
	if err != nil {
		log.S(ctx).Fatalw("cannot init provider", zap.Error(err))
	}

	syncer := cfsync.NewSyncer(provider, store, cfsync.RealClock{})
	syncer.Inspect(ctx, conf.Records)

	scheduler := cfsync.NewScheduler(resolver, syncer, conf.Records, time.Duration(conf.Service.RefreshRate), cfsync.RealClock{})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := viewer.New(store).Serve(ctx, conf.Viewer.Listen)
		if err != nil && err != http.ErrServerClosed {
			log.S(ctx).Errorw("log viewer failed", zap.Error(err))
		}
	}()

	go func() {
		defer wg.Done()
		defer stop()
		if err := scheduler.Run(ctx); err != nil {
			log.S(ctx).Errorw("scheduler failed", zap.Error(err))
		}
	}()

	wg.Wait()
	log.S(ctx).Infow("cfsync stopped")
}
