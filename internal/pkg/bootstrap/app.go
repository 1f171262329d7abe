// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"checkout/internal/pkg/logger"
	"checkout/internal/pkg/nacos"
	"checkout/internal/pkg/tracing"
	"checkout/internal/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// AppCtx 是服务注册路由时可以使用的公共组件。
type AppCtx struct {
	// Ctx 在服务关停时被取消，后台 goroutine 应该监听它。
	Ctx      context.Context
	Mux      *http.ServeMux
	Config   *Config
	Infra    *Infra
	Nacos    *nacos.Client // 未配置 nacos 时为 nil
	Registry prometheus.Registerer
	// OnShutdown 注册一个关停钩子，按注册顺序的逆序执行。
	OnShutdown func(name string, fn func(ctx context.Context) error)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) error
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。调用前需要先执行 Init。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()
	logger.Init(info.ServiceName, cfg.App.LogLevel)
	log := logger.L()
	startedAt := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	var (
		closersMu sync.Mutex
		closers   []closer
	)
	onShutdown := func(name string, fn func(ctx context.Context) error) {
		closersMu.Lock()
		defer closersMu.Unlock()
		closers = append(closers, closer{name: name, fn: fn})
	}

	infra := NewInfra(cfg.Infra)
	onShutdown("infra", func(ctx context.Context) error {
		infra.Close(ctx)
		return nil
	})

	var namingClient *nacos.Client
	var ip string
	if cfg.Infra.Nacos.Addrs != "" {
		namingClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.Addrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		if ip, err = utils.GetOutboundIP(); err != nil {
			log.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
	}

	mux := http.NewServeMux()
	registerOperationalRoutes(mux, info.ServiceName, startedAt)
	if info.RegisterHandlers != nil {
		err := info.RegisterHandlers(AppCtx{
			Ctx:        ctx,
			Mux:        mux,
			Config:     cfg,
			Infra:      infra,
			Nacos:      namingClient,
			Registry:   prometheus.DefaultRegisterer,
			OnShutdown: onShutdown,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to register handlers")
		}
	}

	if namingClient != nil {
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           Middleware(info.ServiceName, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Int("port", info.Port).Msgf("%s listening", info.ServiceName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msgf("Shutting down service %s...", info.ServiceName)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if namingClient != nil {
			if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
				log.Error().Err(err).Msg("error deregistering from nacos")
			}
			namingClient.Close()
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error shutting down http server")
		}

		closersMu.Lock()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].fn(shutdownCtx); err != nil {
				log.Error().Err(err).Str("component", closers[i].name).Msg("error during shutdown")
			}
		}
		closersMu.Unlock()

		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("service stopped with error")
		os.Exit(1)
	}
	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}

func registerOperationalRoutes(mux *http.ServeMux, serviceName string, startedAt time.Time) {
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /health", HealthHandler(serviceName, startedAt))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"service": serviceName,
			"status":  "running",
		})
	})
}
