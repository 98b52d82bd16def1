package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/relaychat-go/application"
	"github.com/lk2023060901/relaychat-go/internal/network/event"
	"github.com/lk2023060901/relaychat-go/internal/relay"
	"github.com/lk2023060901/relaychat-go/pkg/log"
	"github.com/lk2023060901/relaychat-go/pkg/metrics"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := application.New("relay")
	flags := app.Flags()
	flags.String("host", "", "listen host")
	flags.Int("port", 0, "listen port")
	flags.String("metrics-addr", "", "address of the /metrics endpoint, empty to disable")
	flags.String("events", "", "event output format: text or json")
	flags.Int("max-line-bytes", 0, "maximum bytes of a single message line")

	if err := app.Run(args); err != nil {
		return err
	}
	for key, name := range map[string]string{
		"relay.host":           "host",
		"relay.port":           "port",
		"relay.metrics_addr":   "metrics-addr",
		"relay.events":         "events",
		"relay.max_line_bytes": "max-line-bytes",
	} {
		if err := app.Config().BindPFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}
	cfg, err := app.RelayConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	svc := relay.Default(relay.Options{
		Host:            cfg.Host,
		MaxLineSize:     cfg.MaxLineBytes,
		QueueSize:       cfg.EventQueue,
		DiscoverAddress: true,
	})
	svc.SetSink(newEventSink(cfg.Events, os.Stdout, app.Logger("events")))

	ctx, stop := app.SignalContext(context.Background())
	defer stop()

	if err := svc.Start(ctx, cfg.Port); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		srv := newMetricsServer(cfg.MetricsAddr, registry, svc)
		g.Go(func() error {
			log.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down relay")
		return svc.Stop()
	})
	return g.Wait()
}

// newMetricsServer 暴露 /metrics 与健康检查。
func newMetricsServer(addr string, registry *prometheus.Registry, svc *relay.Service) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !svc.Running() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// newEventSink 根据输出格式构造展示层的事件接收者，事件同时写入 events 日志。
func newEventSink(format string, out *os.File, logger *log.MLogger) event.RelaySink {
	var display event.RelaySink
	if format == "json" {
		display = event.NewJSONSink[event.RelayEvent](out)
	} else {
		display = newTextSink(out)
	}
	return event.Fanout[event.RelayEvent]{display, event.SinkFunc[event.RelayEvent](func(e event.RelayEvent) {
		logger.Debug("relay event",
			zap.String("type", string(e.Type)),
			zap.String("address", e.Address),
			log.FieldEndpoint(e.Endpoint),
			zap.String("message", e.Message))
	})}
}
