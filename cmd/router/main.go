package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kuanb/gosm-transport/osm"
	"kuanb/gosm-transport/streaming"
	"kuanb/gosm-transport/transport"
)

// RuntimeMetrics holds memory and goroutine statistics
type RuntimeMetrics struct {
	Goroutines  int
	AllocMB     float64 // currently allocated heap
	SysMB       float64 // total memory from OS
	HeapObjects uint64
	NumGC       uint32
}

// getRuntimeMetrics collects current runtime statistics
func getRuntimeMetrics() RuntimeMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeMetrics{
		Goroutines:  runtime.NumGoroutine(),
		AllocMB:     float64(m.Alloc) / 1024 / 1024,
		SysMB:       float64(m.Sys) / 1024 / 1024,
		HeapObjects: m.HeapObjects,
		NumGC:       m.NumGC,
	}
}

// startMetricsLogger logs runtime metrics periodically until ctx is done
func startMetricsLogger(ctx context.Context, logger *zap.Logger, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m := getRuntimeMetrics()
				logger.Info("runtime",
					zap.Int("goroutines", m.Goroutines),
					zap.Float64("alloc_mb", m.AllocMB),
					zap.Float64("sys_mb", m.SysMB),
					zap.Uint64("heap_objects", m.HeapObjects),
					zap.Uint32("gc_cycles", m.NumGC))
			}
		}
	}()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	pbfFile := flag.String("pbf", "", "PBF extract to load, overrides the config")
	listen := flag.String("listen", "", "listen address, overrides the config")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	config, err := LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}
	if *pbfFile != "" {
		config.PBF = *pbfFile
	}
	if *listen != "" {
		config.Listen = *listen
	}
	config.Debug = config.Debug || *debug

	logger, err := newLogger(config.Debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(config, logger); err != nil {
		logger.Fatal("router stopped", zap.Error(err))
	}
}

func run(config Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("gosm-transport starting", zap.String("pbf", config.PBF), zap.Int("zoom", config.Zoom))
	graph, err := osm.LoadOsmFile(config.PBF, logger.Named("osm"))
	if err != nil {
		return err
	}

	tiler, err := streaming.NewTiler(config.zoom(), streaming.WithTilerLogger(logger.Named("tiler")))
	if err != nil {
		return err
	}
	tiles := tiler.Tile(graph.Ways)
	for _, net := range tiles.Networks() {
		nodes, edges, ways := tiles.Counts(net)
		logger.Info("tiled network", zap.Stringer("network", net), zap.Int("cells", len(tiles.Cells(net))),
			zap.Int("nodes", nodes), zap.Int("edges", edges), zap.Int("ways", ways))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine := streaming.NewEngine(tiles, streaming.WithEngineLogger(logger.Named("engine")))
	session, err := transport.NewSession(engine,
		transport.WithLogger(logger.Named("session")),
		transport.WithRegisterer(registry))
	if err != nil {
		return err
	}
	defer session.Close()
	engine.SetListener(session)
	engine.SetFocus(config.Focus.Lat, config.Focus.Lon, config.Focus.Radius)

	mux := http.NewServeMux()
	NewServer(config, engine, session, logger.Named("http")).Routes(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	startMetricsLogger(ctx, logger.Named("metrics"), config.MetricsLogInterval)

	srv := &http.Server{Addr: config.Listen, Handler: mux}
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", config.Listen))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
