// stockboard serves a live stock board over HTTP and websockets.
//
// Configuration comes from defaults, an optional -config file, a .env file
// and environment variables such as BOARD_SYMBOLS or REDIS_ADDR.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/johnsiilver/stockboard"
	"github.com/johnsiilver/stockboard/config"
	"github.com/johnsiilver/stockboard/market"
	"github.com/johnsiilver/stockboard/server"
	"github.com/johnsiilver/stockboard/state/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

var (
	configFile = flag.String("config", "", "optional config file (yaml, json or toml)")
	table      = flag.Bool("table", false, "print the board as a table on every update")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		glog.Error(err)
		glog.Flush()
		os.Exit(1)
	}
	glog.Flush()
}

// run returns only after the service is stopped and the sinks are closed.
func run() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	middle, closers, err := sinks(cfg, reg)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	svc, err := market.New(
		market.WithSymbols(cfg.Board.Symbols...),
		market.WithPeriod(cfg.Board.Period),
		market.WithMiddleware(middle...),
	)
	if err != nil {
		return err
	}
	defer svc.Stop()

	board, err := server.New(svc, server.WithNarrowWidth(cfg.Board.NarrowWidth), server.WithGatherer(reg))
	if err != nil {
		return err
	}

	if *table {
		cancel, err := watch(svc)
		if err != nil {
			return err
		}
		defer cancel()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	glog.Infof("serving the stock board (server %s) on %s", board.ID(), cfg.HTTP.Addr)
	// Deferred after serve returns: svc.Stop(), which ends open websockets, then the sinks.
	return serve(ctx, &http.Server{Addr: cfg.HTTP.Addr, Handler: board})
}

// serve runs srv until ctx is done and then shuts it down. A listener error
// is returned instead.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("ListenAndServe: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	glog.Infof("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		glog.Errorf("problem shutting down the http server: %s", err)
	}
	return nil
}

// sinks builds the store middleware from cfg. The closers must be called
// after the service is stopped.
func sinks(cfg *config.Config, reg prometheus.Registerer) ([]stockboard.Middleware, []func(), error) {
	metrics, err := middleware.NewMetrics(reg)
	if err != nil {
		return nil, nil, err
	}
	logging := &middleware.Logging{}

	middle := []stockboard.Middleware{logging.Log, metrics.Observe}
	var closers []func()

	if cfg.Redis.Addr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rc.Ping(ctx).Err(); err != nil {
			rc.Close()
			return nil, nil, fmt.Errorf("could not reach redis at %s: %w", cfg.Redis.Addr, err)
		}

		middle = append(middle, middleware.NewSnapshot(rc).Publish)
		closers = append(closers, func() {
			if err := rc.Close(); err != nil {
				glog.Errorf("problem closing redis: %s", err)
			}
		})
		glog.Infof("publishing records to redis at %s", cfg.Redis.Addr)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		st := middleware.NewStream(middleware.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		middle = append(middle, st.Write)
		closers = append(closers, func() {
			if err := st.Close(); err != nil {
				glog.Errorf("problem closing kafka writer: %s", err)
			}
		})
		glog.Infof("streaming ticks to kafka topic %s", cfg.Kafka.Topic)
	}
	return middle, closers, nil
}

// watch prints the board as a table on every change until cancelled or the
// service stops.
func watch(svc *market.Service) (stockboard.CancelFunc, error) {
	ch, cancel, err := svc.Subscribe(stockboard.Any)
	if err != nil {
		return nil, err
	}

	go func() {
		renderTable(os.Stdout, svc.All())
		for sig := range ch {
			renderTable(os.Stdout, sig.State.Data.Records)
		}
	}()
	return cancel, nil
}
