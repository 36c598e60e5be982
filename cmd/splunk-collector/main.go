// Command splunk-collector runs the event-collection engine as a
// standalone process: parse flags and the instance configuration
// file, wire the driver, and run ticks on an interval until signaled
// to stop. The shutdown sequence follows the teacher's
// stopper.Context pattern in internal/source/cdc/resolver.go.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/long0419/splunk-event-collector/internal/config"
	"github.com/long0419/splunk-event-collector/internal/notify"
	"github.com/long0419/splunk-event-collector/internal/stopper"
	"github.com/long0419/splunk-event-collector/internal/wiring"
)

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("splunk-collector exited with error")
	}
}

func run() error {
	var flags config.RuntimeFlags
	flagSet := pflag.NewFlagSet("splunk-collector", pflag.ExitOnError)
	flags.Bind(flagSet)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return errors.Wrap(err, "parsing flags")
	}
	if err := flags.Preflight(); err != nil {
		return err
	}
	log.WithField("flags", flags.String()).Info("starting splunk-collector")

	file, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, reporter, cleanup, err := wiring.NewDriver(ctx, file, flags)
	if err != nil {
		return err
	}
	defer cleanup()

	stop := stopper.WithContext(ctx)
	stop.Go(func() error {
		return serveHealth(stop, flags.BindAddr, reporter)
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(flags.CheckInterval) * time.Second)
	defer ticker.Stop()

	forceReload := notify.New(flags.ForceReload)
	d.ForceReload = func(string) bool {
		wanted, _ := forceReload.Get()
		return wanted
	}

	for {
		select {
		case <-sig:
			log.Info("received shutdown signal")
			return stop.Stop(5 * time.Second)
		default:
		}

		continueNow, tickErr := d.RunTick(stop)
		if wanted, _ := forceReload.Get(); wanted {
			forceReload.Set(false)
		}
		if tickErr != nil {
			log.WithError(tickErr).Error("tick reported a failing saved search")
		}
		if continueNow {
			continue
		}

		select {
		case <-sig:
			log.Info("received shutdown signal")
			return stop.Stop(5 * time.Second)
		case <-ticker.C:
		}
	}
}

// serveHealth serves both endpoints --bindAddr documents: /healthz for
// the liveness/readiness probe and /metrics for Prometheus scraping of
// the internal/metrics collectors.
func serveHealth(stop *stopper.Context, addr string, reporter interface{ Healthy() bool }) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if reporter.Healthy() {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "OK")
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "CRITICAL")
	})
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	stop.Go(func() error {
		<-stop.Stopping()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "health server failed")
	}
	return nil
}
