// cmd/draughts/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/tamzrod/draughts-telemetry/internal/config"
	"github.com/tamzrod/draughts-telemetry/internal/history"
	"github.com/tamzrod/draughts-telemetry/internal/logging"
	"github.com/tamzrod/draughts-telemetry/internal/metrics"
	"github.com/tamzrod/draughts-telemetry/internal/poller"
	"github.com/tamzrod/draughts-telemetry/internal/series"
	"github.com/tamzrod/draughts-telemetry/internal/session"
	"github.com/tamzrod/draughts-telemetry/internal/sink"
	"github.com/tamzrod/draughts-telemetry/internal/status"
	"github.com/tamzrod/draughts-telemetry/internal/writer"
)

func main() {
	var (
		cfgPath  = pflag.StringP("config", "c", "draughts.yaml", "path to the YAML config")
		logLevel = pflag.String("log-level", "", "override log.level (debug, info, warn, error)")
		listen   = pflag.String("metrics-listen", "", "override metrics.listen (host:port)")
		check    = pflag.Bool("check", false, "validate the config and exit")
	)
	pflag.Parse()

	// positional path, as in `draughts plc.yaml`
	if pflag.NArg() > 0 {
		*cfgPath = pflag.Arg(0)
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal("config load failed", "err", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal("config validation failed", "path", *cfgPath, "err", err)
	}
	config.Normalize(cfg)

	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *listen != "" {
		cfg.Metrics.Listen = *listen
	}
	if *check {
		fmt.Printf("%s: ok\n", *cfgPath)
		return
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatal("logger setup failed", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("draughts stopped", "err", err)
	}
	logger.Info("draughts stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := context.WithCancel(ctx)

	// workers stop first, then connections close in reverse order
	var (
		wg      sync.WaitGroup
		closers []func() error
	)
	defer func() {
		cancel()
		wg.Wait()
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}()

	goRun := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker stopped", "worker", name, "err", err)
			}
		}()
	}

	// --------------------
	// Metrics
	// --------------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	if cfg.Metrics.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		goRun("metrics", func(ctx context.Context) error {
			go func() {
				<-ctx.Done()
				shutdown, done := context.WithTimeout(context.Background(), 2*time.Second)
				defer done()
				_ = srv.Shutdown(shutdown)
			}()
			logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	// --------------------
	// History archive (optional)
	// --------------------

	sc := cfg.SeriesConfig()
	scfg := session.Config{Ranges: cfg.Ranges}
	scfg.Hull, scfg.Port, scfg.Starboard = cfg.Tables()

	if cfg.History.Enabled {
		var (
			archive *history.Store
			err     error
		)
		if cfg.History.Driver == history.Postgres.Driver {
			archive, err = history.OpenPostgres(cfg.History.DSN, sc.Location)
		} else {
			archive, err = history.Open(cfg.History.Path, sc.Location)
		}
		if err != nil {
			return err
		}
		closers = append(closers, archive.Close)

		rec := history.NewRecorder(archive, history.RecorderOptions{
			Buffer:     cfg.History.Buffer,
			Batch:      cfg.History.Batch,
			FlushEvery: time.Duration(cfg.History.FlushMs) * time.Millisecond,
			KeepDays:   cfg.History.KeepDays,
		}, logger.WithPrefix("history"), m)

		scfg.History = archive
		scfg.Recorder = rec
		goRun("history", rec.Run)
	}

	// --------------------
	// Session + time series
	// --------------------

	sess, err := session.New(scfg, logger, m)
	if err != nil {
		return err
	}
	store, err := series.New(sc)
	if err != nil {
		return fmt.Errorf("series: %w", err)
	}
	if err := sess.Load(ctx, store); err != nil {
		return err
	}

	sess.Subscribe(sink.NewLogSink(sess, logger.WithPrefix("frame"), cfg.Log.Every))

	// --------------------
	// PLC writes: control + status block (optional)
	// --------------------

	plan, err := writer.BuildPlan(cfg)
	if err != nil {
		return err
	}

	var (
		ctl          *writer.Control
		statusWriter *writer.StatusWriter
	)
	if plan.Enabled() {
		cli, err := writer.BuildClient(cfg)
		if err != nil {
			return err
		}
		closers = append(closers, cli.Close)

		if len(plan.Settings) > 0 || len(plan.Commands) > 0 {
			ctl, err = writer.NewControl(plan, cli, logger.WithPrefix("control"), m)
			if err != nil {
				return err
			}
		}
		statusWriter, _ = writer.NewStatusWriter(plan, cli, m)
	}

	// --------------------
	// MQTT dashboard sink + command inlet (optional)
	// --------------------

	if cfg.MQTT.Enabled {
		opts := sink.MQTTOptions{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
			Retained:    cfg.MQTT.Retained,
			MinInterval: time.Duration(cfg.MQTT.MinIntervalMs) * time.Millisecond,
			Timeout:     time.Duration(cfg.MQTT.TimeoutMs) * time.Millisecond,
		}
		mlog := logger.WithPrefix("mqtt")
		client, err := sink.Dial(opts, mlog)
		if err != nil {
			return err
		}
		closers = append(closers, func() error { client.Disconnect(250); return nil })

		ms := sink.NewMQTTSink(client, sess, opts, mlog, m)
		ms.SetSeries(store)
		sess.Subscribe(ms)
		goRun("mqtt", ms.Run)

		var c sink.Controller
		if ctl != nil {
			c = ctl
		}
		cmds := sink.NewCommands(opts.TopicPrefix, opts.QoS, c, sess, store, mlog)
		cmds.OnViewChange(ms.ViewChanged)
		if err := cmds.Subscribe(client); err != nil {
			return err
		}
		goRun("commands", cmds.Run)
	}

	// --------------------
	// Poller
	// --------------------

	p, closePoller, err := poller.Build(cfg)
	if err != nil {
		return err
	}

	closers = append(closers, closePoller)

	out := make(chan poller.PollResult)
	goRun("poller", func(ctx context.Context) error {
		p.Run(ctx, out)
		return ctx.Err()
	})

	logger.Info("draughts started",
		"session", sess.ID(),
		"plc", cfg.PLC.Endpoint,
		"blocks", len(cfg.Blocks),
		"interval", time.Duration(cfg.PLC.IntervalMs)*time.Millisecond,
		"history", cfg.History.Enabled,
		"mqtt", cfg.MQTT.Enabled,
	)

	orchestrate(ctx, out, sess, statusWriter, m, logger, time.Duration(cfg.PLC.IntervalMs)*time.Millisecond)
	return ctx.Err()
}

// orchestrate owns the link status and feeds polled frames into the session.
func orchestrate(
	ctx context.Context,
	in <-chan poller.PollResult,
	sess *session.Session,
	sw *writer.StatusWriter,
	m *metrics.Metrics,
	logger *log.Logger,
	interval time.Duration,
) {
	tracker := status.NewTracker(3 * interval)

	deliver := func() {
		snap := tracker.Snapshot()
		m.LinkHealth(snap.Up(), snap.LastErrorCode, uint32(snap.SecondsInError))
		if sw == nil {
			return
		}
		if err := sw.WriteStatus(snap); err != nil {
			logger.Warn("status write failed", "err", err)
		}
	}

	// Full block write on start (identity re-assert)
	deliver()

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	var polls uint64

	for {
		select {
		case <-ctx.Done():
			return

		case res := <-in:
			polls++
			m.PollCompleted(res.Err == nil)

			prev := tracker.Snapshot().Health
			changed := tracker.Observe(res.Err, res.RawErrorCode)

			if res.Err != nil {
				if prev != status.HealthError {
					logger.Warn("plc link down", "err", res.Err, "code", tracker.Snapshot().LastErrorCode)
				}
			} else {
				if prev != status.HealthOK && prev != status.HealthUnknown {
					logger.Info("plc link restored", "polls", humanize.Comma(int64(polls)))
				}
				// decode errors are counted and logged by the session
				if frameCommitted(sess.Ingest(res.Frame())) {
					changed = tracker.Committed(uint16(sess.Mode())) || changed
				}
			}

			if changed {
				deliver()
			}

		case <-secTicker.C:
			prev := tracker.Snapshot().Health
			if tracker.Tick() {
				if snap := tracker.Snapshot(); snap.Health == status.HealthStale && prev != status.HealthStale {
					logger.Warn("plc link stale", "last_ok_before", 3*interval)
				}
				deliver()
			}
		}
	}
}

// frameCommitted reports whether Ingest committed the frame's readings.
// A sample refused by the store still leaves the frame committed.
func frameCommitted(err error) bool {
	return err == nil ||
		errors.Is(err, series.ErrOutOfOrderSample) ||
		errors.Is(err, series.ErrChannelCount)
}
