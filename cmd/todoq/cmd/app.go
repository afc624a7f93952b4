package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"todoq/backend"
	"todoq/backend/rest"
	"todoq/internal/analytics"
	"todoq/internal/config"
	"todoq/internal/notification"
	"todoq/internal/reconcile"
	"todoq/internal/shutdown"
	"todoq/internal/utils"
)

const cleanupTimeout = 5 * time.Second

// app is one wired client session: config, REST client, journal, notices and
// the reconciling cache on top of them
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	client   *rest.Client
	tracker  *analytics.Tracker
	notifier notification.NotificationManager
	cache    *reconcile.Cache
	stop     *shutdown.Manager
}

// loadConfig reads the config file and overlays flags and TODOQ_* variables
func loadConfig(env *environment) (*config.Config, error) {
	cfg, err := config.Load(env.viper.GetString("config"))
	if err != nil {
		return nil, err
	}

	format := ""
	if env.jsonOutput() {
		format = "json"
	}
	cfg.ApplyFlags(env.viper.GetString("endpoint"), format)

	if err := cfg.Validate(); err != nil {
		return nil, utils.WrapWithSuggestion(err, "Fix the value in "+configPath(env)+" or run 'todoq config show'")
	}
	return cfg, nil
}

func configPath(env *environment) string {
	if p := env.viper.GetString("config"); p != "" {
		return p
	}
	return config.DefaultPath()
}

func dataDir(env *environment) string {
	if env.cfg.DataDir != "" {
		return env.cfg.DataDir
	}
	return config.GetDataDir()
}

// openApp wires a session. interactive keeps the view channel for the TUI and
// moves logging off the terminal.
func openApp(env *environment, interactive bool) (*app, error) {
	cfg, err := loadConfig(env)
	if err != nil {
		return nil, err
	}

	logger := utils.GetLogger()
	if err := logger.SetFormat(cfg.Logging.Format); err != nil {
		return nil, err
	}
	logger.SetOutput(env.stderr)
	logFile := cfg.Logging.File
	if interactive && logFile == "" {
		logFile = filepath.Join(dataDir(env), "todoq.log")
	}
	if logFile != "" {
		if err := logger.RedirectToFile(logFile); err != nil {
			return nil, err
		}
	}
	log := logger.Logrus()

	a := &app{cfg: cfg, log: log, stop: shutdown.NewManager(log)}
	a.stop.RegisterCleanup("logger", func(context.Context) error {
		if logFile != "" {
			logger.Close()
		}
		return nil
	})

	client, err := rest.New(rest.Config{Endpoint: cfg.Endpoint.URL, Timeout: cfg.GetEndpointTimeout()})
	if err != nil {
		_ = a.Close()
		return nil, utils.WrapWithSuggestion(err, "Set endpoint.url in your config file, pass --endpoint, or set TODOQ_ENDPOINT")
	}
	a.client = client
	a.stop.RegisterCleanup("client", func(context.Context) error {
		return client.Close()
	})

	tracker, err := analytics.NewTracker(filepath.Join(dataDir(env), "analytics.db"),
		analytics.IsEnabledFromEnv(cfg.IsAnalyticsEnabled()))
	if err != nil {
		// The journal is optional; the session works without it.
		log.WithError(err).Warn("mutation journal unavailable")
	} else {
		a.tracker = tracker
		a.stop.RegisterCleanup("journal", func(context.Context) error {
			if _, err := tracker.Cleanup(cfg.GetAnalyticsRetentionDays()); err != nil {
				log.WithError(err).Debug("journal cleanup failed")
			}
			return tracker.Close()
		})
	}

	nc := cfg.NotificationSettings()
	nc.ViewChannel.Enabled = interactive
	notifier, err := notification.NewManager(nc, notification.WithLogger(log))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.notifier = notifier
	a.stop.RegisterCleanup("notifications", func(context.Context) error {
		return notifier.Close()
	})

	opts := []reconcile.Option{
		reconcile.WithLogger(log),
		reconcile.WithNotifier(notifier),
		reconcile.WithSpeculativeUpdates(cfg.IsSpeculativeUpdatesEnabled()),
	}
	if a.tracker != nil {
		opts = append(opts, reconcile.WithRecorder(a.tracker))
	}
	a.cache = reconcile.New(client, opts...)
	a.stop.RegisterCleanup("cache", func(context.Context) error {
		return a.cache.Close()
	})

	return a, nil
}

// Close runs the registered cleanups: cache first, then notices, journal,
// client and finally the log file.
func (a *app) Close() error {
	a.stop.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	return a.stop.Wait(ctx)
}

// presentError turns a remote or validation failure into the CLI's error with a suggestion
func (a *app) presentError(err error) error {
	if err == nil {
		return nil
	}
	var ews *utils.ErrorWithSuggestion
	if errors.As(err, &ews) {
		return err
	}

	var tf *backend.TransportFailure
	if errors.As(err, &tf) {
		if tf.Status != 0 {
			return utils.ErrRequestRejected(tf.Op, tf.Status)
		}
		reason := err.Error()
		if tf.Err != nil {
			reason = tf.Err.Error()
		}
		return utils.ErrEndpointOffline(a.cfg.Endpoint.URL, reason)
	}
	return err
}
