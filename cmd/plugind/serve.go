package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"plugintree/internal/api"
	"plugintree/internal/config"
	xerrors "plugintree/internal/errors"
	"plugintree/internal/events"
	"plugintree/internal/ledger"
	"plugintree/internal/observability/alerting"
	"plugintree/internal/observability/metrics"
	"plugintree/pkg/logger"
	"plugintree/pkg/plugin"
	"plugintree/plugins/builtin"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "加载全部插件并启动内省 API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.Logging); err != nil {
				return fmt.Errorf("初始化日志失败: %w", err)
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

// daemon 汇总一次运行所需的全部组件。
type daemon struct {
	registry  *plugin.Registry
	managers  []*plugin.PluginManager
	bus       events.Bus
	store     ledger.Store
	collector *metrics.Collector
	server    *api.Server
	logger    *slog.Logger
}

func newDaemon(ctx context.Context, cfg *config.Config) (_ *daemon, err error) {
	d := &daemon{logger: logger.Named("plugind")}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	var observers []plugin.Option
	if d.bus, err = events.Open(ctx, cfg.Events); err != nil {
		return nil, fmt.Errorf("打开事件总线失败: %w", err)
	}
	if d.bus != nil {
		observers = append(observers, plugin.WithObserver(
			events.NewEmitter(d.bus, cfg.Events.PublishTimeout, logger.Named("events"))))
	}
	if d.store, err = ledger.Open(ctx, cfg.Ledger); err != nil {
		return nil, fmt.Errorf("打开流水存储失败: %w", err)
	}
	observers = append(observers, plugin.WithObserver(ledger.NewRecorder(d.store, 0, logger.Named("ledger"))))
	if cfg.Metrics.Enabled {
		d.collector = metrics.New(cfg.Metrics.Namespace)
		observers = append(observers, plugin.WithObserver(d.collector))
	}
	d.registry = plugin.NewRegistry(append(observers, plugin.WithLogger(logger.Named("registry")))...)

	dispatcher := newDispatcher(cfg.Alerting)
	for i, mc := range cfg.Managers {
		opts := []plugin.ManagerOption{
			plugin.WithImporter(builtin.Importer()),
			plugin.WithManagerLogger(logger.Named("manager")),
		}
		if dispatcher != nil {
			opts = append(opts, plugin.WithFailureHook(alerting.Hook(dispatcher, mc.Name)))
		}
		m, err := plugin.NewPluginManager(ctx, d.registry, mc, opts...)
		if err != nil {
			return nil, fmt.Errorf("managers[%d]: %w", i, err)
		}
		d.managers = append(d.managers, m)
	}

	serverOpts := []api.Option{
		api.WithLedger(d.store),
		api.WithLogger(logger.Named("api")),
		api.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}
	if d.collector != nil {
		serverOpts = append(serverOpts, api.WithMetrics(d.collector))
	}
	d.server = api.NewServer(cfg.Server.Address, d.registry, serverOpts...)
	return d, nil
}

func newDispatcher(cfg config.AlertingConfig) alerting.Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	notifiers := []alerting.Notifier{&alerting.LogNotifier{Logger: logger.Named("alerting")}}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: cfg.WebhookURL})
	}
	return alerting.NewFanout(notifiers...).WithMinimumSeverity(xerrors.Severity(cfg.MinSeverity))
}

// loadAll 按优先级顺序加载每个管理器声明的插件，失败不会中断其余加载。
func (d *daemon) loadAll(ctx context.Context) error {
	var errs []error
	for _, m := range d.managers {
		loaded, err := m.LoadAll(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		d.logger.Info("manager loaded", "manager", m.Name(), "plugins", len(loaded))
	}
	return errors.Join(errs...)
}

func (d *daemon) close() {
	if d.bus != nil {
		if err := d.bus.Close(); err != nil {
			d.logger.Warn("关闭事件总线失败", "error", err)
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("关闭流水存储失败", "error", err)
		}
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	d, err := newDaemon(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close()

	g, gctx := errgroup.WithContext(ctx)
	if d.bus != nil {
		g.Go(func() error {
			return d.bus.Subscribe(gctx, func(_ context.Context, evt events.Event) error {
				d.logger.Debug("registry event", "type", evt.Type, "id", evt.PluginID, "manager", evt.Manager)
				return nil
			})
		})
	}
	g.Go(func() error {
		if err := d.loadAll(gctx); err != nil {
			d.logger.Warn("部分插件加载失败", "error", err)
		}
		return nil
	})
	g.Go(func() error { return d.server.Start(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
