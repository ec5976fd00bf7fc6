package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"

	"chizu/campus-client/internal/api"
	"chizu/campus-client/internal/config"
	"chizu/campus-client/internal/mapview"
	"chizu/campus-client/internal/metrics"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/position"
	"chizu/campus-client/internal/routing"
	"chizu/campus-client/internal/search"
	"chizu/campus-client/internal/shell"
	"chizu/campus-client/internal/store"
)

// App wires the campus client together: local store, API client, map shell,
// the local HTTP surface and metrics. It manages their lifecycle.
type App struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *store.Store
	metrics *metrics.Metrics
	client  *api.Client
	handle  *mapview.Handle
	shell   *shell.Shell
	inbox   *shell.Inbox
	mqtt    mqtt.Client
	mdns    *zeroconf.Server
}

// New constructs a new application instance.
func New(cfg config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// Run starts all configured services and blocks until the context is cancelled or an error occurs.
func (a *App) Run(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		return err
	}
	defer a.stop()

	httpErrCh := make(chan error, 1)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler: a.routes(),
	}

	go func() {
		a.logger.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErrCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var metricsServer *http.Server
	if a.cfg.MetricsPort > 0 {
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", a.cfg.MetricsPort),
			Handler: a.metrics.Handler(),
		}
		go func() {
			a.logger.Info("metrics server started", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErrCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	if a.cfg.MDNS.Enabled {
		if err := a.startMDNS(a.cfg.HTTPPort); err != nil {
			a.logger.Warn("mDNS advertisement unavailable", "error", err)
		}
	}
	defer a.stopMDNS()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if metricsServer != nil {
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					a.logger.Warn("metrics server shutdown", "error", err)
				}
			}
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http server shutdown: %w", err)
			}
			a.logger.Info("http server stopped")
			return nil
		case err := <-httpErrCh:
			if err != nil {
				_ = httpServer.Shutdown(context.Background())
				if metricsServer != nil {
					_ = metricsServer.Shutdown(context.Background())
				}
				return err
			}
		}
	}
}

// start opens the store, builds the shell and mounts the map view. ctx bounds
// the position watch.
func (a *App) start(ctx context.Context) error {
	db, err := store.Open(a.cfg.DatabasePath)
	if err != nil {
		return err
	}
	a.store = db

	if err := a.store.InitSchema(ctx); err != nil {
		_ = a.store.Close()
		return err
	}

	a.metrics = metrics.New()
	a.inbox = shell.NewInbox(0)

	a.client = api.NewClient(a.cfg.APIBaseURL,
		api.WithLogger(a.logger),
		api.WithObserver(a.metrics.ObserveAPI),
	)

	view := mapview.CampusView()
	view.Center = model.LatLng{Lat: a.cfg.Map.CenterLat, Lng: a.cfg.Map.CenterLng}
	if a.cfg.Map.Zoom > 0 {
		view.Zoom = a.cfg.Map.Zoom
	}
	a.handle = mapview.NewHandle(mapview.CanvasFactory, view.Normalize())

	logAlerts := shell.LogAlerter{Logger: a.logger}
	a.shell = shell.New(a.client, a.handle, a.router(),
		shell.WithLogger(a.logger),
		shell.WithAlerter(shell.AlertFunc(func(al shell.Alert) {
			logAlerts.Alert(al)
			a.inbox.Alert(al)
		})),
		shell.WithPositionSource(a.positionSource()),
		shell.WithSnapshots(a.store),
		shell.WithSchedules(a.store),
		shell.WithActionLog(a.store),
		shell.WithRecorder(a.metrics),
		shell.WithTileURL(a.cfg.Map.TileURL),
		shell.WithSearchOptions(search.Options{
			MatchCollege:  a.cfg.Search.MatchCollege,
			MatchCategory: a.cfg.Search.MatchCategory,
			Debounce:      a.cfg.Search.Debounce,
		}),
	)

	if err := a.shell.Mount(ctx); err != nil {
		a.stop()
		return fmt.Errorf("mount view: %w", err)
	}
	return nil
}

// stop unmounts the view and releases the position feed and the store.
func (a *App) stop() {
	if a.shell != nil {
		if err := a.shell.Unmount(); err != nil {
			a.logger.Warn("unmount view", "error", err)
		}
	}
	if a.mqtt != nil {
		a.mqtt.Disconnect(250)
		a.logger.Info("mqtt client disconnected")
		a.mqtt = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("close store", "error", err)
		}
	}
}

func (a *App) router() routing.Router {
	if a.cfg.Routing.APIKey == "" {
		a.logger.Info("no routing api key configured, using straight-line routes")
		return routing.Straight{}
	}
	return routing.NewGraphHopper(a.cfg.Routing.BaseURL, a.cfg.Routing.APIKey, a.cfg.Routing.Timeout,
		routing.WithLogger(a.logger),
	)
}

// positionSource picks the live MQTT feed when a broker is configured, a
// fixed position when one is set, and otherwise a source that never fixes.
// A broker that cannot be reached degrades to the next option.
func (a *App) positionSource() position.Source {
	if a.cfg.MQTT.Broker != "" {
		clientID := a.cfg.MQTT.ClientID
		if clientID == "" {
			clientID = "chizu-" + uuid.NewString()
		}
		opts := mqtt.NewClientOptions().
			AddBroker(a.cfg.MQTT.Broker).
			SetClientID(clientID).
			SetAutoReconnect(true).
			SetConnectTimeout(5 * time.Second)
		opts = opts.SetOrderMatters(false)

		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			a.logger.Warn("mqtt broker unreachable", "broker", a.cfg.MQTT.Broker, "error", token.Error())
		} else {
			a.mqtt = client
			a.logger.Info("connected to mqtt broker", "broker", a.cfg.MQTT.Broker, "client_id", clientID, "topic", a.cfg.MQTT.PositionTopic)
			return position.NewMQTTSource(client, a.cfg.MQTT.PositionTopic, a.logger)
		}
	}

	if a.cfg.DefaultPosition != "" {
		at, err := mapview.ParseLatLng(a.cfg.DefaultPosition)
		if err != nil {
			a.logger.Warn("ignoring default position", "error", err)
		} else {
			return position.Static{At: at}
		}
	}

	return position.Unavailable{}
}
