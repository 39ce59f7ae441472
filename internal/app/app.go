package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"seasoning/config"
	"seasoning/internal/devserver"
	"seasoning/internal/httpserver"
	"seasoning/internal/ingredients"
	"seasoning/internal/logging"
	"seasoning/internal/ui"
	"seasoning/internal/widgets/autocomplete"
	"seasoning/internal/widgets/markup"
	"seasoning/internal/widgets/typetoggle"
)

const (
	defaultConfigPath    = "config.json"
	defaultLogDir        = "data"
	defaultLogFileName   = "seasoning.log"
	defaultReadTimeout   = 10 * time.Second
	defaultShutdownGrace = 5 * time.Second
	widgetHTTPTimeout    = 5 * time.Second
)

// Options controls how the application boots and where it loads configuration from.
type Options struct {
	ConfigPath  string
	LogDir      string
	LogFile     string
	ReadTimeout time.Duration
}

// Run wires dependencies together and blocks until the provided context is cancelled
// or the HTTP server exits with an error.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	opts = opts.withDefaults()

	logFilePath := filepath.Join(opts.LogDir, opts.LogFile)
	logFile, err := configureLogging(logFilePath)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logFile.Close()

	appCfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger := logging.New()

	catalog, err := loadCatalog(appCfg.Fixtures)
	if err != nil {
		return err
	}
	logger.Printf("loaded %d ingredient fixtures", catalog.Len())

	widgets, err := buildWidgets(appCfg.Widgets)
	if err != nil {
		return err
	}

	sessionTTL := time.Duration(appCfg.Sessions.TTLSeconds) * time.Second
	sessions := devserver.NewStore(sessionTTL, logging.Prefixed(logger, "sessions: "))

	srv, err := httpserver.New(httpserver.Config{
		Addr:        appCfg.Server.Addr,
		Port:        appCfg.Server.Port,
		ReadTimeout: opts.ReadTimeout,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	srv.SetHandler(devserver.NewRouter(devserver.Options{
		Logger:   logger,
		Sessions: sessions,
		Catalog:  catalog,
		Widgets:  widgets,
		BaseURL:  srv.URL(),
		RuntimeInfo: devserver.RuntimeInfo{
			Name:        "seasoningd",
			Addr:        appCfg.Server.Addr,
			Port:        appCfg.Server.Port,
			ReadTimeout: opts.ReadTimeout.String(),
			SessionTTL:  sessionTTL.String(),
		},
	}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go sessions.RunSweeper(sweepCtx, sessionTTL/2)

	select {
	case <-ctx.Done():
		logger.Printf("Shutting down...")
		cancelSweep()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
		return <-errCh
	case err := <-errCh:
		cancelSweep()
		return err
	}
}

func (o Options) withDefaults() Options {
	if o.ConfigPath == "" {
		o.ConfigPath = defaultConfigPath
	}
	if o.LogDir == "" {
		o.LogDir = defaultLogDir
	}
	if o.LogFile == "" {
		o.LogFile = defaultLogFileName
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = defaultReadTimeout
	}
	return o
}

func loadCatalog(cfg config.FixturesConfig) (*ingredients.Catalog, error) {
	if cfg.Ingredients == "" {
		catalog, err := ui.Ingredients()
		if err != nil {
			return nil, fmt.Errorf("load embedded fixtures: %w", err)
		}
		return catalog, nil
	}
	catalog, err := ingredients.LoadFile(cfg.Ingredients)
	if err != nil {
		return nil, fmt.Errorf("load fixtures: %w", err)
	}
	return catalog, nil
}

func buildWidgets(cfg config.WidgetsConfig) (devserver.Widgets, error) {
	rules, err := typetoggle.RulesFor(cfg.TypeToggle.Rules)
	if err != nil {
		return devserver.Widgets{}, err
	}
	settings := markup.DefaultSettings()
	if cfg.Markup.PreviewPath != "" {
		settings.PreviewParserPath = cfg.Markup.PreviewPath
	}
	return devserver.Widgets{
		AddLabel:      cfg.Formset.AddLabel,
		TypeToggle:    typetoggle.Options{Rules: rules},
		SlideInterval: cfg.Slideshow.Interval(),
		Autocomplete: autocomplete.Options{
			Source:    cfg.Autocomplete.Source,
			PageURL:   cfg.Autocomplete.PageURL,
			MinLength: cfg.Autocomplete.MinLength,
		},
		AutocompleteBaseURL: cfg.Autocomplete.BaseURL,
		Markup:              settings,
		Previewer:           markup.NewPreviewer(),
		HTTPClient:          &http.Client{Timeout: widgetHTTPTimeout},
	}, nil
}
