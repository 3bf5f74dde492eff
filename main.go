package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PrintRelay/app/config"
	"PrintRelay/app/database"
	"PrintRelay/app/models"
	"PrintRelay/app/receipt"
	"PrintRelay/app/services"
	"PrintRelay/app/websocket"

	"github.com/joho/godotenv"
)

// App holds the running agent's components
type App struct {
	ctx             context.Context
	cfg             *config.AppConfig
	LoggerService   *services.LoggerService
	RelayClient     *services.RelayClient
	DispatchService *services.DispatchService
	ReconcileSvc    *services.ReconcileService
	PrinterService  *services.PrinterService
	ExportService   *services.HistoryExportService
	ReconcileWorker *services.ReconcileWorker
	StatusHub       *websocket.Server
}

// NewApp creates a new App
func NewApp() *App {
	return &App{}
}

// startup wires every component from configuration
func (a *App) startup(ctx context.Context) error {
	a.ctx = ctx

	cfg, err := config.LoadOrCreateConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	if cfg.System.LogDir != "" {
		a.LoggerService.Close()
		a.LoggerService = services.NewLoggerService(cfg.System.LogDir)
	}

	if cfg.Relay.BaseURL == "" || cfg.Relay.Token == "" {
		configPath, _ := config.GetConfigPath()
		return fmt.Errorf("relay URL and token are required; set RELAY_URL and RELAY_TOKEN or edit %s", configPath)
	}

	a.LoggerService.LogInfo("Initializing database")
	if err := database.Initialize(cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	store := database.NewPrintJobStore(database.GetDB())

	a.RelayClient = services.NewRelayClient(
		cfg.Relay.BaseURL,
		services.StaticCredential(cfg.Relay.Token),
		services.WithRelayTimeout(cfg.Relay.Timeout()),
		services.WithRelayLogger(a.LoggerService),
	)

	account, err := a.RelayClient.WhoAmI(ctx)
	if err != nil {
		a.LoggerService.LogWarning("Could not verify relay credential", err.Error())
	} else {
		a.LoggerService.LogInfo("Relay account verified", account.Email)
	}

	// A nil *websocket.Server must not reach the services as a non-nil observer
	var observer services.PrintJobObserver

	profile := receipt.StoreProfile{
		Name:           cfg.Store.Name,
		Tagline:        cfg.Store.Tagline,
		Handle:         cfg.Store.Handle,
		ThankYou:       cfg.Store.ThankYou,
		CurrencySymbol: cfg.Store.CurrencySymbol,
		TrackingURL:    cfg.Store.TrackingURL,
		Location:       cfg.Store.Location(),
	}

	if cfg.Status.Enabled {
		// The hub reaches jobs through the printer facade, which is built below
		a.StatusHub = websocket.NewServer(cfg.Status.Port, printerJobs{app: a}, cfg.Status.AccessKeyHash)
		a.StatusHub.EnableMDNS(cfg.Status.AnnounceMDNS)
		observer = a.StatusHub
	}

	a.DispatchService = services.NewDispatchService(
		a.RelayClient,
		store,
		a.LoggerService,
		services.WithRetryDelay(time.Duration(cfg.Dispatch.RetryDelaySeconds)*time.Second),
		services.WithMaxRetries(cfg.Dispatch.MaxRetries),
		services.WithDispatchObserver(observer),
	)
	a.ReconcileSvc = services.NewReconcileService(a.RelayClient, store, a.LoggerService, observer)
	a.PrinterService = services.NewPrinterService(
		cfg.Store.ID,
		profile,
		a.DispatchService,
		a.ReconcileSvc,
		a.RelayClient,
		store,
		models.PaperWidth(cfg.Store.DefaultPaperWidth),
	)
	a.ExportService = services.NewHistoryExportService(store, cfg.Sheets, a.LoggerService)

	if printers := a.PrinterService.Printers(ctx); len(printers) > 0 {
		a.LoggerService.LogInfo("Relay printers available", fmt.Sprintf("%d", len(printers)))
	}
	if cfg.Store.DefaultPrinterID != "" {
		if status, err := a.PrinterService.PrinterStatus(ctx, cfg.Store.DefaultPrinterID); err != nil {
			a.LoggerService.LogWarning("Could not read default printer status", err.Error())
		} else if !status.Online {
			a.LoggerService.LogWarning("Default printer is offline", cfg.Store.DefaultPrinterID)
		}
	}

	if a.StatusHub != nil {
		a.LoggerService.LogInfo("Starting status hub", "Port: "+cfg.Status.Port)
		go func() {
			defer a.LoggerService.RecoverPanic()
			if err := a.StatusHub.Start(); err != nil {
				a.LoggerService.LogError("Status hub error", err)
			}
		}()
	}

	if cfg.Reconcile.Enabled {
		interval := time.Duration(cfg.Reconcile.IntervalSeconds) * time.Second
		a.ReconcileWorker = services.NewReconcileWorker(a.ReconcileSvc, cfg.Store.ID, interval, a.LoggerService)
		a.ReconcileWorker.Start()
	}

	return nil
}

// shutdown stops components in reverse start order
func (a *App) shutdown() {
	a.LoggerService.LogInfo("Agent shutting down")

	if a.ReconcileWorker != nil {
		a.ReconcileWorker.Stop()
	}

	if a.StatusHub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.StatusHub.Stop(ctx); err != nil {
			a.LoggerService.LogWarning("Status hub did not stop cleanly", err.Error())
		}
		cancel()
	}

	// Send final history to Google Sheets if enabled
	if a.ExportService != nil && a.cfg != nil && a.cfg.Sheets.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if n, err := a.ExportService.Export(ctx, a.cfg.Store.ID, 200); err != nil {
			a.LoggerService.LogWarning("Failed to export print history to Google Sheets", err.Error())
		} else {
			a.LoggerService.LogInfo("Print history exported to Google Sheets", fmt.Sprintf("%d rows", n))
		}
		cancel()
	}

	if err := database.Close(); err != nil {
		a.LoggerService.LogWarning("Error closing database", err.Error())
	}

	a.LoggerService.LogInfo("Agent stopped")
	a.LoggerService.Close()
}

// printerJobs defers to the printer facade once it exists
type printerJobs struct {
	app *App
}

func (h printerJobs) History(ctx context.Context, storeID string, limit int) ([]models.PrintJob, error) {
	return h.app.PrinterService.History(ctx, storeID, limit)
}

func (h printerJobs) Job(ctx context.Context, id string) (*models.PrintJob, error) {
	return h.app.PrinterService.Job(ctx, id)
}

func (h printerJobs) RetryJob(ctx context.Context, id, printerID string) (*models.PrintJob, error) {
	return h.app.PrinterService.RetryJob(ctx, id, printerID)
}

func (h printerJobs) RefreshJobs(ctx context.Context, storeID string) (int, error) {
	return h.app.PrinterService.RefreshJobs(ctx, storeID)
}

func main() {
	app := NewApp()
	app.LoggerService = services.NewLoggerService("")
	defer app.LoggerService.RecoverPanic()

	app.LoggerService.LogInfo("Print relay agent starting")

	// Load .env file if present
	if err := godotenv.Load(".env"); err != nil {
		app.LoggerService.LogInfo("No .env file found, using config.json and environment")
	}

	if err := app.LoggerService.CleanOldLogs(30); err != nil {
		app.LoggerService.LogWarning("Failed to clean old logs", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.startup(ctx); err != nil {
		app.LoggerService.LogError("Startup failed", err)
		app.shutdown()
		os.Exit(1)
	}

	app.LoggerService.LogInfo("Agent running", "Press Ctrl+C to stop")
	<-ctx.Done()
	app.shutdown()
}
