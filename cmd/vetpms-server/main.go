package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vetpms/vetpms/internal/config"
	"github.com/vetpms/vetpms/internal/domain/appointment"
	"github.com/vetpms/vetpms/internal/domain/client"
	"github.com/vetpms/vetpms/internal/domain/document"
	"github.com/vetpms/vetpms/internal/domain/inventory"
	"github.com/vetpms/vetpms/internal/domain/invoice"
	"github.com/vetpms/vetpms/internal/domain/patient"
	"github.com/vetpms/vetpms/internal/domain/portal"
	"github.com/vetpms/vetpms/internal/domain/prescription"
	"github.com/vetpms/vetpms/internal/domain/protocol"
	"github.com/vetpms/vetpms/internal/domain/reminder"
	"github.com/vetpms/vetpms/internal/domain/staff"
	"github.com/vetpms/vetpms/internal/domain/visit"
	"github.com/vetpms/vetpms/internal/platform/auth"
	"github.com/vetpms/vetpms/internal/platform/blobstore"
	"github.com/vetpms/vetpms/internal/platform/db"
	"github.com/vetpms/vetpms/internal/platform/jobs"
	"github.com/vetpms/vetpms/internal/platform/middleware"
)

// visitInvoiceAdapter adapts the invoice service to the visit.InvoiceCreator
// interface, avoiding a circular import between the visit and invoice
// packages.
type visitInvoiceAdapter struct {
	invoices *invoice.Service
}

func (a *visitInvoiceAdapter) CreateDraftForVisit(ctx context.Context, clientID, visitID uuid.UUID, lines []visit.InvoiceLine) (uuid.UUID, error) {
	inv := &invoice.Invoice{
		ClientID: clientID,
		VisitID:  &visitID,
	}
	for _, l := range lines {
		inv.Items = append(inv.Items, &invoice.Item{
			ProductID:      l.ProductID,
			Description:    l.Description,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
			Taxable:        l.Taxable,
		})
	}
	if err := a.invoices.CreateDraft(ctx, inv); err != nil {
		return uuid.Nil, err
	}
	return inv.ID, nil
}

// invoiceStockAdapter lets the invoice service decrement stock through the
// inventory service, translating the shortage error into the invoice
// package's own sentinel.
type invoiceStockAdapter struct {
	inventory *inventory.Service
}

func (a *invoiceStockAdapter) DispenseForInvoice(ctx context.Context, productID uuid.UUID, qty float64, invoiceID uuid.UUID) error {
	err := a.inventory.DispenseForInvoice(ctx, productID, qty, invoiceID)
	if errors.Is(err, inventory.ErrInsufficientStock) {
		return invoice.ErrInsufficientStock
	}
	return err
}

// prescriptionStockAdapter does the same for prescription fills.
type prescriptionStockAdapter struct {
	inventory *inventory.Service
}

func (a *prescriptionStockAdapter) DispensableProduct(ctx context.Context, id uuid.UUID) (bool, error) {
	return a.inventory.DispensableProduct(ctx, id)
}

func (a *prescriptionStockAdapter) DispenseForPrescription(ctx context.Context, productID uuid.UUID, qty float64, prescriptionID uuid.UUID) error {
	err := a.inventory.DispenseForPrescription(ctx, productID, qty, prescriptionID)
	if errors.Is(err, inventory.ErrInsufficientStock) {
		return prescription.ErrInsufficientStock
	}
	return err
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "vetpms-server",
		Short: "Veterinary practice management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(staffCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func staffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account (use for the first admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			role, _ := cmd.Flags().GetString("role")
			password, _ := cmd.Flags().GetString("password")
			if email == "" || name == "" || password == "" {
				return fmt.Errorf("--email, --name and --password are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			sessions := auth.NewPGSessionStoreFromPool(pool)
			svc := staff.NewService(staff.NewRepoPG(pool), sessions,
				time.Duration(cfg.SessionTTLHours)*time.Hour)

			u := &staff.User{Email: email, FullName: name, Role: role}
			if err := svc.Create(ctx, u, password); err != nil {
				return err
			}
			fmt.Printf("Created %s account %s (%s)\n", u.Role, u.Email, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("email", "", "Login email")
	createCmd.Flags().String("name", "", "Full name")
	createCmd.Flags().String("role", auth.RoleAdmin, "Role: admin, veterinarian, technician or receptionist")
	createCmd.Flags().String("password", "", "Initial password")

	cmd.AddCommand(createCmd)
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Sanitize())
	e.Use(middleware.BodyLimit("1M", fmt.Sprintf("%dM", cfg.MaxUploadMB)))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(middleware.Audit(logger))

	// Health check
	e.GET("/healthz", db.HealthHandler(pool))

	// Repositories and services
	clientSvc := client.NewService(client.NewRepoPG(pool))
	patientSvc := patient.NewService(patient.NewRepoPG(pool))
	apptSvc := appointment.NewService(appointment.NewRepoPG(pool))
	visitSvc := visit.NewService(visit.NewRepoPG(pool))
	invoiceSvc := invoice.NewService(invoice.NewRepoPG(pool), cfg.TaxRate)
	inventorySvc := inventory.NewService(inventory.NewRepoPG(pool))
	rxSvc := prescription.NewService(prescription.NewRepoPG(pool),
		&prescriptionStockAdapter{inventory: inventorySvc})
	protocolSvc := protocol.NewService(protocol.NewRepoPG(pool))
	reminderSvc := reminder.NewService(reminder.NewRepoPG(pool))

	blobs := blobstore.NewPGStore(pool, cfg.MaxUploadMB*1024*1024)
	documentSvc := document.NewService(document.NewRepoPG(pool), blobs)

	sessions := auth.NewPGSessionStoreFromPool(pool)
	staffSvc := staff.NewService(staff.NewRepoPG(pool), sessions,
		time.Duration(cfg.SessionTTLHours)*time.Hour)

	portalSvc := portal.NewService(portal.NewRepoPG(pool),
		clientSvc, patientSvc, apptSvc, invoiceSvc, rxSvc,
		[]byte(cfg.PortalJWTSecret), time.Duration(cfg.PortalTTLHours)*time.Hour)

	// Cross-domain hooks
	patientSvc.SetReminderScheduler(reminderSvc)
	visitSvc.SetWeightRecorder(patientSvc)
	visitSvc.SetInvoiceCreator(&visitInvoiceAdapter{invoices: invoiceSvc})
	invoiceSvc.SetStockDispenser(&invoiceStockAdapter{inventory: inventorySvc})

	// Rate limiting
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	loginLimiter := middleware.RateLimit(middleware.LoginRateLimitConfig(int(cfg.LoginRPM)))

	// Staff API: cookie-session auth, login on a separate throttled group.
	staffHandler := staff.NewHandler(staffSvc, []byte(cfg.SessionSecret), cfg.IsProduction())
	staffHandler.RegisterAuthRoutes(e.Group("/api/v1", loginLimiter))

	api := e.Group("/api/v1")
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(auth.StaffSession(sessions, []byte(cfg.SessionSecret)))

	staffHandler.RegisterRoutes(api)
	client.NewHandler(clientSvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	appointment.NewHandler(apptSvc).RegisterRoutes(api)
	visit.NewHandler(visitSvc).RegisterRoutes(api)
	invoice.NewHandler(invoiceSvc).RegisterRoutes(api)
	inventory.NewHandler(inventorySvc).RegisterRoutes(api)
	prescription.NewHandler(rxSvc).RegisterRoutes(api)
	document.NewHandler(documentSvc).RegisterRoutes(api)
	protocol.NewHandler(protocolSvc).RegisterRoutes(api)
	reminder.NewHandler(reminderSvc).RegisterRoutes(api)

	// Client portal: bearer-token auth, its own route space.
	portalHandler := portal.NewHandler(portalSvc)
	portalHandler.RegisterStaffRoutes(api)
	portalHandler.RegisterPublicRoutes(e.Group("/api/v1/portal", loginLimiter))

	ownerAPI := e.Group("/api/v1/portal")
	ownerAPI.Use(middleware.RateLimit(rateLimitCfg))
	ownerAPI.Use(auth.PortalJWT([]byte(cfg.PortalJWTSecret)))
	portalHandler.RegisterPortalRoutes(ownerAPI)

	// Background sweeps
	sweepEvery := time.Duration(cfg.ReminderMinutes) * time.Minute
	worker := jobs.NewWorker(logger)
	worker.Register("reminders-due", sweepEvery, reminderSvc.MarkDue)
	worker.Register("prescriptions-expired", sweepEvery, rxSvc.MarkExpired)
	worker.Register("sessions-expired", time.Hour, sessions.DeleteExpired)
	if err := worker.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start background worker")
	}
	defer worker.Stop()

	// Serve until interrupted
	go func() {
		addr := ":" + cfg.Port
		var err error
		if cfg.TLSEnabled {
			logger.Info().Str("addr", addr).Msg("starting server with TLS")
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			logger.Info().Str("addr", addr).Msg("starting server")
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
