package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	cataloghandler "github.com/medstock/medstock-backend/internal/catalog/handler"
	catalogrepo "github.com/medstock/medstock-backend/internal/catalog/repository"
	identityevents "github.com/medstock/medstock-backend/internal/identity/events"
	identityhandler "github.com/medstock/medstock-backend/internal/identity/handler"
	"github.com/medstock/medstock-backend/internal/identity/jwt"
	identityrepo "github.com/medstock/medstock-backend/internal/identity/repository"
	identityservice "github.com/medstock/medstock-backend/internal/identity/service"
	recordsevents "github.com/medstock/medstock-backend/internal/records/events"
	recordshandler "github.com/medstock/medstock-backend/internal/records/handler"
	recordsrepo "github.com/medstock/medstock-backend/internal/records/repository"
	recordsservice "github.com/medstock/medstock-backend/internal/records/service"
	reportshandler "github.com/medstock/medstock-backend/internal/reports/handler"
	reportsservice "github.com/medstock/medstock-backend/internal/reports/service"
	stockevents "github.com/medstock/medstock-backend/internal/stock/events"
	stockhandler "github.com/medstock/medstock-backend/internal/stock/handler"
	stockrepo "github.com/medstock/medstock-backend/internal/stock/repository"
	stockservice "github.com/medstock/medstock-backend/internal/stock/service"
	"github.com/medstock/medstock-backend/pkg/config"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/messaging"
	"github.com/medstock/medstock-backend/pkg/permissions"
	"github.com/medstock/medstock-backend/pkg/principal"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("medstock-server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("medstock-server", cfg.Server.Environment)
	log.Info().Msg("starting MedStock server")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publishers
	stockPublisher, err := stockevents.NewStockEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create stock event publisher")
	}
	recordsPublisher, err := recordsevents.NewRecordsEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create records event publisher")
	}
	identityPublisher, err := identityevents.NewIdentityEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create identity event publisher")
	}

	// Initialize repositories
	userRepo := identityrepo.NewUserRepository(db)
	medicationRepo := catalogrepo.NewMedicationRepository(db)
	lotRepo := stockrepo.NewLotRepository(db)
	movementRepo := stockrepo.NewMovementRepository(db)
	patientRepo := recordsrepo.NewPatientRepository(db)
	appointmentRepo := recordsrepo.NewAppointmentRepository(db)
	prescriptionRepo := recordsrepo.NewPrescriptionRepository(db)

	// Initialize services
	jwtManager := jwt.NewManager(&cfg.JWT)
	userService := identityservice.NewUserService(userRepo, jwtManager, identityPublisher, log)
	ledgerService := stockservice.NewLedgerService(db, lotRepo, movementRepo, medicationRepo, stockPublisher, log)
	estimator := stockservice.NewEstimator(lotRepo, movementRepo, medicationRepo, log)
	alertService := stockservice.NewAlertService(lotRepo, medicationRepo, estimator, stockPublisher, log)
	patientService := recordsservice.NewPatientService(patientRepo, log)
	appointmentService := recordsservice.NewAppointmentService(appointmentRepo, patientRepo, userRepo, recordsPublisher, log)
	prescriptionService := recordsservice.NewPrescriptionService(db, prescriptionRepo, patientRepo, lotRepo, ledgerService, recordsPublisher, log)
	reportService := reportsservice.NewReportService(patientRepo, appointmentRepo, prescriptionRepo, medicationRepo, lotRepo, movementRepo, log)

	// Provision the bootstrap administrator if no administrator exists
	bootstrapCtx := principal.WithPrincipal(context.Background(), principal.System())
	if err := userService.EnsureDefaultAdmin(bootstrapCtx, &cfg.Bootstrap); err != nil {
		log.Fatal().Err(err).Msg("failed to provision bootstrap administrator")
	}

	// Initialize handlers
	authHandler := identityhandler.NewAuthHandler(userService, log)
	userHandler := identityhandler.NewUserHandler(userService, log)
	medicationHandler := cataloghandler.NewMedicationHandler(medicationRepo, log)
	lotHandler := stockhandler.NewLotHandler(ledgerService, log)
	movementHandler := stockhandler.NewMovementHandler(ledgerService, log)
	forecastHandler := stockhandler.NewForecastHandler(estimator, alertService, log)
	patientHandler := recordshandler.NewPatientHandler(patientService, appointmentService, prescriptionService, log)
	appointmentHandler := recordshandler.NewAppointmentHandler(appointmentService, log)
	prescriptionHandler := recordshandler.NewPrescriptionHandler(prescriptionService, log)
	reportHandler := reportshandler.NewReportHandler(reportService, log)

	table := permissions.NewTable()
	authenticate := identityhandler.Authenticator(jwtManager)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "medstock-server",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// Public auth routes
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/me", authHandler.Me)
			r.Post("/change-password", authHandler.ChangePassword)
		})
	})

	// Authenticated API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticate)

		// User management
		r.Route("/users", func(r chi.Router) {
			r.With(httputil.RequirePermission(table, permissions.ResourceUsers, permissions.ActionView)).
				Get("/", userHandler.List)
			r.With(httputil.RequirePermission(table, permissions.ResourceUsers, permissions.ActionCreate)).
				Post("/", userHandler.Create)
			r.With(httputil.RequirePermission(table, permissions.ResourceUsers, permissions.ActionView)).
				Get("/doctors", userHandler.ListDoctors)
			r.With(httputil.RequirePermission(table, permissions.ResourceUsers, permissions.ActionView)).
				Get("/{id}", userHandler.Get)
			r.With(httputil.RequirePermission(table, permissions.ResourceUsers, permissions.ActionEdit)).
				Put("/{id}", userHandler.Update)
			r.With(httputil.RequirePermission(table, permissions.ResourceUsers, permissions.ActionEdit)).
				Put("/{id}/role", userHandler.ChangeRole)
			r.With(httputil.RequirePermission(table, permissions.ResourceUsers, permissions.ActionDelete)).
				Delete("/{id}", userHandler.Deactivate)
		})

		// Medication catalog
		r.Route("/medications", func(r chi.Router) {
			r.With(httputil.RequirePermission(table, permissions.ResourceMedications, permissions.ActionView)).
				Get("/", medicationHandler.List)
			r.With(httputil.RequirePermission(table, permissions.ResourceMedications, permissions.ActionCreate)).
				Post("/", medicationHandler.Create)
			r.With(httputil.RequirePermission(table, permissions.ResourceMedications, permissions.ActionView)).
				Get("/{id}", medicationHandler.Get)
			r.With(httputil.RequirePermission(table, permissions.ResourceMedications, permissions.ActionEdit)).
				Put("/{id}", medicationHandler.Update)
			r.With(httputil.RequirePermission(table, permissions.ResourceMedications, permissions.ActionDelete)).
				Delete("/{id}", medicationHandler.Delete)
			r.With(httputil.RequirePermission(table, permissions.ResourceStock, permissions.ActionView)).
				Get("/{id}/movements", movementHandler.ListByMedication)
			r.With(httputil.RequirePermission(table, permissions.ResourceStock, permissions.ActionView)).
				Get("/{id}/forecast", forecastHandler.Project)
		})

		// Stock
		r.Route("/stock", func(r chi.Router) {
			r.Route("/lots", func(r chi.Router) {
				r.With(httputil.RequirePermission(table, permissions.ResourceStock, permissions.ActionView)).
					Get("/", lotHandler.List)
				r.With(httputil.RequirePermission(table, permissions.ResourceStock, permissions.ActionCreate)).
					Post("/", lotHandler.Receive)
				r.With(httputil.RequirePermission(table, permissions.ResourceStock, permissions.ActionView)).
					Get("/{id}", lotHandler.Get)
				r.With(httputil.RequirePermission(table, permissions.ResourceStock, permissions.ActionEdit)).
					Post("/{id}/movements", movementHandler.Apply)
				r.With(httputil.RequirePermission(table, permissions.ResourceStock, permissions.ActionView)).
					Get("/{id}/movements", movementHandler.ListByLot)
			})

			r.With(httputil.RequirePermission(table, permissions.ResourceStock, permissions.ActionView)).
				Get("/alerts", forecastHandler.Alerts)
		})

		// Patients
		r.Route("/patients", func(r chi.Router) {
			r.With(httputil.RequirePermission(table, permissions.ResourcePatients, permissions.ActionView)).
				Get("/", patientHandler.List)
			r.With(httputil.RequirePermission(table, permissions.ResourcePatients, permissions.ActionCreate)).
				Post("/", patientHandler.Create)
			r.With(httputil.RequirePermission(table, permissions.ResourcePatients, permissions.ActionView)).
				Get("/{id}", patientHandler.Get)
			r.With(httputil.RequirePermission(table, permissions.ResourcePatients, permissions.ActionEdit)).
				Put("/{id}", patientHandler.Update)
			r.With(httputil.RequirePermission(table, permissions.ResourcePatients, permissions.ActionDelete)).
				Delete("/{id}", patientHandler.Delete)
			r.With(httputil.RequirePermission(table, permissions.ResourceAppointments, permissions.ActionView)).
				Get("/{id}/appointments", patientHandler.Appointments)
			r.With(httputil.RequirePermission(table, permissions.ResourcePrescriptions, permissions.ActionView)).
				Get("/{id}/prescriptions", patientHandler.Prescriptions)
		})

		// Appointments
		r.Route("/appointments", func(r chi.Router) {
			r.With(httputil.RequirePermission(table, permissions.ResourceAppointments, permissions.ActionView)).
				Get("/agenda", appointmentHandler.Agenda)
			r.With(httputil.RequirePermission(table, permissions.ResourceAppointments, permissions.ActionCreate)).
				Post("/", appointmentHandler.Schedule)
			r.With(httputil.RequirePermission(table, permissions.ResourceAppointments, permissions.ActionView)).
				Get("/{id}", appointmentHandler.Get)
			r.With(httputil.RequirePermission(table, permissions.ResourceAppointments, permissions.ActionEdit)).
				Put("/{id}", appointmentHandler.Update)
			r.With(httputil.RequirePermission(table, permissions.ResourceAppointments, permissions.ActionEdit)).
				Put("/{id}/status", appointmentHandler.Transition)
		})

		// Prescriptions
		r.Route("/prescriptions", func(r chi.Router) {
			r.With(httputil.RequirePermission(table, permissions.ResourcePrescriptions, permissions.ActionView)).
				Get("/pending", prescriptionHandler.ListPending)
			r.With(httputil.RequirePermission(table, permissions.ResourcePrescriptions, permissions.ActionCreate)).
				Post("/", prescriptionHandler.Issue)
			r.With(httputil.RequirePermission(table, permissions.ResourcePrescriptions, permissions.ActionView)).
				Get("/{id}", prescriptionHandler.Get)
			r.With(httputil.RequirePermission(table, permissions.ResourcePrescriptions, permissions.ActionEdit)).
				Post("/{id}/cancel", prescriptionHandler.Cancel)
			r.With(httputil.RequirePermission(table, permissions.ResourcePrescriptions, permissions.ActionDispense)).
				Post("/{id}/dispense", prescriptionHandler.Dispense)
		})

		// Reports
		r.Route("/reports", func(r chi.Router) {
			r.Use(httputil.RequirePermission(table, permissions.ResourceReports, permissions.ActionView))
			r.Get("/dashboard", reportHandler.Dashboard)
			r.Get("/expiring-lots", reportHandler.ExpiringLots)
			r.Get("/movements", reportHandler.Movements)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
