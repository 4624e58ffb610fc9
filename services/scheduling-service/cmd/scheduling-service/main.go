package main

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dfalmeida/agendo/libs/config"
	"github.com/dfalmeida/agendo/libs/db"
	"github.com/dfalmeida/agendo/libs/httpx"
	"github.com/dfalmeida/agendo/libs/kafkax"
	otelx "github.com/dfalmeida/agendo/libs/otel"
	"github.com/dfalmeida/agendo/libs/runtime"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/handlers"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/history"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/outbox"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	appointmentRepo := storage.NewAppointmentRepository(pool)
	scheduleRepo := storage.NewScheduleRepository(pool)
	historyRepo := history.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	// SLOT_STEP_MINUTES overrides the default slot granularity; zero
	// means slots advance by the service duration.
	slotStep := time.Duration(config.Int("SLOT_STEP_MINUTES", 0)) * time.Minute

	bookingHandler := handlers.NewBookingHandler(appointmentRepo, scheduleRepo, historyRepo, outboxRepo, logger, slotStep)
	scheduleHandler := handlers.NewScheduleHandler(scheduleRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/appointments", dispatchByMethod(map[string]http.HandlerFunc{
		http.MethodPost: bookingHandler.Create,
		http.MethodGet:  bookingHandler.List,
	}))
	mux.HandleFunc("/api/v1/appointments/assign", bookingHandler.Assign)
	mux.HandleFunc("/api/v1/appointments/status", bookingHandler.UpdateStatus)
	mux.HandleFunc("/api/v1/appointments/history", bookingHandler.History)
	mux.HandleFunc("/api/v1/schedule/working-hours", scheduleHandler.WorkingHours)
	mux.HandleFunc("/api/v1/schedule/blocked-slots", scheduleHandler.BlockedSlots)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func dispatchByMethod(routes map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.Method]; ok {
			h(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
