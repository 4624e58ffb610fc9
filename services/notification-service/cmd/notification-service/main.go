package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dfalmeida/agendo/libs/config"
	"github.com/dfalmeida/agendo/libs/db"
	"github.com/dfalmeida/agendo/libs/httpx"
	"github.com/dfalmeida/agendo/libs/kafkax"
	otelx "github.com/dfalmeida/agendo/libs/otel"
	"github.com/dfalmeida/agendo/libs/runtime"
	"github.com/dfalmeida/agendo/services/notification-service/internal/consumer"
	"github.com/dfalmeida/agendo/services/notification-service/internal/email"
	"github.com/dfalmeida/agendo/services/notification-service/internal/inbox"
	"github.com/dfalmeida/agendo/services/notification-service/internal/storage"
	"github.com/dfalmeida/agendo/services/notification-service/internal/webhook"
)

type appointmentEvent struct {
	AppointmentID string `json:"appointment_id"`
	CompanyID     string `json:"company_id"`
	ClientID      string `json:"client_id"`
	StartTime     string `json:"start_time"`
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
}

func subjectFor(eventType string, evt appointmentEvent) (string, string) {
	switch eventType {
	case "scheduling.appointment.booked.v1":
		return "Appointment booked", fmt.Sprintf("Appointment %s was booked for %s.", evt.AppointmentID, evt.StartTime)
	case "scheduling.appointment.cancelled.v1":
		return "Appointment cancelled", fmt.Sprintf("Appointment %s was cancelled.", evt.AppointmentID)
	default:
		return "Appointment updated", fmt.Sprintf("Appointment %s moved from %s to %s.", evt.AppointmentID, evt.OldStatus, evt.NewStatus)
	}
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8084")
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

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@agendo.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)
	// Contact details live in the CRM; the ops inbox gets a copy until
	// per-client addresses arrive through the webhook channel.
	opsInbox := strings.TrimSpace(config.String("NOTIFY_OPS_EMAIL", ""))

	var webhookSender webhook.Sender
	if url := strings.TrimSpace(config.String("NOTIFY_WEBHOOK_URL", "")); url != "" {
		webhookSender = webhook.NewHTTPSender(url, config.String("NOTIFY_WEBHOOK_TOKEN", ""))
	} else {
		webhookSender = webhook.NewNoopSender()
	}

	handle := func(ctx context.Context, msg kafka.Message) error {
		eventType := kafkax.HeaderValue(msg.Headers, "event_type")
		if eventType == "" {
			eventType = msg.Topic
		}

		var evt appointmentEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if evt.AppointmentID == "" || evt.ClientID == "" {
			logger.Error("missing event fields", "topic", msg.Topic)
			return nil
		}

		status := "sent"
		if err := webhookSender.Send(ctx, eventType, msg.Value); err != nil {
			status = "failed"
			logger.Error("webhook delivery failed", "err", err, "appointment_id", evt.AppointmentID)
		}

		if opsInbox != "" {
			subject, body := subjectFor(eventType, evt)
			if err := emailSender.Send(opsInbox, subject, body); err != nil {
				logger.Error("ops email failed", "err", err, "appointment_id", evt.AppointmentID)
			}
		}

		if err := notificationsRepo.Insert(ctx, storage.Notification{
			AppointmentID: evt.AppointmentID,
			CompanyID:     evt.CompanyID,
			ClientID:      evt.ClientID,
			Kind:          eventType,
			Channel:       webhookSender.ProviderID(),
			Payload:       msg.Value,
			Status:        status,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
			return err
		}

		logger.Info("event processed", "appointment_id", evt.AppointmentID, "event_type", eventType, "status", status)
		return nil
	}

	startConsumer := func(topic string) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topic:   topic,
		}, handle)
		go eventConsumer.Run(ctx)
	}
	startConsumer(config.String("KAFKA_TOPIC_BOOKED", "scheduling.appointment.booked.v1"))
	startConsumer(config.String("KAFKA_TOPIC_STATUS_CHANGED", "scheduling.appointment.status_changed.v1"))
	startConsumer(config.String("KAFKA_TOPIC_CANCELLED", "scheduling.appointment.cancelled.v1"))

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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
