package main

import (
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/openfield/gatepass/pkg/config"
	"github.com/openfield/gatepass/pkg/events"
	"github.com/openfield/gatepass/pkg/logger"
	mw "github.com/openfield/gatepass/pkg/middleware"
)

// The notify worker consumes domain events off NATS and surfaces them as an
// operations feed. It is side-effect only: the API never waits on it, and
// pass-issued email is sent by the API itself at registration time.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	subscriptions := map[string]func(*events.Message){
		events.AttendeeRegistered: onAttendeeRegistered,
		events.CheckinRecorded:    onCheckinRecorded,
		events.CheckinBatchSynced: onBatchSynced,
		events.ScannerLoggedIn:    onScannerLogin,
	}
	for subject, handler := range subscriptions {
		if err := eventBus.QueueSubscribe(subject, "notify", handler); err != nil {
			logger.Error("Failed to subscribe", "subject", subject, "error", err)
			os.Exit(1)
		}
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("gatepass-notify"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	srv := &http.Server{Addr: ":8086", Handler: r}
	go func() {
		logger.Info("Starting notify worker", "port", "8086")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Notify worker error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down notify worker...")
	_ = srv.Close()
}

func onAttendeeRegistered(msg *events.Message) {
	var evt events.AttendeeRegisteredEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		logger.Error("Malformed registration event", "error", err)
		return
	}

	logger.Info("Attendee registered",
		"entry_id", evt.EntryID,
		"name", evt.Name,
		"passes", evt.PassTypes,
	)
}

func onCheckinRecorded(msg *events.Message) {
	var evt events.CheckinRecordedEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		logger.Error("Malformed check-in event", "error", err)
		return
	}

	logger.Info("Check-in recorded",
		"entry_id", evt.EntryID,
		"pass_type", evt.PassType,
		"gate", evt.GateNumber,
		"operator", evt.Operator,
	)
}

func onBatchSynced(msg *events.Message) {
	var evt events.CheckinBatchSyncedEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		logger.Error("Malformed batch sync event", "error", err)
		return
	}

	logger.Info("Device batch synced",
		"device_id", evt.DeviceID,
		"total", evt.Total,
		"recorded", evt.Recorded,
		"duplicates", evt.Duplicates,
		"errors", evt.Errors,
	)
}

func onScannerLogin(msg *events.Message) {
	var evt events.ScannerLoggedInEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		logger.Error("Malformed scanner login event", "error", err)
		return
	}

	logger.Info("Scanner shift started",
		"operator", evt.Operator,
		"gate", evt.GateNumber,
		"device_id", evt.DeviceID,
	)
}
