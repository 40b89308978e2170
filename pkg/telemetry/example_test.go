package telemetry_test

import (
	"context"
	"fmt"

	"github.com/openfroyo/pluginlist/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = false

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	logger := telemetry.FromContext(ctx)
	logger.Info("Application started")

	// Output varies, no output specified
}

// Example_errorReporting demonstrates receiving codec error reports.
func Example_errorReporting() {
	events, _ := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})

	events.Subscribe(func(e telemetry.Event) {
		fmt.Printf("[%s] %s\n", e.Level, e.Message)
	}, telemetry.FilterByLevel(telemetry.EventLevelError))

	events.ReportError("Some of your plugins have invalid names!")
	_ = events.Publish(telemetry.Event{Level: telemetry.EventLevelInfo, Message: "filtered out"})

	// Output: [error] Some of your plugins have invalid names!
}
