// Package telemetry provides observability for pluginctl.
//
// It bundles structured logging (zerolog), tracing (OpenTelemetry), metrics
// (Prometheus) and a user-facing event publisher.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	codec := plugins.NewGamePlugins(games.Fallout4, textcodec.Local(), tel.Events,
//	    tel.Logger.Zerolog(), tel.CodecOptions()...)
//
// # Events
//
// The EventPublisher is the user-visible reporting channel of the plugin list codec.
// Errors reported by the codec (for example plugins whose names cannot be written in
// the game's code page) arrive as "error" events; committed writes and reads arrive as
// info events:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Fprintln(os.Stderr, e.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
//
// # Metrics
//
//   - pluginlist_manifest_writes_total{result}
//   - pluginlist_manifest_reads_total{result}
//   - pluginlist_invalid_plugin_names_total
//   - pluginlist_active_plugins
//   - pluginlist_listed_plugins
//
// Metrics are exposed via HTTP at /metrics when the server is started.
//
// # Tracing
//
// Reads and writes run inside "plugins.read" and "plugins.write" spans. Supported
// exporters are "stdout", "otlp" (gRPC) and "none".
package telemetry
