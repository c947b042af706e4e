package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/chaz8081/sensorprov/internal/config"
	"github.com/chaz8081/sensorprov/internal/telemetry"
)

// WatchCmd streams telemetry for one device until interrupted.
type WatchCmd struct {
	Device string        `arg:"" help:"Device id as used in the telemetry topic."`
	Bucket time.Duration `help:"Print per-window averages on exit (e.g. 1m)."`
	Count  int           `help:"Stop after this many readings (0 = until interrupted)."`
}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config) error {
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("watch: mqtt.broker is not configured")
	}

	mgr := telemetry.NewManager(telemetry.Options{
		Broker:      cfg.MQTT.Broker,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	})
	defer mgr.Disconnect()

	readings, err := mgr.Connect(ctx, c.Device)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", telemetry.Topic(cfg.MQTT.TopicPrefix, c.Device))

	collected := collect(ctx, readings, c.Count, func(r telemetry.Reading) {
		fmt.Fprintln(os.Stdout, formatReading(r))
	})

	if c.Bucket > 0 {
		printBuckets(os.Stdout, telemetry.Bucket(collected, c.Bucket))
	}
	return nil
}

// collect drains readings until ctx ends, the channel closes or limit
// readings (if > 0) have arrived.
func collect(ctx context.Context, readings <-chan telemetry.Reading, limit int, each func(telemetry.Reading)) []telemetry.Reading {
	var out []telemetry.Reading
	for {
		select {
		case <-ctx.Done():
			return out
		case r, ok := <-readings:
			if !ok {
				return out
			}
			out = append(out, r)
			each(r)
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
}

func formatReading(r telemetry.Reading) string {
	var b strings.Builder
	b.WriteString(r.Timestamp.Local().Format("15:04:05"))
	for _, m := range telemetry.Metrics {
		if v, ok := r.Value(m); ok {
			fmt.Fprintf(&b, "  %s=%g", m, v)
		}
	}
	return b.String()
}

func printBuckets(w io.Writer, points []telemetry.Point) {
	if len(points) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, p := range points {
		metrics := make([]string, 0, len(p.Values))
		for m := range p.Values {
			metrics = append(metrics, string(m))
		}
		sort.Strings(metrics)

		fmt.Fprintf(w, "%s (%d)", p.Start.Local().Format("15:04:05"), p.Samples)
		for _, m := range metrics {
			fmt.Fprintf(w, "  %s=%.1f", m, p.Values[telemetry.Metric(m)])
		}
		fmt.Fprintln(w)
	}
}
