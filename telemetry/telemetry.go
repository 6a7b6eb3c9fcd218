package telemetry

import (
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Recorder stores measurements, e.g. door events or sensor readings.
type Recorder interface {
	Record(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
	Close()
}

// NopRecorder drops everything.
type NopRecorder struct{}

func (NopRecorder) Record(string, map[string]string, map[string]any, time.Time) {}
func (NopRecorder) Close()                                                       {}

// InfluxRecorder writes points to InfluxDB with the batching write API.
// Write errors are logged, never returned to the caller.
type InfluxRecorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

func NewInfluxRecorder(url, token, org, bucket string) *InfluxRecorder {
	client := influxdb2.NewClientWithOptions(url, token,
		influxdb2.DefaultOptions().SetBatchSize(50).SetFlushInterval(1000))
	writeAPI := client.WriteAPI(org, bucket)
	go func() {
		for err := range writeAPI.Errors() {
			slog.Error("Writing to InfluxDB failed", "error", err)
		}
	}()
	slog.Info("Recording telemetry", "url", url, "org", org, "bucket", bucket)
	return &InfluxRecorder{client: client, writeAPI: writeAPI}
}

func (s *InfluxRecorder) Record(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	s.writeAPI.WritePoint(influxdb2.NewPoint(measurement, tags, fields, ts))
}

// Close flushes pending points and releases the client.
func (s *InfluxRecorder) Close() {
	s.writeAPI.Flush()
	s.client.Close()
}
