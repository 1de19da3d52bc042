package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/objcatalog/internal/server/metrics"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe checks one dependency. Name doubles as the health service name and
// the component label of the up gauge.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// probeTimeout bounds each probe run.
var probeTimeout = 5 * time.Second

// Watch runs every probe immediately and then once per interval until ctx is
// done. The overall service ("") is SERVING only while all probes pass.
func (s *GRPCServer) Watch(ctx context.Context, interval time.Duration, probes ...Probe) {
	s.runProbes(ctx, probes)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runProbes(ctx, probes)
		}
	}
}

func (s *GRPCServer) runProbes(ctx context.Context, probes []Probe) {
	overall := healthpb.HealthCheckResponse_SERVING

	for _, p := range probes {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := p.Check(pctx)
		cancel()

		st := healthpb.HealthCheckResponse_SERVING
		up := 1.0
		if err != nil {
			s.logger.Warn(ctx, "probe failed", "component", p.Name, "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
			up = 0
		}
		s.health.SetServingStatus(p.Name, st)
		metrics.ComponentUp.WithLabelValues(p.Name).Set(up)
	}

	s.health.SetServingStatus("", overall)
}
