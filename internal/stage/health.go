package stage

import "context"

// Checker is implemented by handlers that can verify their external
// dependencies before a sweep. An unready stage aborts the run before
// any deposit is touched.
type Checker interface {
	HealthCheck(ctx context.Context) Health
}

// Health summarizes the readiness of a pipeline stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
