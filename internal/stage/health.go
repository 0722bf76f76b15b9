package stage

// Health is one stage's answer to a readiness probe. Detail explains a
// stage that is not Ready.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports name as ready.
func Healthy(name string) Health { return Health{Name: name, Ready: true} }

// Unhealthy reports name as not ready because of detail.
func Unhealthy(name, detail string) Health { return Health{Name: name, Detail: detail} }
