package resilience

import (
	"context"
	"net/http"
	"time"
)

const (
	defaultProbeURL      = "https://www.gstatic.com/generate_204"
	defaultProbeInterval = 10 * time.Second
	probeTimeout         = 5 * time.Second
)

// Probe drives the retrier's online/offline state from actual reachability,
// the server-side counterpart of a browser's connectivity events.
type Probe struct {
	URL      string
	Interval time.Duration
	Client   *http.Client
}

func NewProbe() *Probe {
	return &Probe{
		URL:      defaultProbeURL,
		Interval: defaultProbeInterval,
		Client:   &http.Client{Timeout: probeTimeout},
	}
}

// Run checks reachability until ctx is cancelled, pushing transitions into
// the retrier.
func (p *Probe) Run(ctx context.Context, r *Retrier) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SetOnline(p.check(ctx))
		}
	}
}

func (p *Probe) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
