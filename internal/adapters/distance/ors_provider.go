package distance

import (
	"errors"
	"ice-route-service/internal/ports"
	"net/http"
	"strings"
	"time"
)

const (
	defaultORSBaseURL = "https://api.openrouteservice.org"
	metersPerMile     = 1609.344
)

// ORSMappingProvider implements ports.MappingProvider using OpenRouteService.
//
// It only talks to the API: caching, fallback and batching are the
// distance oracle's job. The provider is safe for concurrent use.
type ORSMappingProvider struct {
	session *http.Client
	apiKey  string
	baseURL string
	profile string
	backoff time.Duration
}

var _ ports.MappingProvider = (*ORSMappingProvider)(nil)

type ORSOption func(*ORSMappingProvider)

// WithBaseURL points the provider at a self-hosted ORS instance or a test server.
func WithBaseURL(u string) ORSOption {
	return func(o *ORSMappingProvider) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			o.baseURL = u
		}
	}
}

func WithHTTPClient(c *http.Client) ORSOption {
	return func(o *ORSMappingProvider) { o.session = c }
}

// WithProfile selects the ORS routing profile, e.g. driving-hgv for reefers.
func WithProfile(p string) ORSOption {
	return func(o *ORSMappingProvider) { o.profile = p }
}

func WithRetryBackoff(d time.Duration) ORSOption {
	return func(o *ORSMappingProvider) { o.backoff = d }
}

func NewORSMappingProvider(apiKey string, opts ...ORSOption) (*ORSMappingProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}

	provider := &ORSMappingProvider{
		session: &http.Client{Timeout: 10 * time.Second},
		apiKey:  apiKey,
		baseURL: defaultORSBaseURL,
		profile: "driving-hgv",
		backoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(provider)
	}

	return provider, nil
}
