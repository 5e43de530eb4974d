package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptorank/internal/data/cache"
	"github.com/sawpanic/cryptorank/internal/domain/regime"
	"github.com/sawpanic/cryptorank/internal/net/circuit"
	"github.com/sawpanic/cryptorank/internal/net/ratelimit"
)

const cacheKey = "sentiment:fng:latest"

// Config configures the Fear & Greed index client
type Config struct {
	Enabled   bool             `yaml:"enabled" json:"enabled" default:"true"`
	URL       string           `yaml:"url" json:"url" default:"https://api.alternative.me/fng/" validate:"omitempty,url"`
	Timeout   time.Duration    `yaml:"timeout" json:"timeout" default:"10s"`
	CacheTTL  time.Duration    `yaml:"cache_ttl" json:"cache_ttl" default:"1h"`
	RateLimit ratelimit.Config `yaml:"rate_limit" json:"rate_limit"`
	Breaker   circuit.Config   `yaml:"breaker" json:"breaker"`
}

// DefaultConfig returns the public alternative.me endpoint settings
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		URL:       "https://api.alternative.me/fng/",
		Timeout:   10 * time.Second,
		CacheTTL:  time.Hour,
		RateLimit: ratelimit.Config{RPS: 1, Burst: 2},
		Breaker:   circuit.DefaultConfig(),
	}
}

type fngResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
		Timestamp      string `json:"timestamp"`
	} `json:"data"`
}

// Provider fetches the latest Fear & Greed reading behind a rate limit,
// a circuit breaker and a cache
type Provider struct {
	client  *http.Client
	url     string
	host    string
	limiter *ratelimit.Limiter
	breaker *circuit.Breaker
	cache   cache.Cache
	ttl     time.Duration
}

// NewProvider creates a Fear & Greed client. A nil cache disables caching.
func NewProvider(cfg Config, c cache.Cache) (*Provider, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid sentiment url %q", cfg.URL)
	}
	return &Provider{
		client:  &http.Client{Timeout: cfg.Timeout},
		url:     cfg.URL,
		host:    u.Host,
		limiter: ratelimit.NewLimiter(cfg.RateLimit),
		breaker: circuit.NewBreaker("fear_greed", cfg.Breaker),
		cache:   c,
		ttl:     cfg.CacheTTL,
	}, nil
}

// Fetch returns the latest reading, from cache when fresh
func (p *Provider) Fetch(ctx context.Context) (*regime.Sentiment, error) {
	if p.cache != nil {
		if raw, ok := p.cache.Get(ctx, cacheKey); ok {
			var s regime.Sentiment
			if err := json.Unmarshal(raw, &s); err == nil {
				return &s, nil
			}
		}
	}

	if err := p.limiter.Wait(ctx, p.host); err != nil {
		return nil, fmt.Errorf("sentiment rate limit: %w", err)
	}

	var reading *regime.Sentiment
	err := p.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		reading, err = p.fetch(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch fear & greed: %w", err)
	}

	if p.cache != nil {
		if raw, err := json.Marshal(reading); err == nil {
			p.cache.Set(ctx, cacheKey, raw, p.ttl)
		}
	}
	return reading, nil
}

// Current returns the latest reading or nil when none is available; the
// regime detector treats nil as a neutral 50
func (p *Provider) Current(ctx context.Context) *regime.Sentiment {
	s, err := p.Fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("sentiment unavailable, using neutral")
		return nil
	}
	return s
}

func (p *Provider) fetch(ctx context.Context) (*regime.Sentiment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var payload fngResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("empty data")
	}

	item := payload.Data[0]
	value, err := strconv.Atoi(item.Value)
	if err != nil {
		return nil, fmt.Errorf("parse value %q: %w", item.Value, err)
	}
	if value < 0 || value > 100 {
		return nil, fmt.Errorf("value %d outside 0..100", value)
	}

	ts := time.Now().UTC()
	if sec, err := strconv.ParseInt(item.Timestamp, 10, 64); err == nil {
		ts = time.Unix(sec, 0).UTC()
	}

	log.Debug().Int("value", value).Str("classification", item.Classification).Msg("fear & greed fetched")
	return &regime.Sentiment{Value: value, Classification: item.Classification, Timestamp: ts}, nil
}
