package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/insilicare/postmarket/internal/config"
	"github.com/insilicare/postmarket/internal/model"
)

var (
	// ErrInvalidRequest marks payloads rejected before any network call.
	ErrInvalidRequest = errors.New("invalid prediction request")

	// ErrBadResponse marks responses that decoded to something other than
	// the documented contract. Never retried.
	ErrBadResponse = errors.New("malformed prediction response")

	// ErrUnavailable is returned once the bounded retries are exhausted.
	// The affected record is marked failed, not the whole run.
	ErrUnavailable = errors.New("prediction service unavailable")
)

// Interval is the predicted 5th/95th percentile glucose bounds.
type Interval struct {
	Low  float64 `json:"BG5TH"`
	High float64 `json:"BG95TH"`
}

// Client calls the STAR validation endpoint. Outbound calls are rate
// limited and guarded by a circuit breaker; transient failures are retried
// with exponential backoff up to the configured attempt count.
type Client struct {
	url        string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	horizon    time.Duration
}

// New builds a client from the predictor configuration.
func New(cfg config.PredictorConfig) *Client {
	maxFailures := uint32(cfg.BreakerMaxFailures)

	settings := gobreaker.Settings{
		Name:     "star-api",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	}

	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		breaker:    gobreaker.NewCircuitBreaker(settings),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay(),
		horizon:    cfg.Horizon(),
	}
}

// Predict requests the glucose bounds at the given instant. The patient
// payload is forwarded verbatim as decoded from disk.
func (c *Client) Predict(ctx context.Context, p *model.Patient, at time.Time) (Interval, error) {
	if err := c.validate(p, at); err != nil {
		return Interval{}, err
	}

	payload, err := json.Marshal(struct {
		Patient        json.RawMessage `json:"patient"`
		PredictionTime int64           `json:"predictionTime"`
	}{
		Patient:        p.Raw(),
		PredictionTime: at.UnixMilli(),
	})
	if err != nil {
		return Interval{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryDelay * time.Duration(1<<(attempt-1))
			log.Debug().
				Str("hospital_id", p.HospitalID).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("retrying prediction request")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Interval{}, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return Interval{}, err
		}

		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.post(ctx, payload)
		})
		if err == nil {
			return out.(Interval), nil
		}
		if errors.Is(err, ErrBadResponse) {
			return Interval{}, err
		}
		lastErr = err
	}

	return Interval{}, fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, c.maxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, payload []byte) (Interval, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Interval{}, fmt.Errorf("build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Interval{}, fmt.Errorf("prediction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return Interval{}, fmt.Errorf("prediction request returned status %d", resp.StatusCode)
	}

	var body struct {
		Low  *float64 `json:"BG5TH"`
		High *float64 `json:"BG95TH"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Interval{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if body.Low == nil || body.High == nil {
		return Interval{}, fmt.Errorf("%w: missing BG5TH/BG95TH", ErrBadResponse)
	}
	return Interval{Low: *body.Low, High: *body.High}, nil
}

// validate enforces the endpoint's documented preconditions so obviously
// broken payloads never consume an API call.
func (c *Client) validate(p *model.Patient, at time.Time) error {
	if p.HospitalID == "" {
		return fmt.Errorf("%w: missing hospitalID", ErrInvalidRequest)
	}
	if len(p.Episodes) == 0 {
		return fmt.Errorf("%w: patient has no episodes", ErrInvalidRequest)
	}
	episode := &p.Episodes[0]
	for _, field := range []string{"bloodGlucose", "insulinInfusion", "nutritionInfusion"} {
		if !episode.HasField(field) {
			return fmt.Errorf("%w: episode missing %s", ErrInvalidRequest, field)
		}
	}

	anchor := p.Anchor()
	if at.Before(anchor) {
		return fmt.Errorf("%w: prediction time %s before updateTime %s", ErrInvalidRequest, at, anchor)
	}
	if at.After(anchor.Add(c.horizon)) {
		return fmt.Errorf("%w: prediction time %s beyond %s horizon", ErrInvalidRequest, at, c.horizon)
	}
	return nil
}
