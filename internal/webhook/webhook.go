// Package webhook posts terminal job outcomes to caller-supplied callback
// URLs.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
)

const (
	retryAttempts = 8
	retryBase     = time.Second
	retryCap      = 5 * time.Minute
)

// Payload is the JSON body sent to a callback URL.
type Payload struct {
	JobID      string     `json:"job_id"`
	Kind       job.Kind   `json:"kind"`
	Owner      string     `json:"owner"`
	State      job.State  `json:"state"`
	Result     string     `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func NewPayload(j job.Job) Payload {
	return Payload{
		JobID:      j.ID,
		Kind:       j.Kind,
		Owner:      j.Owner,
		State:      j.State,
		Result:     j.Result,
		Error:      j.FailureReason,
		FinishedAt: j.FinishedAt,
	}
}

type Option func(*Notifier)

// WithRetry overrides the attempt count and the backoff bounds.
func WithRetry(attempts int, base, maxDelay time.Duration) Option {
	return func(n *Notifier) {
		n.attempts, n.base, n.maxDelay = attempts, base, maxDelay
	}
}

// AllowPrivateTargets disables the private address check. Tests only.
func AllowPrivateTargets() Option {
	return func(n *Notifier) { n.validate = validateScheme }
}

// Notifier delivers callbacks asynchronously with full-jitter exponential
// backoff.
type Notifier struct {
	client   *http.Client
	logger   *slog.Logger
	attempts int
	base     time.Duration
	maxDelay time.Duration
	validate func(string) error
	wg       sync.WaitGroup

	// stopCtx is cancelled by Drain to abandon deliveries still retrying.
	stopCtx context.Context
	stop    context.CancelFunc
}

func New(logger *slog.Logger, opts ...Option) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "webhook"),
		attempts: retryAttempts,
		base:     retryBase,
		maxDelay: retryCap,
		validate: validateURL,
	}
	n.stopCtx, n.stop = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends j's outcome to j.CallbackURL in the background. Retries stop
// when ctx is cancelled or Drain gives up on them.
func (n *Notifier) Notify(ctx context.Context, j job.Job) {
	if j.CallbackURL == "" {
		return
	}
	payload, err := json.Marshal(NewPayload(j))
	if err != nil {
		n.logger.Error("webhook: encode payload", "job_id", j.ID, "error", err)
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		defer context.AfterFunc(n.stopCtx, cancel)()

		if err := n.validate(j.CallbackURL); err != nil {
			n.logger.Warn("webhook: rejected callback URL", "job_id", j.ID, "url", j.CallbackURL, "error", err)
			return
		}
		n.send(ctx, j.ID, j.CallbackURL, payload)
	}()
}

// Wait blocks until every in-flight delivery has finished.
func (n *Notifier) Wait() { n.wg.Wait() }

// Drain waits for in-flight deliveries until ctx expires, then abandons the
// rest and waits for them to return.
func (n *Notifier) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		n.stop()
		<-done
		return fmt.Errorf("draining webhooks: %w", ctx.Err())
	}
}

func validateScheme(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	return nil
}

// validateURL blocks non-HTTP schemes and private/internal IP ranges.
func validateURL(rawURL string) error {
	if err := validateScheme(rawURL); err != nil {
		return err
	}
	u, _ := url.Parse(rawURL)

	host := u.Hostname()
	ips, err := net.LookupHost(host)
	if err != nil {
		return fmt.Errorf("DNS lookup failed: %w", err)
	}

	for _, ipStr := range ips {
		ip := net.ParseIP(ipStr)
		if ip == nil {
			continue
		}
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return fmt.Errorf("private/internal IP blocked: %s", ipStr)
		}
	}

	return nil
}

func (n *Notifier) send(ctx context.Context, jobID, callbackURL string, payload []byte) {
	for attempt := 1; attempt <= n.attempts; attempt++ {
		if ctx.Err() != nil {
			n.logger.Warn("webhook: delivery abandoned", "job_id", jobID, "url", callbackURL, "attempt", attempt, "error", ctx.Err())
			return
		}
		err := post(ctx, n.client, callbackURL, payload)
		if err == nil {
			n.logger.Debug("webhook delivered", "job_id", jobID, "attempt", attempt)
			return
		}
		n.logger.Warn("webhook attempt failed", "job_id", jobID, "attempt", attempt, "url", callbackURL, "error", err)
		if attempt < n.attempts {
			select {
			case <-ctx.Done():
				n.logger.Warn("webhook: delivery abandoned", "job_id", jobID, "url", callbackURL, "attempt", attempt, "error", ctx.Err())
				return
			case <-time.After(n.jitter(attempt)):
			}
		}
	}
	n.logger.Error("webhook: all retries exhausted", "job_id", jobID, "url", callbackURL)
}

// jitter returns a random duration between 0 and min(maxDelay, base * 2^attempt).
// Full jitter prevents synchronized retries when multiple webhooks fail at the same time.
func (n *Notifier) jitter(attempt int) time.Duration {
	exp := n.base * (1 << attempt)
	if exp > n.maxDelay || exp <= 0 {
		exp = n.maxDelay
	}
	if exp <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(exp)))
}

func post(ctx context.Context, client *http.Client, callbackURL string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return nil
}
