// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/evhome/bluelink-gateway/internal/config"
	"github.com/evhome/bluelink-gateway/internal/metrics"
	"github.com/evhome/bluelink-gateway/internal/models"
)

// maxErrorBodySize limits the maximum amount of response body read for error reporting
// This prevents unbounded memory allocation when reading large error responses
const maxErrorBodySize = 64 * 1024 // 64KB

// pinHeader carries the account PIN on command paths.
const pinHeader = "X-Account-PIN"

// Operation names used in error detail and metrics labels.
const (
	opLogin         = "login"
	opCachedStatus  = "cached_status"
	opRefreshStatus = "refresh_status"
	opLock          = "lock"
	opUnlock        = "unlock"
	opClimateStart  = "climate_start"
	opClimateStop   = "climate_stop"
	opChargeStart   = "charge_start"
	opChargeStop    = "charge_stop"
	opOdometer      = "odometer"
	opLocation      = "location"
)

// readBodyForError reads the response body for error reporting (max 64KB)
// Returns the body content or a placeholder message if reading fails
// Uses io.LimitReader to prevent unbounded memory allocation
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	// If we hit the limit, indicate truncation
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// loginRequest is the account login payload.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the account login result. The vehicle list drives VIN
// selection; expires_in is the token lifetime in seconds when the access
// token is not a JWT.
type loginResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresIn   int64            `json:"expires_in"`
	Vehicles    []accountVehicle `json:"vehicles"`
}

// accountVehicle is one vehicle registered to the account.
type accountVehicle struct {
	VIN      string `json:"vin"`
	Model    string `json:"model"`
	Nickname string `json:"nickname"`
}

// HTTPClient communicates with the vehicle cloud over its JSON API.
//
// Features:
//   - Region/brand-derived base URL (BLUELINK_URL override supported)
//   - Bearer token authentication, PIN header on command paths
//   - Client-side request pacing (rate.Limiter) across all operations
//   - Automatic retry on HTTP 429 with exponential backoff and Retry-After
//   - Bounded error-body reads and sentinel error classification
//
// Thread Safety: Safe for concurrent use. Each request creates its own HTTP request.
type HTTPClient struct {
	cfg            config.UpstreamConfig
	baseURL        string
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int           // Maximum retries for rate limiting
	retryBaseDelay time.Duration // Base delay for exponential backoff
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a vehicle-cloud client from the upstream configuration.
// Zero-valued pacing and timeout fields fall back to safe defaults so direct
// construction (tests, tools) does not require a validated config.
func NewHTTPClient(cfg config.UpstreamConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPClient{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.ResolveBaseURL(), "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		limiter:        rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: 1 * time.Second, // Doubles each retry: 1s, 2s, 4s, ...
	}
}

// Login authenticates the account and returns a fresh session bound to the
// selected vehicle.
func (c *HTTPClient) Login(ctx context.Context) (*Session, error) {
	start := time.Now()
	sess, err := c.login(ctx)
	metrics.RecordUpstreamRequest(opLogin, outcomeLabel(err), time.Since(start))
	return sess, err
}

func (c *HTTPClient) login(ctx context.Context) (*Session, error) {
	body := loginRequest{Username: c.cfg.Username, Password: c.cfg.Password}

	var resp loginResponse
	if err := c.call(ctx, nil, http.MethodPost, "/v2/account/login", opLogin, body, &resp, false); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: login response missing access token", ErrNoData)
	}

	vin, err := selectVIN(c.cfg.VIN, resp.Vehicles)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Session{
		AccessToken: resp.AccessToken,
		VIN:         vin,
		CreatedAt:   now,
		ExpiresAt:   sessionExpiry(resp.AccessToken, resp.ExpiresIn, now, c.cfg.SessionTTL),
	}, nil
}

// selectVIN picks the vehicle the gateway operates on: the configured VIN
// when set, otherwise the first vehicle on the account.
func selectVIN(configured string, vehicles []accountVehicle) (string, error) {
	if len(vehicles) == 0 {
		return "", fmt.Errorf("%w: account has no vehicles", ErrUnknown)
	}
	if configured == "" {
		return vehicles[0].VIN, nil
	}
	for _, v := range vehicles {
		if strings.EqualFold(v.VIN, configured) {
			return v.VIN, nil
		}
	}
	return "", fmt.Errorf("%w: vehicle %s not registered to this account", ErrUnknown, configured)
}

// sessionExpiry estimates when the session stops being accepted upstream.
// Preference order: the access token's JWT exp claim (unverified parse -
// the gateway is a client, not the token issuer), then the login response
// expires_in, then the configured fallback TTL.
func sessionExpiry(token string, expiresIn int64, now time.Time, fallback time.Duration) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err == nil {
		if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil && exp.Time.After(now) {
			return exp.Time
		}
	}
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second)
	}
	return now.Add(fallback)
}

// CachedStatus returns the cloud's last known vehicle state without waking
// the vehicle.
func (c *HTTPClient) CachedStatus(ctx context.Context, sess *Session) (*models.VehicleStatus, error) {
	return c.vehicleStatus(ctx, sess, http.MethodGet, "/status/latest", opCachedStatus)
}

// RefreshStatus forces the vehicle to report fresh state over the cellular
// link. Slow and battery-draining; callers meter this.
func (c *HTTPClient) RefreshStatus(ctx context.Context, sess *Session) (*models.VehicleStatus, error) {
	return c.vehicleStatus(ctx, sess, http.MethodPost, "/status/refresh", opRefreshStatus)
}

func (c *HTTPClient) vehicleStatus(ctx context.Context, sess *Session, method, suffix, op string) (*models.VehicleStatus, error) {
	start := time.Now()

	var st models.VehicleStatus
	err := c.call(ctx, sess, method, c.vehiclePath(sess, suffix), op, nil, &st, false)
	if err == nil && st.RetrievedAt.IsZero() {
		// A status without a retrieval timestamp cannot participate in
		// monotonic cache ordering; treat it as absent.
		err = fmt.Errorf("%w: %s payload missing retrieved_at", ErrNoData, op)
	}

	metrics.RecordUpstreamRequest(op, outcomeLabel(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Lock locks the vehicle doors.
func (c *HTTPClient) Lock(ctx context.Context, sess *Session) error {
	return c.command(ctx, sess, "lock", opLock, nil)
}

// Unlock unlocks the vehicle doors.
func (c *HTTPClient) Unlock(ctx context.Context, sess *Session) error {
	return c.command(ctx, sess, "unlock", opUnlock, nil)
}

// StartClimate starts climate control with the given target settings.
func (c *HTTPClient) StartClimate(ctx context.Context, sess *Session, spec models.ClimateSpec) error {
	return c.command(ctx, sess, "climate/start", opClimateStart, spec)
}

// StopClimate stops climate control.
func (c *HTTPClient) StopClimate(ctx context.Context, sess *Session) error {
	return c.command(ctx, sess, "climate/stop", opClimateStop, nil)
}

// StartCharge starts EV charging.
func (c *HTTPClient) StartCharge(ctx context.Context, sess *Session) error {
	return c.command(ctx, sess, "charge/start", opChargeStart, nil)
}

// StopCharge stops EV charging.
func (c *HTTPClient) StopCharge(ctx context.Context, sess *Session) error {
	return c.command(ctx, sess, "charge/stop", opChargeStop, nil)
}

// command issues a vehicle command. Commands carry the account PIN header
// and treat any 2xx as acceptance; confirmation comes from a later refresh.
func (c *HTTPClient) command(ctx context.Context, sess *Session, suffix, op string, body interface{}) error {
	start := time.Now()
	err := c.call(ctx, sess, http.MethodPost, c.vehiclePath(sess, "/commands/"+suffix), op, body, nil, true)
	metrics.RecordUpstreamRequest(op, outcomeLabel(err), time.Since(start))
	return err
}

// Odometer reads the total distance driven in kilometers.
func (c *HTTPClient) Odometer(ctx context.Context, sess *Session) (float64, error) {
	start := time.Now()

	var odo models.Odometer
	err := c.call(ctx, sess, http.MethodGet, c.vehiclePath(sess, "/odometer"), opOdometer, nil, &odo, false)
	if err == nil && odo.RetrievedAt.IsZero() {
		err = fmt.Errorf("%w: odometer payload missing retrieved_at", ErrNoData)
	}

	metrics.RecordUpstreamRequest(opOdometer, outcomeLabel(err), time.Since(start))
	if err != nil {
		return 0, err
	}
	return odo.OdometerKm, nil
}

// Location reads the vehicle's last reported position.
func (c *HTTPClient) Location(ctx context.Context, sess *Session) (*models.Location, error) {
	start := time.Now()

	var loc models.Location
	err := c.call(ctx, sess, http.MethodGet, c.vehiclePath(sess, "/location"), opLocation, nil, &loc, false)
	if err == nil && loc.UpdatedAt.IsZero() {
		err = fmt.Errorf("%w: location payload missing last_updated_at", ErrNoData)
	}

	metrics.RecordUpstreamRequest(opLocation, outcomeLabel(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// vehiclePath builds a vehicle-scoped API path from the session's VIN.
func (c *HTTPClient) vehiclePath(sess *Session, suffix string) string {
	vin := ""
	if sess != nil {
		vin = sess.VIN
	}
	return "/v2/vehicles/" + url.PathEscape(vin) + suffix
}

// call performs one upstream operation: encode the body, run the request
// through the rate-limit loop, classify the status, decode the response.
func (c *HTTPClient) call(ctx context.Context, sess *Session, method, path, op string, body, out interface{}, withPIN bool) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: failed to encode %s request: %v", ErrUnknown, op, err)
		}
		payload = b
	}

	resp, err := c.doRequestWithRateLimit(ctx, method, c.baseURL+path, payload, sess, withPIN, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody := readBodyForError(resp.Body)
		return classifyStatus(op, resp.StatusCode, errBody)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %v", ErrNoData, op, err)
	}
	return nil
}

// doRequestWithRateLimit performs an HTTP request with automatic rate limit handling.
// Implements exponential backoff for HTTP 429 responses (1s, 2s, 4s, ...).
// The context is used for cancellation during backoff waits.
func (c *HTTPClient) doRequestWithRateLimit(ctx context.Context, method, reqURL string, body []byte, sess *Session, withPIN bool, op string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Check context before attempting request
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Client-side pacing applies to every physical request, retries included
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reqBody io.Reader = http.NoBody
		if len(body) > 0 {
			reqBody = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create %s request: %v", ErrUnknown, op, err)
		}
		req.Header.Set("Accept", "application/json")
		if len(body) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}
		if sess != nil {
			req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
		}
		if withPIN && c.cfg.PIN != "" {
			req.Header.Set(pinHeader, c.cfg.PIN)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s request failed: %v", ErrTransient, op, err)
		}

		// Anything but 429 is handed to the caller for classification
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close() // Rate limited - will retry anyway

		// Last attempt - return error
		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("%w: %s still throttled after %d retries (HTTP 429)", ErrRateLimited, op, c.maxRetries)
			break
		}

		// Calculate exponential backoff delay: 1s, 2s, 4s, ...
		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))

		// Check for Retry-After header (RFC 6585)
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			// Try parsing as seconds (integer)
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		// Use cancellable wait instead of time.Sleep
		select {
		case <-time.After(delay):
			// Continue to next attempt
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}
