// Package verifier checks the authenticity of Alexa requests.
//
// Alexa signs every request body with a certificate hosted on Amazon S3. The
// AlexaVerifier downloads and validates that certificate chain, checks the
// body signature, and rejects requests whose timestamp is too far from now.
package verifier

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // Alexa signs with SHA-1.
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/webcomputing/assistant-alexa/internal/port/outbound"
)

// Sentinel errors. Verify wraps one of them with the concrete cause.
var (
	ErrInvalidCertURL = errors.New("invalid signature certificate url")
	ErrCertificate    = errors.New("invalid signing certificate")
	ErrSignature      = errors.New("invalid request signature")
	ErrTimestamp      = errors.New("request timestamp out of tolerance")
)

const (
	certHost      = "s3.amazonaws.com"
	certPathPref  = "/echo.api/"
	certSAN       = "echo-api.amazon.com"
	maxChainBytes = 1 << 20

	// DefaultTimeout bounds a certificate download.
	DefaultTimeout = 5 * time.Second
	// DefaultTolerance is the maximum age of a request timestamp.
	DefaultTolerance = 150 * time.Second

	meterName = "github.com/webcomputing/assistant-alexa/verifier"
)

// AlexaVerifier verifies Alexa request signatures. It is safe for concurrent
// use; downloaded certificate chains are cached until the leaf expires.
type AlexaVerifier struct {
	client    *http.Client
	roots     *x509.CertPool
	now       func() time.Time
	tolerance time.Duration
	logger    *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[uint64]*chain

	fetches       metric.Int64Counter
	verifications metric.Int64Counter
}

type chain struct {
	url  string
	leaf *x509.Certificate
}

// Option configures an AlexaVerifier.
type Option func(*AlexaVerifier)

// WithHTTPClient sets the client used to download certificate chains.
func WithHTTPClient(c *http.Client) Option {
	return func(v *AlexaVerifier) { v.client = c }
}

// WithTimeout sets the certificate download timeout.
func WithTimeout(d time.Duration) Option {
	return func(v *AlexaVerifier) {
		if d > 0 {
			v.client = &http.Client{Timeout: d}
		}
	}
}

// WithRoots replaces the system trust store. Used by tests with a private CA.
func WithRoots(pool *x509.CertPool) Option {
	return func(v *AlexaVerifier) { v.roots = pool }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *AlexaVerifier) { v.now = now }
}

// WithTolerance sets the accepted distance between request timestamp and now.
func WithTolerance(d time.Duration) Option {
	return func(v *AlexaVerifier) {
		if d > 0 {
			v.tolerance = d
		}
	}
}

// WithMeterProvider sets the provider for the verifier's counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(v *AlexaVerifier) { v.initMetrics(mp) }
}

// New creates an AlexaVerifier.
func New(logger *slog.Logger, opts ...Option) *AlexaVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	v := &AlexaVerifier{
		client:    &http.Client{Timeout: DefaultTimeout},
		now:       time.Now,
		tolerance: DefaultTolerance,
		logger:    logger,
		cache:     make(map[uint64]*chain),
	}
	v.initMetrics(otel.GetMeterProvider())
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *AlexaVerifier) initMetrics(mp metric.MeterProvider) {
	meter := mp.Meter(meterName)
	v.fetches, _ = meter.Int64Counter("alexa_verifier_cert_fetches_total",
		metric.WithDescription("Certificate chain downloads by result"))
	v.verifications, _ = meter.Int64Counter("alexa_verifier_verifications_total",
		metric.WithDescription("Request verifications by result"))
}

// Verify implements outbound.SignatureVerifier.
func (v *AlexaVerifier) Verify(ctx context.Context, certChainURL, signature string, body []byte) error {
	err := v.verify(ctx, certChainURL, signature, body)
	v.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", resultLabel(err))))
	return err
}

func (v *AlexaVerifier) verify(ctx context.Context, certChainURL, signature string, body []byte) error {
	if err := ValidateCertURL(certChainURL); err != nil {
		return err
	}
	if signature == "" {
		return fmt.Errorf("%w: missing signature header", ErrSignature)
	}

	c, err := v.chain(ctx, certChainURL)
	if err != nil {
		return err
	}
	if err := checkSignature(c.leaf, signature, body); err != nil {
		return err
	}
	return v.checkTimestamp(body)
}

// ValidateCertURL checks that a signature certificate URL points at Amazon's
// echo.api bucket over https.
func ValidateCertURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: missing signaturecertchainurl header", ErrInvalidCertURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCertURL, err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("%w: scheme %q is not https", ErrInvalidCertURL, u.Scheme)
	}
	host, port := u.Host, ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	if !strings.EqualFold(host, certHost) {
		return fmt.Errorf("%w: host %q is not %s", ErrInvalidCertURL, host, certHost)
	}
	if port != "" && port != "443" {
		return fmt.Errorf("%w: port %q is not 443", ErrInvalidCertURL, port)
	}
	if u.Path == "" || !strings.HasPrefix(path.Clean(u.Path), certPathPref) {
		return fmt.Errorf("%w: path %q is not under %s", ErrInvalidCertURL, u.Path, certPathPref)
	}
	return nil
}

// chain returns the validated chain for url, downloading it at most once
// concurrently and reusing it until the leaf expires.
func (v *AlexaVerifier) chain(ctx context.Context, certURL string) (*chain, error) {
	key := xxhash.Sum64String(certURL)
	now := v.now()

	v.mu.RLock()
	c, ok := v.cache[key]
	v.mu.RUnlock()
	if ok && c.url == certURL && now.Before(c.leaf.NotAfter) && !now.Before(c.leaf.NotBefore) {
		return c, nil
	}

	res, err, _ := v.group.Do(certURL, func() (any, error) {
		// Shared by every waiter, so one caller's cancellation must not
		// fail the others. The client timeout still bounds the download.
		dlCtx := context.WithoutCancel(ctx)
		pemData, err := v.download(dlCtx, certURL)
		v.fetches.Add(dlCtx, 1, metric.WithAttributes(attribute.String("result", resultLabel(err))))
		if err != nil {
			return nil, err
		}
		leaf, err := v.validateChain(pemData)
		if err != nil {
			return nil, err
		}
		c := &chain{url: certURL, leaf: leaf}
		v.mu.Lock()
		v.cache[key] = c
		v.mu.Unlock()
		v.logger.Debug("cached alexa signing certificate", "url", certURL, "not_after", leaf.NotAfter)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*chain), nil
}

func (v *AlexaVerifier) download(ctx context.Context, certURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, certURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertificate, err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download: %v", ErrCertificate, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download: status %d", ErrCertificate, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxChainBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrCertificate, err)
	}
	return data, nil
}

// validateChain parses a PEM chain (leaf first) and checks the leaf.
func (v *AlexaVerifier) validateChain(pemData []byte) (*x509.Certificate, error) {
	var certs []*x509.Certificate
	for rest := pemData; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parse: %v", ErrCertificate, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%w: no certificates in chain", ErrCertificate)
	}

	leaf := certs[0]
	now := v.now()
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return nil, fmt.Errorf("%w: certificate not valid at %s", ErrCertificate, now.UTC().Format(time.RFC3339))
	}

	intermediates := x509.NewCertPool()
	for _, c := range certs[1:] {
		intermediates.AddCert(c)
	}
	_, err := leaf.Verify(x509.VerifyOptions{
		DNSName:       certSAN,
		Intermediates: intermediates,
		Roots:         v.roots,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertificate, err)
	}
	return leaf, nil
}

func checkSignature(leaf *x509.Certificate, signature string, body []byte) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: decode: %v", ErrSignature, err)
	}
	pub, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: certificate key is %T, not RSA", ErrSignature, leaf.PublicKey)
	}
	digest := sha1.Sum(body) //nolint:gosec // Alexa signs with SHA-1.
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA1, digest[:], sig); err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}
	return nil
}

func (v *AlexaVerifier) checkTimestamp(body []byte) error {
	var envelope struct {
		Request struct {
			Timestamp string `json:"timestamp"`
		} `json:"request"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: decode body: %v", ErrTimestamp, err)
	}
	ts, err := time.Parse(time.RFC3339, envelope.Request.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: parse %q: %v", ErrTimestamp, envelope.Request.Timestamp, err)
	}
	diff := v.now().Sub(ts)
	if diff < 0 {
		diff = -diff
	}
	if diff > v.tolerance {
		return fmt.Errorf("%w: %s off", ErrTimestamp, diff.Round(time.Second))
	}
	return nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCertURL):
		return "invalid_cert_url"
	case errors.Is(err, ErrCertificate):
		return "certificate"
	case errors.Is(err, ErrSignature):
		return "signature"
	case errors.Is(err, ErrTimestamp):
		return "timestamp"
	default:
		return "error"
	}
}

// Bypass accepts every request. It is used when verification is disabled.
type Bypass struct{}

// Verify implements outbound.SignatureVerifier.
func (Bypass) Verify(context.Context, string, string, []byte) error { return nil }

// Resolve returns the verifier for the given setting. Disabling verification
// logs a warning once, here, so operators notice.
func Resolve(useVerifier bool, logger *slog.Logger, opts ...Option) outbound.SignatureVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	if !useVerifier {
		logger.Warn("alexa signature verification disabled, accepting unsigned requests")
		return Bypass{}
	}
	return New(logger, opts...)
}

// Compile-time interface checks.
var (
	_ outbound.SignatureVerifier = (*AlexaVerifier)(nil)
	_ outbound.SignatureVerifier = Bypass{}
)
