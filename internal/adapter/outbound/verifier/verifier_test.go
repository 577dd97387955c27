package verifier

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // Alexa signs with SHA-1.
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const testCertURL = "https://s3.amazonaws.com/echo.api/echo-api-cert-4.pem"

var testNow = time.Date(2017, 6, 24, 16, 0, 18, 0, time.UTC)

const testBody = `{"version":"1.0","request":{"type":"LaunchRequest","requestId":"r1","timestamp":"2017-06-24T16:00:18Z","locale":"en-US"}}`

type testPKI struct {
	roots   *x509.CertPool
	leafKey *rsa.PrivateKey
	chain   []byte
}

func newTestPKI(t *testing.T, san string) *testPKI {
	t.Helper()

	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate CA key: %v", err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Root"},
		NotBefore:             testNow.Add(-24 * time.Hour),
		NotAfter:              testNow.Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("create CA: %v", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		t.Fatalf("parse CA: %v", err)
	}

	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate leaf key: %v", err)
	}
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: san},
		DNSNames:     []string{san},
		NotBefore:    testNow.Add(-time.Hour),
		NotAfter:     testNow.Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, caCert, &leafKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("create leaf: %v", err)
	}

	var chain bytes.Buffer
	_ = pem.Encode(&chain, &pem.Block{Type: "CERTIFICATE", Bytes: leafDER})
	_ = pem.Encode(&chain, &pem.Block{Type: "CERTIFICATE", Bytes: caDER})

	roots := x509.NewCertPool()
	roots.AddCert(caCert)
	return &testPKI{roots: roots, leafKey: leafKey, chain: chain.Bytes()}
}

func (p *testPKI) sign(t *testing.T, body string) string {
	t.Helper()
	digest := sha1.Sum([]byte(body)) //nolint:gosec // Alexa signs with SHA-1.
	sig, err := rsa.SignPKCS1v15(rand.Reader, p.leafKey, crypto.SHA1, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// serveChain returns a client that answers every request with chain and
// counts the downloads.
func serveChain(chain []byte, status int, calls *atomic.Int32) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(bytes.NewReader(chain)),
			Header:     make(http.Header),
			Request:    r,
		}, nil
	})}
}

func newTestVerifier(p *testPKI, calls *atomic.Int32, opts ...Option) *AlexaVerifier {
	base := []Option{
		WithHTTPClient(serveChain(p.chain, http.StatusOK, calls)),
		WithRoots(p.roots),
		WithClock(func() time.Time { return testNow }),
	}
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), append(base, opts...)...)
}

func TestVerify_ValidRequest(t *testing.T) {
	p := newTestPKI(t, "echo-api.amazon.com")
	var calls atomic.Int32
	v := newTestVerifier(p, &calls)

	if err := v.Verify(context.Background(), testCertURL, p.sign(t, testBody), []byte(testBody)); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestVerify_Failures(t *testing.T) {
	p := newTestPKI(t, "echo-api.amazon.com")

	tests := []struct {
		name    string
		certURL string
		sig     func() string
		body    string
		opts    []Option
		wantErr error
	}{
		{
			name:    "tampered body",
			certURL: testCertURL,
			sig:     func() string { return p.sign(t, testBody) },
			body:    testBody + " ",
			wantErr: ErrSignature,
		},
		{
			name:    "missing signature",
			certURL: testCertURL,
			sig:     func() string { return "" },
			body:    testBody,
			wantErr: ErrSignature,
		},
		{
			name:    "signature not base64",
			certURL: testCertURL,
			sig:     func() string { return "%%%" },
			body:    testBody,
			wantErr: ErrSignature,
		},
		{
			name:    "bad cert url",
			certURL: "http://s3.amazonaws.com/echo.api/echo-api-cert-4.pem",
			sig:     func() string { return p.sign(t, testBody) },
			body:    testBody,
			wantErr: ErrInvalidCertURL,
		},
		{
			name:    "stale timestamp",
			certURL: testCertURL,
			sig: func() string {
				return p.sign(t, `{"request":{"timestamp":"2017-06-24T15:50:00Z"}}`)
			},
			body:    `{"request":{"timestamp":"2017-06-24T15:50:00Z"}}`,
			wantErr: ErrTimestamp,
		},
		{
			name:    "future timestamp",
			certURL: testCertURL,
			sig: func() string {
				return p.sign(t, `{"request":{"timestamp":"2017-06-24T16:05:00Z"}}`)
			},
			body:    `{"request":{"timestamp":"2017-06-24T16:05:00Z"}}`,
			wantErr: ErrTimestamp,
		},
		{
			name:    "missing timestamp",
			certURL: testCertURL,
			sig:     func() string { return p.sign(t, `{"request":{}}`) },
			body:    `{"request":{}}`,
			wantErr: ErrTimestamp,
		},
		{
			name:    "untrusted root",
			certURL: testCertURL,
			sig:     func() string { return p.sign(t, testBody) },
			body:    testBody,
			opts:    []Option{WithRoots(x509.NewCertPool())},
			wantErr: ErrCertificate,
		},
		{
			name:    "certificate expired",
			certURL: testCertURL,
			sig:     func() string { return p.sign(t, testBody) },
			body:    testBody,
			opts:    []Option{WithClock(func() time.Time { return testNow.Add(2 * time.Hour) })},
			wantErr: ErrCertificate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			v := newTestVerifier(p, &calls, tt.opts...)
			err := v.Verify(context.Background(), tt.certURL, tt.sig(), []byte(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_TimestampWithinTolerance(t *testing.T) {
	p := newTestPKI(t, "echo-api.amazon.com")
	var calls atomic.Int32
	v := newTestVerifier(p, &calls, WithTolerance(time.Hour))

	body := `{"request":{"timestamp":"2017-06-24T15:30:00Z"}}`
	if err := v.Verify(context.Background(), testCertURL, p.sign(t, body), []byte(body)); err != nil {
		t.Errorf("Verify() error = %v, want nil", err)
	}
}

func TestVerify_WrongSAN(t *testing.T) {
	p := newTestPKI(t, "evil.example.com")
	var calls atomic.Int32
	v := newTestVerifier(p, &calls)

	err := v.Verify(context.Background(), testCertURL, p.sign(t, testBody), []byte(testBody))
	if !errors.Is(err, ErrCertificate) {
		t.Errorf("Verify() error = %v, want ErrCertificate", err)
	}
}

func TestVerify_DownloadStatus(t *testing.T) {
	p := newTestPKI(t, "echo-api.amazon.com")
	var calls atomic.Int32
	v := New(slog.Default(),
		WithHTTPClient(serveChain(nil, http.StatusNotFound, &calls)),
		WithRoots(p.roots),
		WithClock(func() time.Time { return testNow }),
	)

	err := v.Verify(context.Background(), testCertURL, p.sign(t, testBody), []byte(testBody))
	if !errors.Is(err, ErrCertificate) {
		t.Errorf("Verify() error = %v, want ErrCertificate", err)
	}
}

func TestVerify_EmptyChain(t *testing.T) {
	p := newTestPKI(t, "echo-api.amazon.com")
	var calls atomic.Int32
	v := New(slog.Default(),
		WithHTTPClient(serveChain([]byte("not a pem"), http.StatusOK, &calls)),
		WithRoots(p.roots),
		WithClock(func() time.Time { return testNow }),
	)

	err := v.Verify(context.Background(), testCertURL, p.sign(t, testBody), []byte(testBody))
	if !errors.Is(err, ErrCertificate) {
		t.Errorf("Verify() error = %v, want ErrCertificate", err)
	}
}

func TestVerify_CachesChain(t *testing.T) {
	p := newTestPKI(t, "echo-api.amazon.com")
	var calls atomic.Int32
	v := newTestVerifier(p, &calls)
	sig := p.sign(t, testBody)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := v.Verify(context.Background(), testCertURL, sig, []byte(testBody)); err != nil {
				t.Errorf("Verify() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if err := v.Verify(context.Background(), testCertURL, sig, []byte(testBody)); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	// Concurrent first calls may each miss the cache before the first
	// download lands, but singleflight collapses them.
	if got := calls.Load(); got < 1 || got > 20 {
		t.Errorf("downloads = %d, want between 1 and 20", got)
	}
	before := calls.Load()
	_ = v.Verify(context.Background(), testCertURL, sig, []byte(testBody))
	if calls.Load() != before {
		t.Errorf("cached chain was downloaded again")
	}
}

func TestVerify_CancelledCallerDoesNotFailSharedDownload(t *testing.T) {
	p := newTestPKI(t, "echo-api.amazon.com")
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	var once sync.Once
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
		if err := r.Context().Err(); err != nil {
			return nil, err
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(p.chain)),
			Header:     make(http.Header),
			Request:    r,
		}, nil
	})}
	v := newTestVerifier(p, &calls, WithHTTPClient(client))
	sig := p.sign(t, testBody)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 2)
	go func() { errs <- v.Verify(ctx, testCertURL, sig, []byte(testBody)) }()
	<-started
	go func() { errs <- v.Verify(context.Background(), testCertURL, sig, []byte(testBody)) }()
	cancel()
	close(release)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Errorf("Verify() error = %v, want shared download to survive cancellation", err)
		}
	}
}

func TestVerify_RecordsMetrics(t *testing.T) {
	p := newTestPKI(t, "echo-api.amazon.com")
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	var calls atomic.Int32
	v := newTestVerifier(p, &calls, WithMeterProvider(mp))

	_ = v.Verify(context.Background(), testCertURL, p.sign(t, testBody), []byte(testBody))
	_ = v.Verify(context.Background(), "https://evil.example.com/echo.api/cert.pem", "x", []byte(testBody))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "alexa_verifier_verifications_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("Data = %T, want Sum[int64]", m.Data)
			}
			for _, dp := range sum.DataPoints {
				result, _ := dp.Attributes.Value("result")
				got[result.AsString()] += dp.Value
			}
		}
	}
	if got["ok"] != 1 || got["invalid_cert_url"] != 1 {
		t.Errorf("verifications = %v, want ok=1 invalid_cert_url=1", got)
	}
}

func TestValidateCertURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://s3.amazonaws.com/echo.api/echo-api-cert.pem", false},
		{"https://s3.amazonaws.com:443/echo.api/echo-api-cert.pem", false},
		{"https://S3.AMAZONAWS.COM/echo.api/echo-api-cert.pem", false},
		{"https://s3.amazonaws.com/echo.api/../echo.api/echo-api-cert.pem", false},
		{"", true},
		{"http://s3.amazonaws.com/echo.api/echo-api-cert.pem", true},
		{"https://notamazon.com/echo.api/echo-api-cert.pem", true},
		{"https://s3.amazonaws.com/EcHo.aPi/echo-api-cert.pem", true},
		{"https://s3.amazonaws.com/invalid.path/echo-api-cert.pem", true},
		{"https://s3.amazonaws.com:563/echo.api/echo-api-cert.pem", true},
		{"https://s3.amazonaws.com/echo.api/../secret.pem", true},
		{"://bad", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateCertURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCertURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCertURL) {
				t.Errorf("error = %v, want ErrInvalidCertURL", err)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	v := Resolve(false, logger)
	if _, ok := v.(Bypass); !ok {
		t.Fatalf("Resolve(false) = %T, want Bypass", v)
	}
	if err := v.Verify(context.Background(), "", "", nil); err != nil {
		t.Errorf("Bypass.Verify() error = %v, want nil", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("level=WARN")) {
		t.Errorf("Resolve(false) should log a warning, got %q", buf.String())
	}

	buf.Reset()
	if _, ok := Resolve(true, logger).(*AlexaVerifier); !ok {
		t.Error("Resolve(true) should return *AlexaVerifier")
	}
	if buf.Len() != 0 {
		t.Errorf("Resolve(true) should not log, got %q", buf.String())
	}
}
