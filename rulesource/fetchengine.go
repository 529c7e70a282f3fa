package rulesource

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
)

// fetchEngine is one way of retrieving the raw EasyList text for a
// mirror host. Grounded on the teacher's engine.Engine interface
// (engine/engine.go): a pluggable fetch strategy the dispatcher races.
type fetchEngine interface {
	name() string
	fetch(ctx context.Context, url string) (string, error)
}

// plainEngine is a stdlib net/http client: fastest when the mirror
// has no TLS fingerprinting defenses.
type plainEngine struct {
	client *http.Client
}

func newPlainEngine() *plainEngine {
	return &plainEngine{client: &http.Client{Timeout: 10 * time.Second}}
}

func (e *plainEngine) name() string { return "plain" }

func (e *plainEngine) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "filterengine-rulesource/1.0")
	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("plain engine: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// chromeTLSEngine fetches with a Chrome-like TLS ClientHello fingerprint
// via utls, grounded on the teacher's engine/http_engine.go — many
// filter-list CDNs reject plain Go TLS fingerprints.
type chromeTLSEngine struct {
	client *http.Client
}

var chromeSpec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeSpec = spec
}

func newChromeTLSEngine() *chromeTLSEngine {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeSpec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("chrome tls engine: apply spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	return &chromeTLSEngine{client: &http.Client{Transport: transport, Timeout: 10 * time.Second}}
}

func (e *chromeTLSEngine) name() string { return "chrome-tls" }

func (e *chromeTLSEngine) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/plain,*/*;q=0.8")
	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chrome tls engine: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// splitLines turns a raw EasyList payload into RuleParser.ParseCosmetic's
// expected line slice.
func splitLines(payload string) []string {
	return strings.Split(strings.ReplaceAll(payload, "\r\n", "\n"), "\n")
}
