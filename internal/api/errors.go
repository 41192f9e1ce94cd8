package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrNoOrigin is returned for same-origin paths when there is no page origin to resolve them
// against (every request made outside a browser needs an API URL).
var ErrNoOrigin = errors.New("no API origin configured for same-origin path")

// HTTPError is a non-2xx response. Body is the response text as received.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("API Error %d: %s", e.Status, e.Body)
}

type TransportKind string

const (
	TransportDNS      TransportKind = "dns"
	TransportRefused  TransportKind = "refused"
	TransportTLS      TransportKind = "tls"
	TransportTimeout  TransportKind = "timeout"
	TransportCanceled TransportKind = "canceled"
	TransportOther    TransportKind = "other"
)

// TransportError means the request never produced an HTTP response.
type TransportError struct {
	Method string
	URL    string
	Kind   TransportKind
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Hint is a one-line diagnostic for logs.
func (e *TransportError) Hint() string {
	switch e.Kind {
	case TransportDNS:
		return "host name did not resolve; check the configured API URL"
	case TransportRefused:
		return "connection refused; the backend or tunnel is not running"
	case TransportTLS:
		return "TLS handshake rejected; the relay certificate or origin is not trusted"
	case TransportTimeout:
		return "no response before the client timeout"
	case TransportCanceled:
		return "request canceled by the caller"
	default:
		return "request failed before reaching the server"
	}
}

func classifyTransport(err error) TransportKind {
	var dnsErr *net.DNSError
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var recordErr tls.RecordHeaderError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return TransportCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return TransportTimeout
	case errors.As(err, &dnsErr):
		return TransportDNS
	case errors.Is(err, syscall.ECONNREFUSED):
		return TransportRefused
	case errors.As(err, &certErr), errors.As(err, &unknownAuth), errors.As(err, &hostErr), errors.As(err, &recordErr):
		return TransportTLS
	case errors.As(err, &netErr) && netErr.Timeout():
		return TransportTimeout
	default:
		return TransportOther
	}
}
