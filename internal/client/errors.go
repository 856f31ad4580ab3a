package client

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// ErrorType classifies a failed request.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNetwork
	ErrTypeTimeout
	ErrTypeConnectionRefused
	ErrTypeDNS
	ErrTypeHTTP
	ErrTypeParse
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeNetwork:
		return "network"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeConnectionRefused:
		return "connection refused"
	case ErrTypeDNS:
		return "dns"
	case ErrTypeHTTP:
		return "http"
	case ErrTypeParse:
		return "parse"
	default:
		return "unknown"
	}
}

// SensorError is the error returned by every Client request.
type SensorError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
	Sensor     string // Base URL of the sensor
	Retryable  bool
}

func (e *SensorError) Error() string {
	msg := e.Message
	if e.Sensor != "" {
		msg = fmt.Sprintf("%s: %s", e.Sensor, msg)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SensorError) Unwrap() error {
	return e.Err
}

// classifyNetworkError maps a transport failure to a SensorError.
func classifyNetworkError(err error, sensor string) *SensorError {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &SensorError{Type: ErrTypeTimeout, Message: "request timed out", Err: err, Sensor: sensor, Retryable: true}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &SensorError{Type: ErrTypeTimeout, Message: "request timed out", Err: err, Sensor: sensor, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &SensorError{
			Type:      ErrTypeDNS,
			Message:   "cannot resolve sensor host",
			Err:       err,
			Sensor:    sensor,
			Retryable: dnsErr.IsTemporary,
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &SensorError{Type: ErrTypeConnectionRefused, Message: "connection refused", Err: err, Sensor: sensor, Retryable: true}
	}

	return &SensorError{Type: ErrTypeNetwork, Message: "network error", Err: err, Sensor: sensor, Retryable: true}
}

func newHTTPError(sensor string, status int) *SensorError {
	return &SensorError{
		Type:       ErrTypeHTTP,
		Message:    "unexpected response",
		StatusCode: status,
		Sensor:     sensor,
		Retryable:  status >= 500,
	}
}

func newParseError(sensor string, err error) *SensorError {
	return &SensorError{Type: ErrTypeParse, Message: "malformed response", Err: err, Sensor: sensor}
}

// IsRetryable reports whether err is a SensorError worth retrying.
func IsRetryable(err error) bool {
	var se *SensorError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsUnreachable reports whether the sensor could not be contacted at all.
func IsUnreachable(err error) bool {
	var se *SensorError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Type {
	case ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS:
		return true
	}
	return false
}

// ShortMessage returns a one-line description suitable for CLI output.
func ShortMessage(err error) string {
	var se *SensorError
	if !errors.As(err, &se) {
		return err.Error()
	}
	switch se.Type {
	case ErrTypeTimeout:
		return "Sensor not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Sensor refused connection - is it in scan mode?"
	case ErrTypeDNS:
		return "Cannot resolve sensor hostname"
	case ErrTypeNetwork:
		return "Network error - check connection"
	case ErrTypeHTTP:
		return fmt.Sprintf("Sensor error (HTTP %d)", se.StatusCode)
	case ErrTypeParse:
		return "Failed to parse sensor response"
	default:
		return se.Message
	}
}
