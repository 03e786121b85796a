package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrOffline means the server could not be reached at all (DNS or
	// connection failure).
	ErrOffline = errors.New("server unreachable")
	// ErrTransport means the request failed without an HTTP response for
	// any other reason, e.g. a dropped connection or a timeout.
	ErrTransport = errors.New("transport failure")
)

// APIError is a non-2xx response.  Message is the server's "error" field
// when present.
type APIError struct {
	Status      int
	Message     string
	Unavailable []uint64
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// classify wraps a failed round trip in ErrOffline or ErrTransport.
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %w", ErrOffline, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %w", ErrOffline, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

var conflictPhrases = []string{"already booked", "이미 예매"}

// IsConflict reports whether err is a seat race the user can recover from
// by choosing again: a 409, or a response naming already booked seats.
func IsConflict(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Status == http.StatusConflict {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	for _, p := range conflictPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// User-facing alerts.
const (
	MsgConflict  = "좌석 중 일부가 이미 예매/선점되었습니다. 좌석을 다시 선택해주세요."
	MsgOffline   = "네트워크에 연결할 수 없습니다. 인터넷 연결을 확인해주세요."
	MsgTransport = "서버와 통신 중 문제가 발생했습니다. 잠시 후 다시 시도해주세요."
	MsgRequest   = "요청을 처리할 수 없습니다. 입력값을 확인해주세요."
	MsgServer    = "일시적인 서버 오류입니다. 잠시 후 다시 시도해주세요."
	MsgUnknown   = "알 수 없는 오류가 발생했습니다."
)

// Describe turns err into the alert shown to the user.  4xx messages from
// the server are shown verbatim.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if IsConflict(err) {
		return MsgConflict
	}
	switch {
	case errors.Is(err, ErrOffline):
		return MsgOffline
	case errors.Is(err, ErrTransport):
		return MsgTransport
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 500 {
			return MsgServer
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return MsgRequest
	}
	return MsgUnknown
}
