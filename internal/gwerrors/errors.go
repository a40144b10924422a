// Package gwerrors defines the gateway's unified error surface: an error
// "kind" taxonomy with a fixed HTTP status mapping, a tolerant parser for
// upstream error bodies (providers disagree wildly on error JSON shape), and
// a context-aware logging wrapper. Grounded on relay/controller/error.go
// (GeneralErrorResponse / RelayErrorHandler / RelayErrorHandlerWithContext)
// in the teacher, narrowed to the kind table this gateway's spec defines.
package gwerrors

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
)

// Kind is the taxonomy of forwarding errors the gateway can surface.
type Kind string

const (
	KindUnauthorized      Kind = "Unauthorized"
	KindInvalidRequest    Kind = "InvalidRequest"
	KindModelNotFound     Kind = "ModelNotFound"
	KindUpstreamNotFound  Kind = "UpstreamNotFound"
	KindUpstreamHTTPError Kind = "UpstreamHttpError"
	KindUpstreamTimeout   Kind = "UpstreamTimeout"
	KindUpstreamExhausted Kind = "UpstreamExhausted"
	KindTooManyRequests   Kind = "TooManyRequests"
	KindBudgetExceeded    Kind = "BudgetExceeded"
	KindInternalError     Kind = "InternalError"
)

// Error is the gateway's unified error value. Message is always safe to
// return to the caller; RawError, when set, is never serialized and is kept
// only for logging.
type Error struct {
	Kind       Kind   `json:"-"`
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Param      string `json:"param,omitempty"`
	Code       string `json:"code,omitempty"`
	Retryable  bool   `json:"-"`
	RawError   error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// New builds an Error for a given kind, applying the fixed status/retryable
// mapping from the error-handling design table.
func New(kind Kind, message string) *Error {
	status, retryable := mapping(kind)
	return &Error{
		Kind:       kind,
		StatusCode: status,
		Message:    message,
		Type:       string(kind),
		Retryable:  retryable,
	}
}

func mapping(kind Kind) (status int, retryable bool) {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized, false
	case KindInvalidRequest:
		return http.StatusBadRequest, false
	case KindModelNotFound:
		return http.StatusNotFound, false
	case KindUpstreamNotFound:
		return http.StatusInternalServerError, false
	case KindUpstreamHTTPError:
		return http.StatusBadGateway, true
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout, true
	case KindUpstreamExhausted:
		return http.StatusBadGateway, false
	case KindTooManyRequests:
		return http.StatusTooManyRequests, false
	case KindBudgetExceeded:
		return http.StatusPaymentRequired, false
	default:
		return http.StatusInternalServerError, false
	}
}

// generalErrorResponse tolerates the handful of error body shapes real
// providers send (OpenAI's {"error":{"message":...}}, bare {"message":...},
// {"msg":...}, nested {"response":{"error":{"message":...}}}, ...).
type generalErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
	Message string `json:"message"`
	Msg     string `json:"msg"`
	Err     string `json:"err"`
	Header  struct {
		Message string `json:"message"`
	} `json:"header"`
	Response struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"response"`
}

func (e generalErrorResponse) toMessage() string {
	switch {
	case e.Error.Message != "":
		return e.Error.Message
	case e.Message != "":
		return e.Message
	case e.Msg != "":
		return e.Msg
	case e.Err != "":
		return e.Err
	case e.Header.Message != "":
		return e.Header.Message
	case e.Response.Error.Message != "":
		return e.Response.Error.Message
	default:
		return ""
	}
}

// FromUpstreamResponse parses a non-2xx upstream HTTP response into a
// gateway Error. The status code is mirrored for 4xx responses and coerced
// to 502 for 5xx, matching the UpstreamHttpError(4xx)/(5xx) rows of the
// error-kind table. The response body is consumed and closed.
func FromUpstreamResponse(resp *http.Response) *Error {
	if resp == nil {
		return New(KindUpstreamNotFound, "upstream returned no response")
	}

	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	kind := KindUpstreamHTTPError
	status := resp.StatusCode
	retryable := false
	if resp.StatusCode >= 500 {
		status = http.StatusBadGateway
		retryable = true
	}

	var parsed generalErrorResponse
	message := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		message = parsed.toMessage()
	}
	if message == "" {
		message = "upstream request failed with status " + strconv.Itoa(resp.StatusCode)
	}

	return &Error{
		Kind:       kind,
		StatusCode: status,
		Message:    message,
		Type:       string(kind),
		Param:      strconv.Itoa(resp.StatusCode),
		Retryable:  retryable,
	}
}

// FromUpstreamResponseWithContext behaves like FromUpstreamResponse but also
// logs the raw upstream body through the request-scoped logger, and restores
// a readable body on resp in case a caller wants to re-inspect it afterward.
func FromUpstreamResponseWithContext(c *gin.Context, resp *http.Response) *Error {
	if resp == nil {
		return FromUpstreamResponse(resp)
	}

	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	gmw.GetLogger(c).Debug("upstream error response",
		zap.Int("status_code", resp.StatusCode),
		zap.ByteString("body", body))
	resp.Body = io.NopCloser(bytes.NewReader(body))

	gwErr := FromUpstreamResponse(resp)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return gwErr
}

// WriteJSON renders the error as the gateway's JSON error envelope and
// aborts the gin context, matching the panic guard's response shape.
func (e *Error) WriteJSON(c *gin.Context) {
	c.JSON(e.StatusCode, gin.H{
		"error": gin.H{
			"message": e.Message,
			"type":    e.Type,
			"param":   e.Param,
			"code":    e.Code,
		},
	})
	c.Abort()
}
