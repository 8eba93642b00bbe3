package core

// Error codes surfaced to the originating connection.
const (
	ErrCodeInviteFailed = "INVITE_FAILED"
	ErrCodeAnswerFailed = "ANSWER_FAILED"
	ErrCodeHangupFailed = "HANGUP_FAILED"

	// Protocol-level codes used by the transport.
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeRateLimited    = "rate_limited"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
