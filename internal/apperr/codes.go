package apperr

// Code classifies a failure so callers can decide how to present and recover.
type Code string

const (
	CodeAuthRequired                 Code = "AUTH_REQUIRED"
	CodeUnauthenticated              Code = "UNAUTHENTICATED"
	CodeConnectionUnavailable        Code = "CONNECTION_UNAVAILABLE"
	CodeConnectionLost               Code = "CONNECTION_LOST"
	CodeConversationResolutionFailed Code = "CONVERSATION_RESOLUTION_FAILED"
	CodeHistoryFetchFailed           Code = "HISTORY_FETCH_FAILED"
	CodeSendFailed                   Code = "SEND_FAILED"
	CodeInternal                     Code = "INTERNAL"
)

// Fatal reports whether a code clears conversation-scoped state. Everything
// else is rendered as a degraded annotation on top of what is already shown.
func (c Code) Fatal() bool {
	return c == CodeConversationResolutionFailed
}
