package utils

type contextKey string

// Request-scoped context keys set by the HTTP layer
const (
	RequestIDKey  contextKey = "request_id"
	UserAgentKey  contextKey = "user_agent"
	IPAddressKey  contextKey = "ip_address"
	EndpointKey   contextKey = "endpoint"
	TimeoutKey    contextKey = "timeout"
	CancelFuncKey contextKey = "cancel_func"
	AdminKey      contextKey = "admin"
)
