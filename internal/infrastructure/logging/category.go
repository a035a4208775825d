package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	Redis           Category = "Redis"
	Database        Category = "Database"
	RabbitMQ        Category = "RabbitMQ"
	MongoDB         Category = "MongoDB"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
	Translation     Category = "Translation"
	Presence        Category = "Presence"
	Chat            Category = "Chat"
	WebSocket       Category = "WebSocket"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Sync
	BackendSelect SubCategory = "BackendSelect"
	Subscription  SubCategory = "Subscription"
	Polling       SubCategory = "Polling"
	Cleanup       SubCategory = "Cleanup"

	// Chat
	Join      SubCategory = "Join"
	Leave     SubCategory = "Leave"
	Heartbeat SubCategory = "Heartbeat"
	Send      SubCategory = "Send"
	Update    SubCategory = "Update"
	Typing    SubCategory = "Typing"

	// Translation
	Primary  SubCategory = "Primary"
	Fallback SubCategory = "Fallback"

	// Events
	Publish SubCategory = "Publish"
	Consume SubCategory = "Consume"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	HostIp       ExtraKey = "HostIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	RequestBody  ExtraKey = "RequestBody"
	ResponseBody ExtraKey = "ResponseBody"
	ErrorMessage ExtraKey = "ErrorMessage"
	RoomID       ExtraKey = "RoomId"
	ClientID     ExtraKey = "ClientId"
	MessageID    ExtraKey = "MessageId"
	Role         ExtraKey = "Role"
	Provider     ExtraKey = "Provider"
	Attempt      ExtraKey = "Attempt"
	Backend      ExtraKey = "Backend"
)
