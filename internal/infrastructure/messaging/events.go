package messaging

const (
	AuditQueue      = "chat_audit"
	DeadLetterQueue = "dead_letter_queue"
)
