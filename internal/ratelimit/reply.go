package ratelimit

// denyReplies maps deny reasons to the optional user-facing reply. Reasons
// without an entry produce no reply at all.
var denyReplies = map[string]string{
	ReasonHourly: "Has alcanzado el límite de consultas por ahora. Intentá de nuevo más tarde.",
	ReasonDaily:  "Has alcanzado el límite de consultas de hoy. Escribinos mañana.",
}

// DenyReply returns the reply text for a deny reason, if one is configured.
func DenyReply(reason string) (string, bool) {
	text, ok := denyReplies[reason]
	return text, ok
}
