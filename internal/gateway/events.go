package gateway

import "time"

// Event names broadcast to connected clients. Keep these stable; web and
// mobile clients switch on them.
const (
	EventNewQuery          = "newQuery"
	EventQueryStatusChange = "queryStatusChange"
	EventQueryTransfer     = "queryTransfer"
	EventQueryAssigned     = "queryAssigned"
	EventQueryResolved     = "queryResolved"
	EventCallStarted       = "callStarted"
	EventNewMessage        = "newMessage"
	EventEnhancedMessage   = "enhancedMessage"
	EventActiveCallStarted = "activeCallStarted"
	EventActiveCallEnded   = "activeCallEnded"
	EventMessagesRead      = "messagesRead"
	EventTicketStatus      = "ticketStatusChanged"
	EventTicketTransferred = "ticketTransferred"
)

// Envelope is the wire shape of every broadcast frame.
//
// Payloads carry sender-identifying fields so a receiving client can
// suppress the echo of its own just-sent message; the server broadcasts to
// everyone in the room, sender included.
type Envelope struct {
	Event     string    `json:"event"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}
