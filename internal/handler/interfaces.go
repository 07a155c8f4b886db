package handler

// Handler defines the interface for long-running front ends
// This allows running the Telegram bot and the HTTP server side by side
type Handler interface {
	Start() error
	Stop() error
}
