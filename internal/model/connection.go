package model

// ConnectionStatus is the lifecycle state of the realtime channel.
type ConnectionStatus string

const (
	StatusNotInitialized ConnectionStatus = "not_initialized"
	StatusConnecting     ConnectionStatus = "connecting"
	StatusConnected      ConnectionStatus = "connected"
	StatusDisconnected   ConnectionStatus = "disconnected"
)

// ConnectionState is the observable state of the channel. It lives for the
// lifetime of the process and is never persisted.
type ConnectionState struct {
	Status    ConnectionStatus
	ChannelID string
	LastError error
}
