package interfaces

// -----------------------------------------------------------------------------
// IDataExchanger pushes pipeline updates to external listeners (websocket
// clients) and serves the query API.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Broadcast pushes a payload to every connected listener.
	Broadcast(payload interface{})

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
