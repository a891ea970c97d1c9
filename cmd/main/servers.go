package main

import (
	"quant-observer/src/grpc_control"
	"quant-observer/src/logger"
	"quant-observer/src/server"
)

// -----------------------------------------------------------------------------

// startServers runs the HTTP/websocket server and the gRPC health server in
// the background. A failure to bind is fatal.
func startServers(srv *server.APIServer, control *grpc_control.ControlServer, appLogger *logger.Logger) {
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	go func() {
		if err := control.Start(); err != nil {
			appLogger.Critical("gRPC control server failed: %v", err)
		}
	}()
}
