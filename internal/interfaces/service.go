package interfaces

// Service is the lifecycle of every interface exposing the escrow engine.
// Start must not block.
type Service interface {
	Start() error
	Stop()
}
