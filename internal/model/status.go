package model

// Status labels carried by operation records. Every operation in this system
// reports success unconditionally; there is no failure status because no
// operation has a failure path.
type Status string

const (
	StatusOK        Status = "ok"
	StatusReady     Status = "ready"
	StatusDeployed  Status = "deployed"
	StatusProcessed Status = "processed"
)
