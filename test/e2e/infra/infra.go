package infra

// InfraManager abstracts daemon lifecycle for e2e tests.
// Process-based: builds nothing, runs a prebuilt prioschedd binary.
// External: no-op, the daemon is managed outside the test run.
type InfraManager interface {
	StartDaemon(cfg DaemonConfig) (string, error)
	StopDaemon() error
	RestartDaemon() error
	GenerateToken(subject string) (string, error)
	// CanRestart reports whether RestartDaemon actually restarts anything.
	CanRestart() bool
}

// DaemonConfig holds the flags a daemon instance is started with.
type DaemonConfig struct {
	DataFolder      string
	DefaultPriority string
	ShutdownTimeout string // e.g. "5s"
}
