/*
Package main provides end-to-end testing for prioschedd.

# Package Structure

	test/e2e/
	├── main.go          Entry point: flags, config, InfraManager setup, Ginkgo runner
	├── tests.go         Ginkgo specs (auth, preemption, delays, cancel, restart)
	├── doc.go           This file
	└── infra/           Daemon lifecycle
	    ├── infra.go     InfraManager interface + DaemonConfig
	    ├── process.go   ProcessInfraManager (spawns the binary)
	    └── external.go  ExternalInfraManager (no-op, externally managed)

Specs talk to the daemon through pkg/client.

# InfraManager

	type InfraManager interface {
	    StartDaemon(cfg) / StopDaemon() / RestartDaemon()
	    GenerateToken(subject)
	    CanRestart()
	}

Two implementations:
  - ProcessInfraManager: runs a prebuilt prioschedd with a generated HS256
    secret, a free port and a data folder under the work dir (default).
  - ExternalInfraManager: no-op; the daemon is already running. Restart specs
    are skipped.

Selected via the -infra-mode flag ("process" or "external").

# Running

	go build -o bin/prioschedd ./cmd/prioschedd
	go run ./test/e2e -binary ./bin/prioschedd
	go run ./test/e2e -infra-mode external -api-url http://localhost:8000 -secret-file /etc/prioschedd/secret
*/
package main
