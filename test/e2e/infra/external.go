package infra

import (
	"fmt"
	"time"

	"github.com/kubev2v/prio-scheduler/internal/server"
)

// ExternalInfraManager implements InfraManager for a daemon started outside
// the test run. Tokens are signed with the daemon's secret file when one is given.
type ExternalInfraManager struct {
	apiURL     string
	secretFile string
}

func NewExternalInfraManager(apiURL, secretFile string) *ExternalInfraManager {
	return &ExternalInfraManager{apiURL: apiURL, secretFile: secretFile}
}

func (e *ExternalInfraManager) StartDaemon(_ DaemonConfig) (string, error) {
	return e.apiURL, nil
}

func (e *ExternalInfraManager) StopDaemon() error    { return nil }
func (e *ExternalInfraManager) RestartDaemon() error { return nil }
func (e *ExternalInfraManager) CanRestart() bool     { return false }

func (e *ExternalInfraManager) GenerateToken(subject string) (string, error) {
	if e.secretFile == "" {
		return "", nil
	}
	auth, err := server.NewAuthenticatorFromFile(e.secretFile)
	if err != nil {
		return "", fmt.Errorf("failed to load secret: %w", err)
	}
	return auth.Issue(subject, time.Hour)
}
