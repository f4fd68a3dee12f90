package infra

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/kubev2v/prio-scheduler/internal/server"
)

const stopTimeout = 15 * time.Second

var errExitedEarly = errors.New("prioschedd exited early")

// ProcessInfraManager runs the prioschedd binary as a child process with
// authentication enabled and a generated secret.
type ProcessInfraManager struct {
	binary  string
	workDir string
	auth    *server.Authenticator

	secretFile string
	cfg        DaemonConfig
	port       int
	cmd        *exec.Cmd
	exited     chan error
}

func NewProcessInfraManager(binary, workDir string) (*ProcessInfraManager, error) {
	if _, err := os.Stat(binary); err != nil {
		return nil, fmt.Errorf("prioschedd binary: %w", err)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	encoded := hex.EncodeToString(secret)
	secretFile := filepath.Join(workDir, "secret")
	if err := os.WriteFile(secretFile, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write secret: %w", err)
	}

	auth, err := server.NewAuthenticator([]byte(encoded))
	if err != nil {
		return nil, err
	}
	return &ProcessInfraManager{binary: binary, workDir: workDir, auth: auth, secretFile: secretFile}, nil
}

func (p *ProcessInfraManager) StartDaemon(cfg DaemonConfig) (string, error) {
	if p.cmd != nil {
		return "", errors.New("daemon already running")
	}
	port, err := freePort()
	if err != nil {
		return "", err
	}
	p.cfg, p.port = cfg, port
	return p.start()
}

func (p *ProcessInfraManager) start() (string, error) {
	args := []string{
		"serve",
		"--http-port", strconv.Itoa(p.port),
		"--auth-enabled",
		"--auth-secret-file", p.secretFile,
		"--log-format", "json",
	}
	if p.cfg.DataFolder != "" {
		args = append(args, "--data-folder", p.cfg.DataFolder)
	}
	if p.cfg.DefaultPriority != "" {
		args = append(args, "--default-priority", p.cfg.DefaultPriority)
	}
	if p.cfg.ShutdownTimeout != "" {
		args = append(args, "--shutdown-timeout", p.cfg.ShutdownTimeout)
	}

	logFile, err := os.OpenFile(filepath.Join(p.workDir, "prioschedd.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}

	cmd := exec.Command(p.binary, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		logFile.Close()
		return "", fmt.Errorf("failed to start prioschedd: %w", err)
	}
	zap.S().Infow("prioschedd started", "pid", cmd.Process.Pid, "port", p.port)

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		logFile.Close()
	}()
	p.cmd, p.exited = cmd, exited

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", p.port)
	if err := waitHealthy(baseURL, exited); err != nil {
		if errors.Is(err, errExitedEarly) {
			p.cmd = nil
		} else {
			_ = p.StopDaemon()
		}
		return "", err
	}
	return baseURL, nil
}

func (p *ProcessInfraManager) StopDaemon() error {
	if p.cmd == nil {
		return nil
	}
	defer func() { p.cmd = nil }()

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	select {
	case err := <-p.exited:
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return err
		}
		return nil
	case <-time.After(stopTimeout):
		zap.S().Warnw("prioschedd did not stop, killing", "pid", p.cmd.Process.Pid)
		_ = p.cmd.Process.Kill()
		<-p.exited
		return errors.New("prioschedd did not stop in time")
	}
}

// RestartDaemon stops and starts the daemon on the same port and data folder.
func (p *ProcessInfraManager) RestartDaemon() error {
	if err := p.StopDaemon(); err != nil {
		return err
	}
	_, err := p.start()
	return err
}

func (p *ProcessInfraManager) CanRestart() bool { return true }

func (p *ProcessInfraManager) GenerateToken(subject string) (string, error) {
	return p.auth.Issue(subject, time.Hour)
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func waitHealthy(baseURL string, exited <-chan error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		select {
		case err := <-exited:
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %v", errExitedEarly, err))
		default:
		}
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			return struct{}{}, err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return struct{}{}, fmt.Errorf("health returned %s", resp.Status)
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewConstantBackOff(100*time.Millisecond)))
	return err
}
