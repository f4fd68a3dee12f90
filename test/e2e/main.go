package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/kubev2v/prio-scheduler/test/e2e/infra"
)

type configuration struct {
	InfraMode  string // "process" or "external"
	Binary     string
	WorkDir    string
	APIURL     string
	SecretFile string
	KeepData   bool
}

var (
	cfg          configuration
	infraManager infra.InfraManager
)

func (c configuration) Validate() error {
	switch c.InfraMode {
	case "process":
		if c.Binary == "" {
			return errors.New("prioschedd binary is empty")
		}
	case "external":
		u, err := url.Parse(c.APIURL)
		if err != nil {
			return fmt.Errorf("failed to parse api url: %v", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("api url %q is not absolute", c.APIURL)
		}
	default:
		return fmt.Errorf("invalid infra-mode %q: must be 'process' or 'external'", c.InfraMode)
	}
	return nil
}

func main() {
	flag.StringVar(&cfg.InfraMode, "infra-mode", "process", "Infrastructure mode: 'process' (spawn the binary) or 'external' (already running)")
	flag.StringVar(&cfg.Binary, "binary", "./bin/prioschedd", "Path to the prioschedd binary (process mode)")
	flag.StringVar(&cfg.WorkDir, "work-dir", "", "Folder for the secret, logs and journal (temporary when empty)")
	flag.StringVar(&cfg.APIURL, "api-url", "http://localhost:8000", "Daemon url (external mode)")
	flag.StringVar(&cfg.SecretFile, "secret-file", "", "Daemon token secret (external mode, empty when auth is off)")
	flag.BoolVar(&cfg.KeepData, "keep-data", false, "Keep the work folder after completion (useful for debugging)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("failed to validate configuration: %v", err)
	}

	if cfg.WorkDir == "" {
		dir, err := os.MkdirTemp("", "prioschedd-e2e-")
		if err != nil {
			log.Fatalf("failed to create work dir: %v", err)
		}
		cfg.WorkDir = dir
	}
	if !cfg.KeepData {
		defer os.RemoveAll(cfg.WorkDir)
	}

	switch cfg.InfraMode {
	case "process":
		im, err := infra.NewProcessInfraManager(cfg.Binary, cfg.WorkDir)
		if err != nil {
			log.Fatalf("failed to create process infra manager: %v", err)
		}
		infraManager = im
	case "external":
		infraManager = infra.NewExternalInfraManager(cfg.APIURL, cfg.SecretFile)
	}

	RegisterFailHandler(Fail)
	if !RunSpecs(&testing.T{}, "E2E Suite") {
		logger.Sync()
		os.Exit(1)
	}
}
