// Package gcpauth finds Google Cloud application default credentials and, when
// there are none, bootstraps them through the gcloud command line tool.
package gcpauth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/cloudresourcemanager/v1"

	"github.com/zostay/sdv-admin/pkg/config"
)

// CredentialsFile is the name gcloud stores application default credentials
// under.
const CredentialsFile = "application_default_credentials.json"

// ErrNoCredentials is returned when every login attempt left no credentials
// behind.
var ErrNoCredentials = errors.New("no Google Cloud application default credentials")

// Env is the part of the process environment credential discovery reads.
type Env struct {
	Getenv  func(string) string
	HomeDir func() (string, error)
	GOOS    string
}

// OSEnv returns the environment of the running process.
func OSEnv() Env {
	return Env{
		Getenv:  os.Getenv,
		HomeDir: os.UserHomeDir,
		GOOS:    runtime.GOOS,
	}
}

func isFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// CredentialsPresent reports whether application default credentials can be
// found: GOOGLE_APPLICATION_CREDENTIALS is set, or gcloud stored credentials in
// $CLOUDSDK_CONFIG, ~/.config/gcloud, or %APPDATA%\gcloud on Windows.
func (e Env) CredentialsPresent() bool {
	if e.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		return true
	}

	if dir := e.Getenv("CLOUDSDK_CONFIG"); dir != "" {
		if isFile(filepath.Join(dir, CredentialsFile)) {
			return true
		}
	}

	if e.GOOS == "windows" {
		if dir := e.Getenv("APPDATA"); dir != "" {
			return isFile(filepath.Join(dir, "gcloud", CredentialsFile))
		}
		return false
	}

	home, err := e.HomeDir()
	if err != nil {
		return false
	}
	return isFile(filepath.Join(home, ".config", "gcloud", CredentialsFile))
}

// Runner runs an external command.
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner runs the command attached to the terminal so gcloud can prompt.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Authenticator makes sure application default credentials exist.
type Authenticator struct {
	Env Env
	Run Runner
}

// New returns an Authenticator for the running process.
func New() *Authenticator {
	return &Authenticator{Env: OSEnv(), Run: ExecRunner}
}

// Login makes sure credentials are present. When they are missing it runs
// "gcloud auth application-default login", which opens a browser, and when
// that leaves no credentials behind it tries again with --no-launch-browser,
// which prints a link to open on another machine.
func (a *Authenticator) Login(ctx context.Context) error {
	logger := config.LoggerFrom(ctx).Sugar()

	if a.Env.CredentialsPresent() {
		logger.Debug("credentials already exist")
		return nil
	}

	attempts := [][]string{
		{"auth", "application-default", "login"},
		{"auth", "application-default", "login", "--no-launch-browser"},
	}

	var lastErr error
	for _, args := range attempts {
		logger.Infow("there are no credentials, logging in", "command", append([]string{"gcloud"}, args...))
		lastErr = a.Run(ctx, "gcloud", args...)
		if lastErr != nil {
			logger.Warnw("gcloud login failed", "error", lastErr)
		}
		if a.Env.CredentialsPresent() {
			return nil
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrNoCredentials, lastErr)
	}
	return ErrNoCredentials
}

// Default returns the application default credentials scoped for managing
// project IAM policies.
func Default(ctx context.Context) (*google.Credentials, error) {
	creds, err := google.FindDefaultCredentials(ctx, cloudresourcemanager.CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("error during authentication: %w", err)
	}
	return creds, nil
}
