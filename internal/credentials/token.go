package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNoToken is returned when no Hugging Face token can be found.
var ErrNoToken = errors.New("token not found")

// Provider supplies the bearer token for the hosted endpoint.
type Provider interface {
	Token() (string, bool)
}

// HFCache looks the token up the way the Hugging Face tooling stores it:
// HF_TOKEN, then HF_TOKEN_PATH, then $HF_HOME/token, then ~/.cache/huggingface/token.
type HFCache struct {
	Getenv  func(string) string
	HomeDir func() (string, error)
}

// NewHFCache returns an HFCache backed by the process environment.
func NewHFCache() HFCache {
	return HFCache{Getenv: os.Getenv, HomeDir: os.UserHomeDir}
}

// Token returns the first non-empty token found.
func (c HFCache) Token() (string, bool) {
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	if tok := strings.TrimSpace(getenv("HF_TOKEN")); tok != "" {
		logrus.Debug("Using token from HF_TOKEN")
		return tok, true
	}

	for _, path := range c.candidatePaths(getenv) {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logrus.WithError(err).WithField("path", path).Warn("Could not read token file")
			}
			continue
		}
		if tok := strings.TrimSpace(string(data)); tok != "" {
			logrus.WithField("path", path).Debug("Using token from file")
			return tok, true
		}
	}
	return "", false
}

func (c HFCache) candidatePaths(getenv func(string) string) []string {
	var paths []string
	if p := getenv("HF_TOKEN_PATH"); p != "" {
		paths = append(paths, p)
	}
	if home := getenv("HF_HOME"); home != "" {
		paths = append(paths, filepath.Join(home, "token"))
		return paths
	}

	homeDir := c.HomeDir
	if homeDir == nil {
		homeDir = os.UserHomeDir
	}
	if dir, err := homeDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".cache", "huggingface", "token"))
	}
	return paths
}

// Static is a fixed token, mostly for tests. An empty value means no token.
type Static string

// Token returns the static token.
func (s Static) Token() (string, bool) {
	return string(s), s != ""
}
