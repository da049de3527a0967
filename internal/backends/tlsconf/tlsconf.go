// Package tlsconf holds the certificate file and warning helpers shared by
// the Consul and Vault adapters.
package tlsconf

import (
	"os"
	"strings"

	"github.com/systmms/containerlib/internal/logging"
)

// FileExists reports whether path names a regular file
func FileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadTrimmed returns the trimmed content of path, or "" when it cannot be read.
func ReadTrimmed(path string) string {
	if !FileExists(path) {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// ClientCertPair reports whether both client certificate files exist
func ClientCertPair(certFile, keyFile string) bool {
	return FileExists(certFile) && FileExists(keyFile)
}

// WarnUnverified logs the warning for https without certificate
// verification. Adapters call it once, when they are created.
func WarnUnverified(logger *logging.Logger, backend, scheme string, verify bool) {
	if scheme == "https" && !verify {
		logger.WithField("backend", backend).Warn("%s connection uses https without certificate verification", backend)
	}
}
