package solo

import (
	"os"

	"github.com/google/uuid"
)

// PodNameEnv is the environment variable consulted by DefaultIdentity.
const PodNameEnv = "POD_NAME"

// DefaultIdentity returns a holder identity for this process.
//
// It prefers the POD_NAME environment variable (set through the Kubernetes
// downward API). Outside a pod it falls back to the hostname with a random
// suffix, so two processes on one host never share an identity.
//
// Returns:
//   - string: Non-empty identity
func DefaultIdentity() string {
	if name := os.Getenv(PodNameEnv); name != "" {
		return name
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-pod"
	}

	return host + "-" + uuid.NewString()[:8]
}
