package testing

import (
	"testing"

	"github.com/arloliu/solo/internal/logger"
	"github.com/arloliu/solo/types"
)

// NewTestLogger creates a logger that writes to the test log.
// This is useful for seeing agent and store output during test runs.
func NewTestLogger(t *testing.T) types.Logger {
	return logger.NewTest(t)
}
