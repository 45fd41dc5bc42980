package pipeline

import (
	"testing"

	"go.uber.org/goleak"
)

// Every attempt owns its session end to end, so the package must leave no
// goroutines behind once Run returns.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
