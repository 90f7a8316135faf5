package state

import (
	"time"

	"djc/common"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start:  time.Now(),
		Output: common.OutputKindBoth,
	}
}
