package memory_test

import (
	"testing"

	"github.com/prevaildb/prevail/commandlog/memory"
	"github.com/prevaildb/prevail/commandlog/suite"
	"github.com/prevaildb/prevail/core"
)

func TestSuite(t *testing.T) {
	f := func() (core.Log, func(), error) {
		return memory.Create(), func() {}, nil
	}
	suite.Test(t, f)
}
