package commands

import (
	"fmt"
	"os"

	"code.cloudfoundry.org/lager"

	"github.com/pivotal-cf/protogate/gate"
	"github.com/pivotal-cf/protogate/gatelog"
)

func newEnforcer() (*gate.Enforcer, error) {
	logger, err := gatelog.NewLogger(Protogate.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	return gate.NewEnforcer(logger), nil
}

func newLagerLogger() lager.Logger {
	level := lager.INFO
	if Protogate.Debug {
		level = lager.DEBUG
	}

	logger := lager.NewLogger("protogate")
	logger.RegisterSink(lager.NewWriterSink(os.Stderr, level))
	return logger
}
