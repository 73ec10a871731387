package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pivotal-cf/protogate/doubleit"
	"github.com/pivotal-cf/protogate/manifest"
)

type ServeCommand struct {
	Manifest string `long:"manifest" description:"path to manifest with a server section" required:"true" value-name:"PATH"`
}

func (command *ServeCommand) Execute(args []string) error {
	m, err := manifest.Parse(command.Manifest)
	if err != nil {
		return err
	}

	if m.Server == nil {
		return errors.New("manifest has no server section")
	}

	p, err := m.Server.Policy()
	if err != nil {
		return err
	}

	tlsConfig, err := m.Server.TLSConfig()
	if err != nil {
		return err
	}

	enforcer, err := newEnforcer()
	if err != nil {
		return err
	}

	server, err := doubleit.NewServer(newLagerLogger(), enforcer, p, tlsConfig, m.Server.Users)
	if err != nil {
		return err
	}

	addr, err := server.Start(m.Server.Listen)
	if err != nil {
		return err
	}

	fmt.Printf("DoubleIt listening on https://%s%s (protocols: %s)\n", addr, doubleit.Path, p)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	<-signals

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
