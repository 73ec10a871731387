package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/pivotal-cf/protogate"
	"github.com/pivotal-cf/protogate/db"
	"github.com/pivotal-cf/protogate/gatelog"
	"github.com/pivotal-cf/protogate/manifest"
	"github.com/pivotal-cf/protogate/policy"
	"github.com/pivotal-cf/protogate/probe"
)

type ProbeCommand struct {
	Manifest  string   `long:"manifest" description:"path to manifest with a probe section" value-name:"PATH"`
	Address   []string `long:"address" description:"endpoint to probe; may be repeated" value-name:"HOST:PORT"`
	Protocols []string `long:"protocol" description:"protocol version to try; defaults to all known versions" value-name:"VERSION"`
	Database  string   `long:"database" description:"location of database where probe output will be stored" value-name:"PATH" default:"./database.db"`
}

func (command *ProbeCommand) Execute(args []string) error {
	logger, err := gatelog.NewLogger(Protogate.Debug)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	targets := command.Address
	var expected policy.Policy

	if command.Manifest != "" {
		m, err := manifest.Parse(command.Manifest)
		if err != nil {
			return err
		}

		if m.Probe == nil {
			return errors.New("manifest has no probe section")
		}

		targets = append(targets, m.Probe.Targets...)

		expected, err = m.Probe.Policy()
		if err != nil {
			return err
		}
	}

	if len(targets) == 0 {
		return errors.New("nothing to probe: pass --address or a manifest with probe targets")
	}

	var versions []protogate.ProtocolVersion
	if len(command.Protocols) > 0 {
		p, err := policy.Parse(command.Protocols)
		if err != nil {
			return err
		}
		versions = p.Versions()
	}

	prober := probe.NewProber(0)

	var results []probe.Result
	for _, target := range targets {
		host, port, err := net.SplitHostPort(target)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", target, err)
		}

		result, err := prober.Probe(context.Background(), logger, host, port, versions)
		if err != nil {
			return err
		}

		results = append(results, result)
	}

	if err := showProbeResults(os.Stdout, results, expected); err != nil {
		return err
	}

	database, err := db.OpenOrCreateDatabase(command.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if _, err := database.SaveProbe(results); err != nil {
		return fmt.Errorf("failed to save to database: %w", err)
	}

	fmt.Println("Probe saved in SQLite3 database:", command.Database)

	return nil
}
