package commands

import (
	"os"

	"github.com/pivotal-cf/protogate/db"
	"github.com/pivotal-cf/protogate/manifest"
	"github.com/pivotal-cf/protogate/policy"
	"github.com/pivotal-cf/protogate/report"
)

type ReportCommand struct {
	Database  string   `long:"database" description:"path to probe database" required:"true" value-name:"PATH"`
	Manifest  string   `long:"manifest" description:"take approved versions from the manifest's probe section" value-name:"PATH"`
	Protocols []string `long:"protocol" description:"approved protocol version; may be repeated" value-name:"VERSION" default:"TLSv1.2" default:"TLSv1.3"`
}

func (command *ReportCommand) Execute(args []string) error {
	approved, err := command.policy()
	if err != nil {
		return err
	}

	database, err := db.OpenDatabase(command.Database)
	if err != nil {
		return err
	}
	defer database.Close()

	r, err := report.BuildProtocolViolationsReport(database, approved)
	if err != nil {
		return err
	}

	return showReport(os.Stdout, r)
}

func (command *ReportCommand) policy() (policy.Policy, error) {
	if command.Manifest == "" {
		return policy.Parse(command.Protocols)
	}

	m, err := manifest.Parse(command.Manifest)
	if err != nil {
		return policy.Policy{}, err
	}

	if m.Probe == nil {
		return policy.Parse(command.Protocols)
	}

	return m.Probe.Policy()
}
