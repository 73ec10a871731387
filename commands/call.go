package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/pivotal-cf/protogate/doubleit"
	"github.com/pivotal-cf/protogate/manifest"
)

type CallCommand struct {
	Manifest string `long:"manifest" description:"path to manifest with a client section" required:"true" value-name:"PATH"`
	Number   int    `long:"number" description:"number to double" required:"true" value-name:"INT"`
}

func (command *CallCommand) Execute(args []string) error {
	m, err := manifest.Parse(command.Manifest)
	if err != nil {
		return err
	}

	if m.Client == nil {
		return errors.New("manifest has no client section")
	}

	if m.Client.Endpoint == "" {
		return errors.New("client: endpoint undefined")
	}

	p, err := m.Client.Policy()
	if err != nil {
		return err
	}

	tlsConfig, err := m.Client.TLSConfig()
	if err != nil {
		return err
	}

	enforcer, err := newEnforcer()
	if err != nil {
		return err
	}

	client, err := doubleit.NewClient(enforcer, doubleit.ClientConfig{
		Endpoint:  m.Client.Endpoint,
		Policy:    p,
		TLSConfig: tlsConfig,
		Verifier:  m.Client.Verifier(),
		Username:  m.Client.Username,
		Passwords: doubleit.StaticPassword(m.Client.Password),
	})
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.DoubleIt(context.Background(), command.Number)
	if err != nil {
		return err
	}

	fmt.Println(result)

	return nil
}
