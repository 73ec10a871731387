package manifest

import (
	"errors"
	"fmt"
	"net"
	"os"

	yaml "gopkg.in/yaml.v2"
)

func Parse(filePath string) (Manifest, error) {
	bs, err := os.ReadFile(filePath)
	if err != nil {
		return Manifest{}, err
	}

	var manifest Manifest

	err = yaml.UnmarshalStrict(bs, &manifest)
	if err != nil {
		return Manifest{}, fmt.Errorf("incorrect yaml format: %w", err)
	}

	err = validate(manifest)
	if err != nil {
		return Manifest{}, err
	}

	return manifest, nil
}

func validate(m Manifest) error {
	if m.Server == nil && m.Client == nil && m.Probe == nil {
		return errors.New("file is empty")
	}

	if s := m.Server; s != nil {
		if s.Listen == "" {
			return errors.New("server: listen address undefined")
		}
		if _, _, err := net.SplitHostPort(s.Listen); err != nil {
			return fmt.Errorf("server: invalid listen address: %w", err)
		}
		if s.Certificate == "" || s.PrivateKey == "" {
			return errors.New("server: certificate or private_key missing")
		}
		if _, err := s.Policy(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	if c := m.Client; c != nil {
		if _, err := c.Policy(); err != nil {
			return fmt.Errorf("client: %w", err)
		}
	}

	if p := m.Probe; p != nil {
		if len(p.Targets) == 0 {
			return errors.New("probe: no targets")
		}
		for _, target := range p.Targets {
			if _, _, err := net.SplitHostPort(target); err != nil {
				return fmt.Errorf("probe: invalid target %q: %w", target, err)
			}
		}
		if _, err := p.Policy(); err != nil {
			return fmt.Errorf("probe: %w", err)
		}
	}

	return nil
}
