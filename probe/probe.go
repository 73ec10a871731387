package probe

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pivotal-cf/protogate"
	"github.com/pivotal-cf/protogate/gatelog"
)

const (
	maxInFlight    = 5
	defaultTimeout = 5 * time.Second
)

type Prober interface {
	Probe(ctx context.Context, logger gatelog.Logger, host string, port string, versions []protogate.ProtocolVersion) (Result, error)
}

type TLSProber struct {
	Timeout time.Duration
}

func NewProber(timeout time.Duration) *TLSProber {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &TLSProber{Timeout: timeout}
}

// Probe checks every version in versions, or every known version when
// versions is empty, with the default timeout.
func Probe(ctx context.Context, logger gatelog.Logger, host string, port string, versions []protogate.ProtocolVersion) (Result, error) {
	return NewProber(defaultTimeout).Probe(ctx, logger, host, port, versions)
}

func release(logger gatelog.Logger, sem *semaphore.Weighted, wg *sync.WaitGroup) {
	logger.Debugf("Releasing locks")
	sem.Release(1)
	wg.Done()
}

func (p *TLSProber) Probe(ctx context.Context, logger gatelog.Logger, host string, port string, versions []protogate.ProtocolVersion) (Result, error) {
	if len(versions) == 0 {
		versions = protogate.ProtocolVersions
	}

	result := newResult(host, port)
	address := net.JoinHostPort(host, port)

	logger.Infof("Starting protocol probe for %s", address)

	sem := semaphore.NewWeighted(maxInFlight)
	resultChan := make(chan VersionResult, len(versions))
	wg := &sync.WaitGroup{}

	var acquireErr error
	for _, version := range versions {
		versionLogger := logger.With("address", address, "version", version.String())

		if err := sem.Acquire(ctx, 1); err != nil {
			versionLogger.Errorf("Failed to acquire lock: %q", err)
			acquireErr = err
			break
		}
		versionLogger.Debugf("Acquired lock")

		wg.Add(1)
		go p.testVersion(ctx, versionLogger, version, address, sem, wg, resultChan)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for vr := range resultChan {
		result.Versions[vr.Version] = vr
	}

	if acquireErr != nil {
		return result, fmt.Errorf("probe of %s interrupted: %w", address, acquireErr)
	}

	logger.Infof("Finished protocol probe for %s: accepts %v", address, result.Accepted())
	return result, nil
}

func (p *TLSProber) testVersion(
	ctx context.Context,
	logger gatelog.Logger,
	version protogate.ProtocolVersion,
	address string,
	sem *semaphore.Weighted,
	wg *sync.WaitGroup,
	resultChan chan VersionResult) {
	defer release(logger, sem, wg)

	dialer := &net.Dialer{Timeout: p.Timeout}

	attempt := attemptHandshake
	if !version.Speakable() {
		attempt = attemptLegacyHandshake
	}

	outcome, err := attempt(ctx, logger, dialer, address, version)
	vr := VersionResult{Version: version, Err: err}

	if err != nil {
		logger.Warnf("Could not reach endpoint: %s", err)
		resultChan <- vr
		return
	}

	vr.Accepted = outcome.providesCert
	vr.Mutual = outcome.wantsCert
	if !vr.Accepted && outcome.err != nil {
		vr.Detail = outcome.err.Error()
	}

	if vr.Accepted {
		logger.Infof("%s accepts %s", address, version)
	} else {
		logger.Infof("%s refuses %s (%s)", address, version, vr.Detail)
	}

	resultChan <- vr
}
