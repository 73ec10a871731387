package probe_test

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zapcore"

	"github.com/pivotal-cf/paraphernalia/test/certtest"

	"github.com/pivotal-cf/protogate"
	"github.com/pivotal-cf/protogate/gate"
	"github.com/pivotal-cf/protogate/gatelog"
	"github.com/pivotal-cf/protogate/policy"
	"github.com/pivotal-cf/protogate/probe"
)

var _ = Describe("Protocol Probe", func() {
	var (
		server *httptest.Server
		logger gatelog.Logger
	)

	BeforeEach(func() {
		logger = gatelog.NewWriterLogger(GinkgoWriter, zapcore.DebugLevel)

		server = httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, "hello?")
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	Context("probing a server that supports legacy TLS", func() {
		BeforeEach(func() {
			config := &tls.Config{
				MinVersion: tls.VersionTLS10,
				MaxVersion: tls.VersionTLS11, // no tls 1.2
			}

			server.TLS = config
			server.StartTLS()
		})

		It("reports each version separately", func() {
			host, port := hostport(server.URL)

			result, err := probe.Probe(context.Background(), logger, host, port, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.HasTLS()).To(BeTrue())
			Expect(result.HasMutual()).To(BeFalse())
			Expect(result.Errors()).To(BeEmpty())

			Expect(result.Versions).To(HaveLen(len(protogate.ProtocolVersions)))
			Expect(result.Accepted()).To(Equal([]protogate.ProtocolVersion{
				protogate.VersionTLS10,
				protogate.VersionTLS11,
			}))

			Expect(result.Versions[protogate.VersionSSL30].Accepted).To(BeFalse())
			Expect(result.Versions[protogate.VersionSSL30].Detail).NotTo(BeEmpty())
			Expect(result.Versions[protogate.VersionTLS13].Accepted).To(BeFalse())
		})

		It("lists the accepted versions a policy forbids", func() {
			host, port := hostport(server.URL)

			result, err := probe.Probe(context.Background(), logger, host, port, nil)
			Expect(err).NotTo(HaveOccurred())

			modern, err := policy.Build(protogate.VersionTLS12, protogate.VersionTLS13)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Violations(modern)).To(Equal([]protogate.ProtocolVersion{
				protogate.VersionTLS10,
				protogate.VersionTLS11,
			}))
		})

		It("only tries the versions it is asked to", func() {
			host, port := hostport(server.URL)

			result, err := probe.NewProber(0).Probe(context.Background(), logger, host, port, []protogate.ProtocolVersion{protogate.VersionTLS11})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Versions).To(HaveLen(1))
			Expect(result.Versions[protogate.VersionTLS11].Accepted).To(BeTrue())
		})
	})

	Context("probing a server that does not support TLS", func() {
		BeforeEach(func() {
			server.Start()
		})

		It("accepts nothing", func() {
			host, port := hostport(server.URL)

			result, err := probe.Probe(context.Background(), logger, host, port, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.HasTLS()).To(BeFalse())
			Expect(result.HasMutual()).To(BeFalse())
			Expect(result.Errors()).To(BeEmpty())
		})
	})

	Context("probing a server that supports mutual TLS", func() {
		var listener net.Listener

		BeforeEach(func() {
			ca, err := certtest.BuildCA("probe")
			Expect(err).NotTo(HaveOccurred())

			pool, err := ca.CertPool()
			Expect(err).NotTo(HaveOccurred())

			cert, err := ca.BuildSignedCertificate("server")
			Expect(err).NotTo(HaveOccurred())

			tlsCert, err := cert.TLSCertificate()
			Expect(err).NotTo(HaveOccurred())

			config := &tls.Config{
				MinVersion:   tls.VersionTLS12,
				ClientAuth:   tls.RequireAndVerifyClientCert,
				ClientCAs:    pool,
				Certificates: []tls.Certificate{tlsCert},
			}

			listener, err = tls.Listen("tcp", "127.0.0.1:0", config)
			Expect(err).NotTo(HaveOccurred())

			go http.Serve(listener, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintln(w, "hello?")
			}))
		})

		AfterEach(func() {
			listener.Close()
		})

		It("notices the certificate request", func() {
			host, port, err := net.SplitHostPort(listener.Addr().String())
			Expect(err).NotTo(HaveOccurred())

			result, err := probe.Probe(context.Background(), logger, host, port, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.HasTLS()).To(BeTrue())
			Expect(result.HasMutual()).To(BeTrue())
			Expect(result.Accepted()).To(Equal([]protogate.ProtocolVersion{
				protogate.VersionTLS12,
				protogate.VersionTLS13,
			}))
		})
	})

	Context("probing a gated server", func() {
		var listener net.Listener

		BeforeEach(func() {
			ca, err := certtest.BuildCA("probe")
			Expect(err).NotTo(HaveOccurred())

			cert, err := ca.BuildSignedCertificate("server")
			Expect(err).NotTo(HaveOccurred())

			tlsCert, err := cert.TLSCertificate()
			Expect(err).NotTo(HaveOccurred())

			p, err := policy.Build(protogate.VersionTLS12)
			Expect(err).NotTo(HaveOccurred())

			factory := gate.NewListenerFactory(&tls.Config{Certificates: []tls.Certificate{tlsCert}})
			Expect(gate.NewEnforcer(logger).AttachToServer(p, factory)).To(Succeed())

			listener, err = factory.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())

			go http.Serve(listener, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintln(w, "hello?")
			}))
		})

		AfterEach(func() {
			listener.Close()
		})

		It("finds only the allowed version", func() {
			host, port, err := net.SplitHostPort(listener.Addr().String())
			Expect(err).NotTo(HaveOccurred())

			result, err := probe.Probe(context.Background(), logger, host, port, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Accepted()).To(Equal([]protogate.ProtocolVersion{protogate.VersionTLS12}))
			Expect(result.Versions[protogate.VersionSSL30].Detail).To(ContainSubstring("protocol version not supported"))
		})
	})

	Context("probing an endpoint that is not listening", func() {
		It("records the transport errors", func() {
			closed, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			host, port, err := net.SplitHostPort(closed.Addr().String())
			Expect(err).NotTo(HaveOccurred())
			closed.Close()

			result, err := probe.Probe(context.Background(), logger, host, port, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.HasTLS()).To(BeFalse())
			Expect(result.Errors()).To(HaveLen(len(protogate.ProtocolVersions)))
		})
	})
})

func hostport(uri string) (string, string) {
	pu, err := url.Parse(uri)
	Expect(err).ShouldNot(HaveOccurred())

	host, port, err := net.SplitHostPort(pu.Host)
	Expect(err).ShouldNot(HaveOccurred())

	return host, port
}
