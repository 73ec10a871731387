package hello_test

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"io/ioutil"
	"net"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/pivotal-cf/protogate"
	"github.com/pivotal-cf/protogate/hello"
)

func reader(data []byte) *bufio.Reader {
	return bufio.NewReaderSize(bytes.NewReader(data), hello.MaxRecordSize)
}

var _ = Describe("ClientHello", func() {
	Describe("Read", func() {
		It("parses a hand-built legacy hello", func() {
			record, err := hello.Marshal(protogate.VersionTLS11, "gate.example.com")
			Expect(err).NotTo(HaveOccurred())

			ch, err := hello.Read(reader(record))
			Expect(err).NotTo(HaveOccurred())

			Expect(ch.RecordVersion).To(Equal(protogate.VersionTLS10))
			Expect(ch.LegacyVersion).To(Equal(protogate.VersionTLS11))
			Expect(ch.SupportedVersions).To(BeEmpty())
			Expect(ch.ServerName).To(Equal("gate.example.com"))
			Expect(ch.Offered()).To(Equal([]protogate.ProtocolVersion{
				protogate.VersionTLS11,
				protogate.VersionTLS10,
				protogate.VersionSSL30,
			}))
			Expect(ch.Highest()).To(Equal(protogate.VersionTLS11))
		})

		It("parses an SSLv3 hello", func() {
			record, err := hello.Marshal(protogate.VersionSSL30, "gate.example.com")
			Expect(err).NotTo(HaveOccurred())

			ch, err := hello.Read(reader(record))
			Expect(err).NotTo(HaveOccurred())

			Expect(ch.RecordVersion).To(Equal(protogate.VersionSSL30))
			Expect(ch.ServerName).To(BeEmpty())
			Expect(ch.Offered()).To(Equal([]protogate.ProtocolVersion{protogate.VersionSSL30}))
			Expect(ch.Highest()).To(Equal(protogate.VersionSSL30))
		})

		It("leaves the record in the reader", func() {
			record, err := hello.Marshal(protogate.VersionTLS12, "")
			Expect(err).NotTo(HaveOccurred())

			r := reader(record)
			_, err = hello.Read(r)
			Expect(err).NotTo(HaveOccurred())

			remaining, err := ioutil.ReadAll(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).To(Equal(record))
		})

		It("reads supported_versions from a crypto/tls client", func() {
			clientConn, serverConn := net.Pipe()
			defer serverConn.Close()

			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				client := tls.Client(clientConn, &tls.Config{
					ServerName: "gate.example.com",
					MinVersion: tls.VersionTLS12,
					MaxVersion: tls.VersionTLS13,
				})
				Expect(client.Handshake()).To(HaveOccurred())
			}()

			ch, err := hello.Read(bufio.NewReaderSize(serverConn, hello.MaxRecordSize))
			Expect(err).NotTo(HaveOccurred())
			serverConn.Close()
			Eventually(done).Should(BeClosed())

			Expect(ch.SupportedVersions).To(ContainElement(protogate.VersionTLS13))
			Expect(ch.ServerName).To(Equal("gate.example.com"))
			Expect(ch.Offered()).To(Equal([]protogate.ProtocolVersion{
				protogate.VersionTLS13,
				protogate.VersionTLS12,
			}))
		})

		It("rejects records that are not handshakes", func() {
			_, err := hello.Read(reader([]byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")))
			Expect(err).To(Equal(hello.ErrNotHandshake))
		})

		It("rejects a hello longer than its record", func() {
			_, err := hello.Read(reader([]byte{22, 3, 1, 0, 4, 1, 0, 0, 100}))
			Expect(err).To(Equal(hello.ErrMalformed))
		})
	})

	Describe("Marshal", func() {
		It("refuses versions negotiated through supported_versions", func() {
			_, err := hello.Marshal(protogate.VersionTLS13, "")
			Expect(err).To(HaveOccurred())
		})

		It("refuses unknown versions", func() {
			_, err := hello.Marshal(protogate.ProtocolVersion(0x0200), "")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("ServerResponse", func() {
	It("reads a protocol_version alert", func() {
		var buf bytes.Buffer
		Expect(hello.WriteAlert(&buf, protogate.VersionSSL30, hello.AlertProtocolVersion)).To(Succeed())

		resp, err := hello.ReadServerResponse(bufio.NewReader(&buf))
		Expect(err).NotTo(HaveOccurred())

		Expect(resp.Alert).To(BeTrue())
		Expect(resp.AlertDescription).To(Equal(hello.AlertProtocolVersion))
		Expect(resp.Accepted()).To(BeFalse())
	})

	It("reads the version of a ServerHello", func() {
		record := []byte{22, 3, 1, 0, 6, 2, 0, 0, 2, 3, 2}

		resp, err := hello.ReadServerResponse(bufio.NewReader(bytes.NewReader(record)))
		Expect(err).NotTo(HaveOccurred())

		Expect(resp.Alert).To(BeFalse())
		Expect(resp.Version).To(Equal(protogate.VersionTLS11))
		Expect(resp.Accepted()).To(BeTrue())
	})

	It("rejects other record types", func() {
		record := []byte{23, 3, 3, 0, 1, 0}

		_, err := hello.ReadServerResponse(bufio.NewReader(bytes.NewReader(record)))
		Expect(err).To(Equal(hello.ErrNotHandshake))
	})
})
