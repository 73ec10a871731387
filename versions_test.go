package protogate_test

import (
	"crypto/tls"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/pivotal-cf/protogate"
)

var _ = Describe("ProtocolVersion", func() {
	DescribeTable("parsing configuration names",
		func(name string, expected protogate.ProtocolVersion) {
			v, err := protogate.ParseProtocolVersion(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(expected))
			Expect(v.String()).To(Equal(name))
		},
		Entry("SSLv3", "SSLv3", protogate.VersionSSL30),
		Entry("TLSv1", "TLSv1", protogate.VersionTLS10),
		Entry("TLSv1.1", "TLSv1.1", protogate.VersionTLS11),
		Entry("TLSv1.2", "TLSv1.2", protogate.VersionTLS12),
		Entry("TLSv1.3", "TLSv1.3", protogate.VersionTLS13),
	)

	DescribeTable("rejecting names that are close but not exact",
		func(name string) {
			_, err := protogate.ParseProtocolVersion(name)
			Expect(err).To(MatchError(ContainSubstring("unrecognized protocol version")))
		},
		Entry("lower case", "tlsv1.2"),
		Entry("missing v", "TLS1.2"),
		Entry("SSLv2", "SSLv2"),
		Entry("empty", ""),
	)

	It("lists versions oldest first", func() {
		Expect(protogate.ProtocolVersions).To(Equal([]protogate.ProtocolVersion{
			protogate.VersionSSL30,
			protogate.VersionTLS10,
			protogate.VersionTLS11,
			protogate.VersionTLS12,
			protogate.VersionTLS13,
		}))
	})

	It("matches the crypto/tls wire values", func() {
		Expect(protogate.VersionTLS12.TLSVersion()).To(Equal(uint16(tls.VersionTLS12)))
		Expect(protogate.FromTLS(tls.VersionTLS13)).To(Equal(protogate.VersionTLS13))
	})

	It("knows crypto/tls cannot speak SSLv3", func() {
		Expect(protogate.VersionSSL30.Known()).To(BeTrue())
		Expect(protogate.VersionSSL30.Speakable()).To(BeFalse())
		Expect(protogate.VersionTLS10.Speakable()).To(BeTrue())
	})

	It("names unknown versions by wire value", func() {
		v := protogate.ProtocolVersion(0x0200)
		Expect(v.Known()).To(BeFalse())
		Expect(v.String()).To(Equal("unknown(0x0200)"))
	})

	Describe("SpeakableRange", func() {
		It("spans the speakable versions", func() {
			lo, hi, ok := protogate.SpeakableRange([]protogate.ProtocolVersion{
				protogate.VersionTLS13,
				protogate.VersionSSL30,
				protogate.VersionTLS11,
			})
			Expect(ok).To(BeTrue())
			Expect(lo).To(Equal(uint16(tls.VersionTLS11)))
			Expect(hi).To(Equal(uint16(tls.VersionTLS13)))
		})

		It("is not ok without a speakable version", func() {
			_, _, ok := protogate.SpeakableRange([]protogate.ProtocolVersion{protogate.VersionSSL30})
			Expect(ok).To(BeFalse())
		})
	})
})
