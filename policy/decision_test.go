package policy_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/pivotal-cf/protogate"
	"github.com/pivotal-cf/protogate/policy"
)

var _ = Describe("Evaluate", func() {
	var modern policy.Policy

	BeforeEach(func() {
		var err error
		modern, err = policy.Build(protogate.VersionTLS12, protogate.VersionTLS13)
		Expect(err).NotTo(HaveOccurred())
	})

	It("accepts exactly the allowed versions", func() {
		for _, v := range protogate.ProtocolVersions {
			d := policy.Evaluate(policy.HandshakeAttempt{Version: v, Side: policy.ServerSide}, modern)

			Expect(d.Accepted()).To(Equal(modern.Allows(v)), v.String())
			Expect(d.Version).To(Equal(v))
		}
	})

	It("gives the same answer every time", func() {
		attempt := policy.HandshakeAttempt{Version: protogate.VersionTLS11, Side: policy.ClientSide, Remote: "10.0.0.1:443"}

		first := policy.Evaluate(attempt, modern)
		Expect(policy.Evaluate(attempt, modern)).To(Equal(first))
	})

	It("explains a rejection", func() {
		d := policy.Evaluate(policy.HandshakeAttempt{Version: protogate.VersionSSL30, Side: policy.ServerSide}, modern)

		Expect(d.Verdict).To(Equal(policy.Reject))
		Expect(d.Reason).To(Equal("server policy does not allow protocol version SSLv3 (allowed: [TLSv1.2 TLSv1.3])"))

		var rejected *policy.HandshakeRejected
		Expect(errors.As(d.Err(), &rejected)).To(BeTrue())
		Expect(rejected.Decision).To(Equal(d))
	})

	It("has no error for an accept", func() {
		d := policy.Evaluate(policy.HandshakeAttempt{Version: protogate.VersionTLS13}, modern)
		Expect(d.Err()).NotTo(HaveOccurred())
	})

	It("rejects everything against the zero policy", func() {
		d := policy.Evaluate(policy.HandshakeAttempt{Version: protogate.VersionTLS13}, policy.Policy{})
		Expect(d.Accepted()).To(BeFalse())
	})

	It("never accepts an empty decision", func() {
		Expect(policy.Decision{}.Accepted()).To(BeFalse())
	})

	It("records aborts as rejections", func() {
		d := policy.Aborted(policy.HandshakeAttempt{Version: protogate.VersionTLS12, Side: policy.ClientSide}, errors.New("EOF"))

		Expect(d.Accepted()).To(BeFalse())
		Expect(d.Reason).To(Equal("client handshake aborted: EOF"))
	})
})

var _ = Describe("TransportError", func() {
	It("unwraps to its cause", func() {
		cause := errors.New("connection reset")
		err := &policy.TransportError{Op: "handshake", Err: cause}

		Expect(err.Error()).To(Equal("transport: handshake: connection reset"))
		Expect(errors.Is(err, cause)).To(BeTrue())
		Expect(err.Timeout()).To(BeFalse())
	})
})
