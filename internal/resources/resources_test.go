package resources

import (
	"context"
	"errors"
	"io/fs"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/ssh"
)

var _ = Describe("SSHTarget", func() {
	It("defaults to port 22", func() {
		Expect(SSHTarget{Host: "10.0.0.1"}.Address()).To(Equal("10.0.0.1:22"))
		Expect(SSHTarget{Host: "10.0.0.1", Port: "2222"}.Address()).To(Equal("10.0.0.1:2222"))
		Expect(SSHTarget{Host: "fd00::1"}.Address()).To(Equal("[fd00::1]:22"))
	})

	It("refuses empty socket paths and hosts before dialing", func() {
		_, err := DialUnix(SSHTarget{Host: "10.0.0.1"}, "")
		Expect(err).To(HaveOccurred())

		_, err = DialUnix(SSHTarget{}, "/var/run/libvirt/libvirt-sock")
		Expect(err).To(MatchError(ContainSubstring("ssh host is empty")))
	})

	It("stops retrying on fatal errors", func() {
		cfg := defaultRetryCfg

		Expect(fatalSSHError(errors.New("ssh: handshake failed: permission denied"), &cfg)).To(BeTrue())
		Expect(fatalSSHError(errors.New("dial tcp: connect: connection refused"), &cfg)).To(BeFalse())
		Expect(fatalSSHError(context.Canceled, &cfg)).To(BeTrue())
		Expect(fatalSSHError(errors.New("something else"), &cfg)).To(BeFalse())
	})

	It("retries forwards refused while the remote socket is down", func() {
		cfg := defaultRetryCfg

		Expect(fatalSSHError(&ssh.OpenChannelError{Reason: ssh.ConnectionFailed, Message: "connect failed"}, &cfg)).To(BeFalse())
		Expect(fatalSSHError(&ssh.OpenChannelError{Reason: ssh.Prohibited, Message: "administratively prohibited"}, &cfg)).To(BeTrue())
		Expect(fatalSSHError(&ssh.OpenChannelError{Reason: ssh.ConnectionFailed, Message: "No such file or directory"}, &cfg)).To(BeTrue())
	})

	It("gives up when the key cannot be read", func() {
		_, err := DialUnixWithRetry(context.Background(), SSHTarget{Host: "127.0.0.1", KeyPath: "/nonexistent/key"}, "/var/run/libvirt/libvirt-sock", &RetryCfg{Attempts: 1})
		Expect(err).To(MatchError(ContainSubstring("after 1 attempts")))
		Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())
	})
})

var _ = Describe("logging", func() {
	It("keeps wrapped errors", func() {
		err := ReturnLogError("lookup failed: %w", fs.ErrNotExist)
		Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())
	})

	It("filters messages below LOG_LEVEL", func() {
		GinkgoT().Setenv("LOG_LEVEL", "warn")
		Expect(enabled("info")).To(BeFalse())
		Expect(enabled("error")).To(BeTrue())

		GinkgoT().Setenv("LOG_LEVEL", "")
		Expect(enabled("debug")).To(BeFalse())
		Expect(enabled("info")).To(BeTrue())
	})
})
