// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

//go:build integration

package auth_test

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/credentia/credentia/internal/auth"
)

var _ = Describe("Device sessions", func() {
	var userID ulid.ULID

	BeforeEach(func() {
		user, err := env.Accounts.CreateUser(env.ctx, "hank", "h@x.com", "pw")
		Expect(err).NotTo(HaveOccurred())
		userID = user.ID
	})

	open := func(device string) string {
		_, token, err := env.Devices.CreateSession(env.ctx, auth.CreateSessionInput{UserID: userID, DeviceID: device})
		Expect(err).NotTo(HaveOccurred())
		return token
	}

	It("rejects the creation token after it has been rotated", func() {
		first := open("d1")

		_, rotated, err := env.Devices.RefreshSession(env.ctx, userID, "d1", first)
		Expect(err).NotTo(HaveOccurred())
		Expect(rotated).NotTo(Equal(first))

		_, _, err = env.Devices.RefreshSession(env.ctx, userID, "d1", first)
		Expect(auth.IsUnauthorized(err)).To(BeTrue())

		_, _, err = env.Devices.RefreshSession(env.ctx, userID, "d1", rotated)
		Expect(err).NotTo(HaveOccurred())
	})

	It("keeps at most one active session per device", func() {
		old := open("d1")
		current := open("d1")

		active, err := env.Devices.ListActiveDevices(env.ctx, userID)
		Expect(err).NotTo(HaveOccurred())
		Expect(active).To(HaveLen(1))
		Expect(countRows("sessions", userID.String())).To(Equal(2), "replaced sessions are revoked, not deleted")

		_, _, err = env.Devices.RefreshSession(env.ctx, userID, "d1", old)
		Expect(auth.IsUnauthorized(err)).To(BeTrue())
		_, _, err = env.Devices.RefreshSession(env.ctx, userID, "d1", current)
		Expect(err).NotTo(HaveOccurred())
	})

	It("lets exactly one of many concurrent refreshes win", func() {
		token := open("d1")

		const racers = 8
		var wg sync.WaitGroup
		errs := make([]error, racers)
		for i := range racers {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				_, _, errs[i] = env.Devices.RefreshSession(env.ctx, userID, "d1", token)
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			Expect(auth.IsUnauthorized(err)).To(BeTrue(), "unexpected error: %v", err)
		}
		Expect(wins).To(Equal(1))
	})

	It("rejects refresh once the session has expired", func() {
		token := open("d1")
		env.clock.Advance(sessionTTL + time.Second)

		_, _, err := env.Devices.RefreshSession(env.ctx, userID, "d1", token)
		Expect(auth.IsUnauthorized(err)).To(BeTrue())
	})

	It("revokes every other device and keeps the current one", func() {
		open("phone")
		env.clock.Advance(time.Minute)
		open("laptop")
		env.clock.Advance(time.Minute)
		tablet := open("tablet")

		n, err := env.Devices.RevokeAllExceptCurrent(env.ctx, userID, "tablet")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		active, err := env.Devices.ListActiveDevices(env.ctx, userID)
		Expect(err).NotTo(HaveOccurred())
		Expect(active).To(HaveLen(1))
		Expect(active[0].DeviceID).To(Equal("tablet"))

		_, _, err = env.Devices.RefreshSession(env.ctx, userID, "tablet", tablet)
		Expect(err).NotTo(HaveOccurred())
	})

	It("lists active devices most recently used first", func() {
		phone := open("phone")
		env.clock.Advance(time.Minute)
		open("laptop")
		env.clock.Advance(time.Minute)
		_, _, err := env.Devices.RefreshSession(env.ctx, userID, "phone", phone)
		Expect(err).NotTo(HaveOccurred())

		active, err := env.Devices.ListActiveDevices(env.ctx, userID)
		Expect(err).NotTo(HaveOccurred())
		devices := make([]string, 0, len(active))
		for _, s := range active {
			devices = append(devices, s.DeviceID)
		}
		Expect(devices).To(Equal([]string{"phone", "laptop"}))
	})

	It("treats logout as idempotent", func() {
		open("d1")
		Expect(env.Devices.RevokeSession(env.ctx, userID, "d1")).To(Succeed())
		Expect(env.Devices.RevokeSession(env.ctx, userID, "d1")).To(Succeed())
		Expect(env.Devices.RevokeSession(env.ctx, userID, "never-seen")).To(Succeed())

		active, err := env.Devices.ListActiveDevices(env.ctx, userID)
		Expect(err).NotTo(HaveOccurred())
		Expect(active).To(BeEmpty())
	})

	It("logs in by login or email and rejects bad passwords uniformly", func() {
		s, token, err := env.Devices.Login(env.ctx, auth.LoginInput{LoginOrEmail: "h@x.com", Password: "pw", DeviceID: "web"})
		Expect(err).NotTo(HaveOccurred())
		Expect(token).NotTo(BeEmpty())
		Expect(s.DeviceID).To(Equal("web"))

		_, _, wrong := env.Devices.Login(env.ctx, auth.LoginInput{LoginOrEmail: "hank", Password: "nope"})
		_, _, unknown := env.Devices.Login(env.ctx, auth.LoginInput{LoginOrEmail: "nobody", Password: "pw"})
		Expect(auth.IsUnauthorized(wrong)).To(BeTrue())
		Expect(auth.IsUnauthorized(unknown)).To(BeTrue())
		Expect(wrong.Error()).To(Equal(unknown.Error()))
	})
})
