// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

//go:build integration

package auth_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/credentia/credentia/internal/auth"
)

var _ = Describe("Registration confirmation", func() {
	It("confirms once and rejects the same code afterwards", func() {
		user, err := env.Codes.Register(env.ctx, "alice", "a@x.com", "s3cret")
		Expect(err).NotTo(HaveOccurred())
		Expect(user.EmailConfirmed).To(BeFalse())
		Expect(countRows("email_confirmations", user.ID.String())).To(Equal(1))

		code := env.outbox.lastConfirmation("a@x.com")
		Expect(env.Codes.ConfirmRegistration(env.ctx, code)).To(Succeed())

		got, err := env.users.FindByID(env.ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.EmailConfirmed).To(BeTrue())

		err = env.Codes.ConfirmRegistration(env.ctx, code)
		Expect(auth.IsCodeInvalid(err)).To(BeTrue())
	})

	It("leaves everything untouched when the code has expired", func() {
		user, err := env.Codes.Register(env.ctx, "bob", "b@x.com", "s3cret")
		Expect(err).NotTo(HaveOccurred())
		code := env.outbox.lastConfirmation("b@x.com")

		env.clock.Advance(confirmationTTL)
		err = env.Codes.ConfirmRegistration(env.ctx, code)
		Expect(auth.IsCodeInvalid(err)).To(BeTrue())

		got, err := env.users.FindByID(env.ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.EmailConfirmed).To(BeFalse())

		By("resending issues a new usable code in place of the old one")
		Expect(env.Codes.ResendConfirmation(env.ctx, "b@x.com")).To(Succeed())
		Expect(countRows("email_confirmations", user.ID.String())).To(Equal(1))
		Expect(env.Codes.ConfirmRegistration(env.ctx, env.outbox.lastConfirmation("b@x.com"))).To(Succeed())
	})

	It("reports every colliding field on registration", func() {
		_, err := env.Accounts.CreateUser(env.ctx, "carol", "c@x.com", "pw")
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Codes.Register(env.ctx, "carol", "c@x.com", "pw")
		Expect(auth.IsAlreadyExists(err)).To(BeTrue())
		Expect(auth.ConflictFields(err)).To(ConsistOf(
			auth.FieldError{Field: "login", Message: "login already exists"},
			auth.FieldError{Field: "email", Message: "email already exists"},
		))
	})

	It("treats unknown and confirmed addresses alike on resend", func() {
		_, err := env.Accounts.CreateUser(env.ctx, "dave", "d@x.com", "pw")
		Expect(err).NotTo(HaveOccurred())

		unknown := env.Codes.ResendConfirmation(env.ctx, "nobody@x.com")
		confirmed := env.Codes.ResendConfirmation(env.ctx, "d@x.com")
		Expect(auth.IsAlreadyConfirmed(unknown)).To(BeTrue())
		Expect(auth.IsAlreadyConfirmed(confirmed)).To(BeTrue())
		Expect(unknown.Error()).To(Equal(confirmed.Error()))
	})
})

var _ = Describe("Password recovery", func() {
	It("does nothing for an unknown email", func() {
		Expect(env.Codes.RequestPasswordRecovery(env.ctx, "ghost@x.com")).To(Succeed())
		Expect(env.outbox.recoveryCount("ghost@x.com")).To(BeZero())

		var n int
		Expect(env.pool.QueryRow(env.ctx, `SELECT count(*) FROM password_recoveries`).Scan(&n)).To(Succeed())
		Expect(n).To(BeZero())
	})

	It("replaces the password exactly once", func() {
		user, err := env.Accounts.CreateUser(env.ctx, "erin", "e@x.com", "old-pw")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Codes.RequestPasswordRecovery(env.ctx, "e@x.com")).To(Succeed())
		code := env.outbox.lastRecovery("e@x.com")

		Expect(env.Codes.ConfirmNewPassword(env.ctx, code, "new-pw")).To(Succeed())
		err = env.Codes.ConfirmNewPassword(env.ctx, code, "other-pw")
		Expect(auth.IsCodeInvalid(err)).To(BeTrue())

		_, _, err = env.Devices.Login(env.ctx, auth.LoginInput{LoginOrEmail: "erin", Password: "old-pw", DeviceID: "d1"})
		Expect(auth.IsUnauthorized(err)).To(BeTrue())
		s, _, err := env.Devices.Login(env.ctx, auth.LoginInput{LoginOrEmail: "erin", Password: "new-pw", DeviceID: "d1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.UserID).To(Equal(user.ID))
	})

	It("invalidates an older code when a new one is requested", func() {
		_, err := env.Accounts.CreateUser(env.ctx, "frank", "f@x.com", "pw")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Codes.RequestPasswordRecovery(env.ctx, "f@x.com")).To(Succeed())
		first := env.outbox.lastRecovery("f@x.com")
		env.clock.Advance(time.Minute)
		Expect(env.Codes.RequestPasswordRecovery(env.ctx, "f@x.com")).To(Succeed())
		second := env.outbox.lastRecovery("f@x.com")

		Expect(auth.IsCodeInvalid(env.Codes.ConfirmNewPassword(env.ctx, first, "x"))).To(BeTrue())
		Expect(env.Codes.ConfirmNewPassword(env.ctx, second, "x")).To(Succeed())
	})
})

var _ = Describe("Account deletion", func() {
	It("makes codes and sessions of the deleted user unusable", func() {
		user, err := env.Codes.Register(env.ctx, "gina", "g@x.com", "pw")
		Expect(err).NotTo(HaveOccurred())
		code := env.outbox.lastConfirmation("g@x.com")

		Expect(env.Accounts.DeleteUser(env.ctx, user.ID)).To(Succeed())
		Expect(auth.IsCodeInvalid(env.Codes.ConfirmRegistration(env.ctx, code))).To(BeTrue())
		Expect(auth.IsNotFound(env.Accounts.DeleteUser(env.ctx, user.ID))).To(BeTrue())

		By("the login and email become available again")
		_, err = env.Accounts.CreateUser(env.ctx, "gina", "g@x.com", "pw")
		Expect(err).NotTo(HaveOccurred())
	})
})
