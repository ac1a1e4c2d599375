// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

//go:build integration

package integration

import (
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/placy/placy/internal/auth"
)

var _ = Describe("Credential lifecycle", Ordered, func() {
	var env *testEnv

	BeforeAll(func() {
		var err error
		env, err = setupTestEnv()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if env != nil {
			env.cleanup()
		}
	})

	var refresh string

	It("signs up a new user", func() {
		status, body, err := env.call(http.MethodPost, "/signup", `{"email":"Alice@Example.com","username":"alice","password":"p1"}`, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK), body.ErrMsg)
		Expect(body.Success).To(BeTrue())
		Expect(body.Token).NotTo(BeEmpty())
		Expect(body.Payload).To(HaveKeyWithValue("email", "alice@example.com"))
		Expect(body.Payload).NotTo(HaveKey("password_hash"))
	})

	It("rejects a second signup for the same email", func() {
		status, body, err := env.call(http.MethodPost, "/signup", `{"email":"alice@example.com","username":"alice2","password":"p1"}`, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body.ErrMsg).To(Equal("email already registered"))
	})

	It("tells unknown users and wrong passwords apart only by status", func() {
		status, body, err := env.call(http.MethodPost, "/login", `{"email":"alice@example.com","password":"nope"}`, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(body.ErrMsg).To(Equal("email/password wrong"))

		status, body, err = env.call(http.MethodPost, "/login", `{"email":"bob@example.com","password":"p1"}`, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(body.ErrMsg).To(Equal("email/password wrong"))
	})

	It("resets a forgotten password with the queued code", func() {
		status, _, err := env.call(http.MethodPost, "/forgot", `{"email":"alice@example.com"}`, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK))

		code, err := env.nextCode()
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(MatchRegexp(`^[0-9]{6}$`))

		status, body, err := env.call(http.MethodPost, "/reset", `{"email":"alice@example.com","code":"`+code+`","new_password":"p2"}`, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK), body.ErrMsg)

		status, _, err = env.call(http.MethodPost, "/reset", `{"email":"alice@example.com","code":"`+code+`","new_password":"p3"}`, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusNotFound), "consumed codes cannot be replayed")

		status, body, err = env.call(http.MethodPost, "/login", `{"email":"alice@example.com","password":"p2"}`, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK), body.ErrMsg)
		refresh = body.Refresh
	})

	It("only honours the newest code", func() {
		_, _, err := env.call(http.MethodPost, "/forgot", `{"email":"alice@example.com"}`, "")
		Expect(err).NotTo(HaveOccurred())
		first, err := env.nextCode()
		Expect(err).NotTo(HaveOccurred())

		_, _, err = env.call(http.MethodPost, "/forgot", `{"email":"alice@example.com"}`, "")
		Expect(err).NotTo(HaveOccurred())
		second, err := env.nextCode()
		Expect(err).NotTo(HaveOccurred())

		if first != second {
			status, _, err := env.call(http.MethodPost, "/reset", `{"email":"alice@example.com","code":"`+first+`","new_password":"p4"}`, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusUnauthorized))
		}

		status, body, err := env.call(http.MethodPost, "/reset", `{"email":"alice@example.com","code":"`+second+`","new_password":"p4"}`, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK), body.ErrMsg)
	})

	It("keeps one live code and the guess budget under concurrent requests", func() {
		var wg sync.WaitGroup
		for range 8 {
			wg.Go(func() {
				defer GinkgoRecover()
				status, _, err := env.call(http.MethodPost, "/forgot", `{"email":"alice@example.com"}`, "")
				Expect(err).NotTo(HaveOccurred())
				Expect(status).To(Equal(http.StatusOK))
			})
		}
		wg.Wait()
		Expect(env.service.Close(env.ctx)).To(Succeed())
		Expect(env.redis.Del(env.ctx, testQueue).Err()).To(Succeed())

		var live int
		Expect(env.pool.QueryRow(env.ctx,
			`SELECT count(*) FROM one_time_codes WHERE email = $1 AND NOT consumed`,
			"alice@example.com").Scan(&live)).To(Succeed())
		Expect(live).To(Equal(1))

		messages := make(chan string, 12)
		for range 12 {
			wg.Go(func() {
				defer GinkgoRecover()
				_, body, err := env.call(http.MethodPost, "/reset", `{"email":"alice@example.com","code":"000000","new_password":"p5"}`, "")
				Expect(err).NotTo(HaveOccurred())
				messages <- body.ErrMsg
			})
		}
		wg.Wait()
		close(messages)

		counts := map[string]int{}
		for msg := range messages {
			counts[msg]++
		}
		if counts[""] > 0 {
			Skip("guessed the live code")
		}
		Expect(counts["OTP is invalid"]).To(Equal(3))
		Expect(counts["too many attempts, request a new OTP"]).To(Equal(9))

		var attempts int
		Expect(env.pool.QueryRow(env.ctx,
			`SELECT attempts FROM one_time_codes WHERE email = $1 AND NOT consumed`,
			"alice@example.com").Scan(&attempts)).To(Succeed())
		Expect(attempts).To(Equal(3))
	})

	It("does not reveal unknown emails on forgot", func() {
		status, body, err := env.call(http.MethodPost, "/forgot", `{"email":"ghost@example.com"}`, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK))
		Expect(body.Success).To(BeTrue())

		Expect(env.service.Close(env.ctx)).To(Succeed())
		Expect(env.redis.LLen(env.ctx, testQueue).Val()).To(BeZero())
	})

	It("refreshes tokens from a bearer refresh token", func() {
		Expect(refresh).NotTo(BeEmpty())

		status, body, err := env.call(http.MethodGet, "/refresh", "", refresh)
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK), body.ErrMsg)
		Expect(body.Token).NotTo(BeEmpty())
		Expect(body.Refresh).NotTo(BeEmpty())

		status, _, err = env.call(http.MethodGet, "/refresh", "", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusUnauthorized))
	})

	It("purges spent codes", func() {
		janitor, err := auth.NewOTPJanitor(env.store, time.Hour, nil, func() time.Time {
			return time.Now().Add(24 * time.Hour)
		})
		Expect(err).NotTo(HaveOccurred())

		purged, err := janitor.PurgeOnce(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(purged).To(BeNumerically(">=", 3))

		var remaining int
		Expect(env.pool.QueryRow(env.ctx, `SELECT COUNT(*) FROM one_time_codes`).Scan(&remaining)).To(Succeed())
		Expect(remaining).To(BeZero())
	})

	It("reports health", func() {
		status, body, err := env.call(http.MethodGet, "/health", "", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK))
		Expect(body.Payload).To(HaveKeyWithValue("version", "integration"))
	})
})
