// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Code purposes used as metric labels.
const (
	purposeConfirmation = "email_confirmation"
	purposeRecovery     = "password_recovery"
)

var (
	codesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credentia_codes_issued_total",
		Help: "Total number of confirmation and recovery codes issued",
	}, []string{"purpose"})

	codeRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credentia_code_redemptions_total",
		Help: "Total number of code redemption attempts by outcome",
	}, []string{"purpose", "result"})

	sessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credentia_session_events_total",
		Help: "Total number of session lifecycle events",
	}, []string{"event"})

	emailFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credentia_email_failures_total",
		Help: "Total number of email deliveries that failed",
	}, []string{"purpose"})
)

func recordRedemption(purpose string, err error) {
	result := "ok"
	switch {
	case IsCodeInvalid(err):
		result = "invalid"
	case err != nil:
		result = "error"
	}
	codeRedemptions.WithLabelValues(purpose, result).Inc()
}
