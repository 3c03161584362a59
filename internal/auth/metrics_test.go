// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package auth

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRedemption(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		result string
	}{
		{name: "success", err: nil, result: "ok"},
		{name: "invalid code", err: ErrConfirmationCodeInvalid("code"), result: "invalid"},
		{name: "store failure", err: errors.New("connection refused"), result: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := codeRedemptions.WithLabelValues(purposeRecovery, tt.result)
			before := testutil.ToFloat64(counter)

			recordRedemption(purposeRecovery, tt.err)

			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestMetricsRegistered(t *testing.T) {
	codesIssued.WithLabelValues(purposeConfirmation)
	sessionEvents.WithLabelValues("created")
	emailFailures.WithLabelValues(purposeRecovery)

	assert.Positive(t, testutil.CollectAndCount(codesIssued, "credentia_codes_issued_total"))
	assert.Positive(t, testutil.CollectAndCount(sessionEvents, "credentia_session_events_total"))
	assert.Positive(t, testutil.CollectAndCount(emailFailures, "credentia_email_failures_total"))
}
