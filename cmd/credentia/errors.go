// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package main

import (
	"strings"

	"github.com/credentia/credentia/internal/auth"
	"github.com/credentia/credentia/pkg/errutil"
)

// Process exit codes.
const (
	exitFailure  = 1
	exitRejected = 2
	exitConfig   = 78 // EX_CONFIG from sysexits.h
)

// exitCode maps err to a process exit status. Domain rejections are told
// apart from infrastructure failures so scripts can branch on them.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case auth.IsConfigMissing(err), errutil.Code(err) == "CONFIG_INVALID", errutil.Code(err) == "CONFIG_LOAD_FAILED":
		return exitConfig
	case auth.IsCodeInvalid(err),
		auth.IsAlreadyConfirmed(err),
		auth.IsAlreadyExists(err),
		auth.IsNotFound(err),
		auth.IsUnauthorized(err):
		return exitRejected
	default:
		return exitFailure
	}
}

// describeError returns the one-line message printed for err.
func describeError(err error) string {
	if fields := auth.ConflictFields(err); len(fields) > 0 {
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			msgs = append(msgs, f.Message)
		}
		return strings.Join(msgs, "; ")
	}
	return err.Error()
}
