// SPDX-License-Identifier: Apache-2.0

package errkind_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
)

func TestSQLSTATEMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind errkind.Kind
		code string
	}{
		{errkind.Protocol, "08P01"},
		{errkind.Parse, "42601"},
		{errkind.NotSupported, "0A000"},
		{errkind.AuthFailure, "28000"},
		{errkind.InvalidParameter, "22023"},
		{errkind.Io, "58030"},
	}

	for _, c := range cases {
		assert.Equal(t, c.code, c.kind.SQLSTATE(), c.kind.String())
	}
}

func TestStorageSubCodes(t *testing.T) {
	t.Parallel()

	underlying := errors.New("duplicate key")
	err := errkind.UniqueViolation("insert failed", underlying)

	assert.Equal(t, "23505", err.SQLSTATE)
	assert.Equal(t, errkind.Storage, err.Kind)
	assert.ErrorIs(t, err, underlying)
}

func TestClassifyWrapsUnknownErrors(t *testing.T) {
	t.Parallel()

	plain := errors.New("disk full")
	classified := errkind.Classify(plain)

	require.NotNil(t, classified)
	assert.Equal(t, errkind.Storage, classified.Kind)
	assert.ErrorIs(t, classified, plain)
}

func TestClassifyPassesThroughAlreadyClassified(t *testing.T) {
	t.Parallel()

	original := errkind.RateLimitExceeded("too many requests")
	classified := errkind.Classify(original)

	assert.Same(t, original, classified)
}
