package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckCount(t *testing.T) {
	n := int64(12)
	v, err := CheckCount("signature_count", &n)
	require.NoError(t, err)
	require.Equal(t, int64(12), v)

	zero := int64(0)
	v, err = CheckCount("signature_count", &zero)
	require.NoError(t, err)
	require.Zero(t, v)

	_, err = CheckCount("signature_count", nil)
	require.ErrorIs(t, err, ErrInvalidCount)

	neg := int64(-3)
	_, err = CheckCount("signature_count", &neg)
	require.ErrorIs(t, err, ErrInvalidCount)
	require.Contains(t, err.Error(), "-3")
}
