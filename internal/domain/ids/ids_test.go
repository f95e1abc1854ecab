package ids

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

const testULID = "01HYX3KQW7ERTV9XNBM2P8QJZF"

func TestNewULIDReturnsValid(t *testing.T) {
	value, err := NewULID()

	require.NoError(t, err)
	require.NoError(t, ValidateULID(value))
}

func TestNewULIDIsMonotonic(t *testing.T) {
	generated := make([]string, 0, 64)
	for i := 0; i < 64; i++ {
		generated = append(generated, MustNewULID())
	}

	require.True(t, sort.StringsAreSorted(generated))
}

func TestIsULIDAndValidateULID(t *testing.T) {
	require.True(t, IsULID(testULID))
	require.True(t, IsULID(" "+testULID+" "))
	require.NoError(t, ValidateULID(testULID))

	require.False(t, IsULID("not-a-ulid"))
	require.ErrorIs(t, ValidateULID("not-a-ulid"), ErrInvalidULID)
}

func TestNormalize(t *testing.T) {
	require.Equal(t, testULID, Normalize(" 01hyx3kqw7ertv9xnbm2p8qjzf "))
}
