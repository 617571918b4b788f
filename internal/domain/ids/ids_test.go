package ids

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

const testULID = "01HYX3KQW7ERTV9XNBM2P8QJZF"

func TestNewULIDReturnsValid(t *testing.T) {
	value, err := NewULID()

	require.NoError(t, err)
	require.NoError(t, ValidateULID(value))
}

func TestIsULIDAndValidateULID(t *testing.T) {
	require.True(t, IsULID(testULID))
	require.True(t, IsULID(" "+testULID+" "))
	require.NoError(t, ValidateULID(testULID))

	require.False(t, IsULID("not-a-ulid"))
	require.ErrorIs(t, ValidateULID("not-a-ulid"), ErrInvalidULID)
}

func TestUUIDToString(t *testing.T) {
	require.Equal(t, "", UUIDToString(pgtype.UUID{}))

	u := pgtype.UUID{
		Bytes: [16]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		Valid: true,
	}
	require.Equal(t, "01020304-0506-0708-090a-0b0c0d0e0f10", UUIDToString(u))
}
