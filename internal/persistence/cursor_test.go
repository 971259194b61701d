package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/planner/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2024, time.January, 15, 8, 30, 0, 123, time.UTC)
	token := EncodeCursor(&domain.Cursor{CreatedAt: at, ID: "a|b"})

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	require.True(t, at.Equal(decoded.CreatedAt))
	require.Equal(t, "a|b", decoded.ID)
}

func TestDecodeCursorEmptyAndInvalid(t *testing.T) {
	c, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, c)

	_, err = DecodeCursor("%%%")
	require.ErrorIs(t, err, ErrInvalidCursor)

	_, err = DecodeCursor(EncodeCursor(&domain.Cursor{ID: ""}))
	require.ErrorIs(t, err, ErrInvalidCursor)
}

func TestAfterOrdersByCreatedAtThenID(t *testing.T) {
	at := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	c := &domain.Cursor{CreatedAt: at, ID: "m"}

	require.True(t, After(nil, at, "a"))
	require.True(t, After(c, at.Add(time.Second), "a"))
	require.True(t, After(c, at, "z"))
	require.False(t, After(c, at, "m"))
	require.False(t, After(c, at.Add(-time.Second), "z"))
}
