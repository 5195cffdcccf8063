package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashing(t *testing.T) {
	require.Equal(t, HashBytes([]byte("Maxwell Road")), HashBytes([]byte("Maxwell "), []byte("Road")))
	require.NotEqual(t, HashBytes([]byte("Maxwell Road")), HashBytes([]byte("maxwell road")))
}

func TestRuneOffsets(t *testing.T) {
	offsets := RuneOffsets("Café Rd")
	require.Equal(t, int32(0), offsets[0])
	// 'é' takes two bytes
	require.Equal(t, int32(4), offsets[5])
	require.Equal(t, int32(7), offsets[len("Café Rd")])
}

func TestRuneSlice(t *testing.T) {
	s, ok := RuneSlice("Café Rd", 3, 6)
	require.True(t, ok)
	require.Equal(t, "é R", s)

	_, ok = RuneSlice("Café", 2, 10)
	require.False(t, ok)
}

func TestRecoverWithError(t *testing.T) {
	boom := errors.New("boom")
	run := func() (err error) {
		defer RecoverWithError(&err)
		panic(boom)
	}
	err := run()
	require.True(t, errors.Is(err, boom))

	err = func() (err error) {
		defer RecoverWithError(&err)
		var entities []int
		_ = entities[3]
		return nil
	}()
	require.Error(t, err)
	require.Contains(t, err.Error(), "index out of range")

	err = func() (err error) {
		defer RecoverWithError(&err)
		return nil
	}()
	require.NoError(t, err)
}
