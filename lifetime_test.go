package weave

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifetime_String(t *testing.T) {
	assert.Equal(t, "Transient", Transient.String())
	assert.Equal(t, "Scoped", Scoped.String())
	assert.Contains(t, Lifetime(99).String(), "Lifetime(99)")
}

func TestLifetime_IsValid(t *testing.T) {
	assert.True(t, Transient.IsValid())
	assert.True(t, Scoped.IsValid())
	assert.False(t, Lifetime(42).IsValid())
}

func TestLifetime_TextRoundTrip(t *testing.T) {
	text, err := Scoped.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Scoped", string(text))

	var l Lifetime
	require.NoError(t, l.UnmarshalText([]byte("transient")))
	assert.Equal(t, Transient, l)

	require.Error(t, l.UnmarshalText([]byte("bogus")))
}

func TestLifetime_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Scoped)
	require.NoError(t, err)
	assert.Equal(t, `"Scoped"`, string(data))

	var l Lifetime
	require.NoError(t, json.Unmarshal(data, &l))
	assert.Equal(t, Scoped, l)
}

func TestLockMode_String(t *testing.T) {
	assert.Equal(t, "Auto", LockAuto.String())
	assert.Equal(t, "Thread", LockThread.String())
	assert.Equal(t, "Async", LockAsync.String())
	assert.Equal(t, "None", LockNone.String())
}
