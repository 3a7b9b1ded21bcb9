package sasl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlainStep(t *testing.T) {
	m := &Plain{AuthzID: "", Username: "alice", Password: "secret"}

	resp, done, err := m.Step(nil)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, "\x00alice\x00secret", string(resp))

	_, _, err = m.Step([]byte("unexpected challenge"))
	require.Error(t, err)
}

func TestExternalStep(t *testing.T) {
	m := &External{}
	resp, done, err := m.Step(nil)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, []byte{}, resp)

	m2 := &External{AuthzID: "dn:cn=alice,dc=example,dc=com"}
	resp2, done2, err := m2.Step(nil)
	require.NoError(t, err)
	require.True(t, done2)
	require.Equal(t, "dn:cn=alice,dc=example,dc=com", string(resp2))
}

func TestMechanismNames(t *testing.T) {
	require.Equal(t, "PLAIN", (&Plain{}).Name())
	require.Equal(t, "EXTERNAL", (&External{}).Name())
}
