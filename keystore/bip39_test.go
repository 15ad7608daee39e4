package keystore

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadMnemonicRoundTrip(t *testing.T) {
	mnemonic, err := NewMnemonic()
	require.NoError(t, err)

	ks := NewFileKeystore(filepath.Join(t.TempDir(), "keystore.json"))
	require.NoError(t, ks.SaveMnemonic(mnemonic, "correct horse battery staple"))

	got, err := ks.LoadMnemonic("correct horse battery staple")
	require.NoError(t, err)
	require.Equal(t, mnemonic, got)

	_, err = ks.LoadMnemonic("wrong passphrase")
	require.Error(t, err)
}

func TestDeriveIdentityIsDeterministic(t *testing.T) {
	mnemonic, err := NewMnemonic()
	require.NoError(t, err)
	ks := NewFileKeystore(filepath.Join(t.TempDir(), "keystore.json"))

	a, err := ks.DeriveIdentity(mnemonic)
	require.NoError(t, err)
	b, err := ks.DeriveIdentity(mnemonic)
	require.NoError(t, err)
	require.True(t, bytes.Equal(a.Serialize(), b.Serialize()))
}

func TestDeriveSigningKeyVariesByAccount(t *testing.T) {
	mnemonic, err := NewMnemonic()
	require.NoError(t, err)
	ks := NewFileKeystore(filepath.Join(t.TempDir(), "keystore.json"))

	k0, err := ks.DeriveSigningKey(mnemonic, 0)
	require.NoError(t, err)
	k1, err := ks.DeriveSigningKey(mnemonic, 1)
	require.NoError(t, err)
	require.False(t, bytes.Equal(k0.Serialize(), k1.Serialize()))

	identity, err := ks.DeriveIdentity(mnemonic)
	require.NoError(t, err)
	require.False(t, bytes.Equal(identity.Serialize(), k0.Serialize()), "nostr identity and bitcoin signing keys must live on disjoint paths")
}
