package nameservice_test

import (
	"path/filepath"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func Test_NameService(t *testing.T) {
	dir := t.TempDir()

	pk, err := crypto.HexToECDSA("fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959")
	require.NoError(t, err)
	require.NoError(t, crypto.SaveECDSA(filepath.Join(dir, "miner1.ecdsa"), pk))

	ns, err := nameservice.New(dir)
	require.NoError(t, err)

	address := signature.PublicKeyToAddress(pk.PublicKey)

	require.Equal(t, "miner1", ns.Lookup(address))
	require.Equal(t, "unknown", ns.Lookup("unknown"))

	got, err := ns.Address("miner1")
	require.NoError(t, err)
	require.Equal(t, address, got)

	got, err = ns.Address(address)
	require.NoError(t, err)
	require.Equal(t, address, got)

	_, err = ns.Address("nobody")
	require.Error(t, err)

	require.Equal(t, map[string]string{address: "miner1"}, ns.Copy())
}
