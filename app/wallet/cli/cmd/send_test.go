package cmd

import (
	"errors"
	"net/http"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/script"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const (
	senderKey   = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	receiverKey = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
)

func Test_BuildSpend(t *testing.T) {
	sender, err := crypto.HexToECDSA(senderKey)
	require.NoError(t, err)

	rk, err := crypto.HexToECDSA(receiverKey)
	require.NoError(t, err)

	senderAddr := signature.PublicKeyToAddress(sender.PublicKey)
	receiver := signature.PublicKeyToAddress(rk.PublicKey)

	owned := []utxo{
		{TxHash: database.Hash{1}, Index: 0, Value: 50, Lock: script.Lock(senderAddr)},
		{TxHash: database.Hash{2}, Index: 1, Value: 40, Lock: script.Lock(senderAddr)},
		{TxHash: database.Hash{3}, Index: 0, Value: 30, Lock: script.Lock(senderAddr)},
	}

	t.Run("change", func(t *testing.T) {
		tx, err := buildSpend(owned, receiver, 70, 5, 1, sender)
		require.NoError(t, err)

		require.Len(t, tx.Vin, 2, "should only select the outputs needed")
		require.Len(t, tx.Vout, 2)
		require.Equal(t, database.UTXO{Value: 70, Lock: script.Lock(receiver)}, tx.Vout[0])
		require.Equal(t, database.UTXO{Value: 15, Lock: script.Lock(senderAddr)}, tx.Vout[1])

		for i, in := range tx.Vin {
			digest := signature.SpendDigest(owned[i].TxHash, owned[i].Index)
			require.True(t, script.Authorize(in.Solution, digest, owned[i].Lock), "input %d should unlock its output", i)
		}
	})

	t.Run("exact", func(t *testing.T) {
		tx, err := buildSpend(owned, receiver, 85, 5, 1, sender)
		require.NoError(t, err)

		require.Len(t, tx.Vin, 2)
		require.Len(t, tx.Vout, 1, "should not add a change output")
	})

	t.Run("insufficient", func(t *testing.T) {
		_, err := buildSpend(owned, receiver, 120, 1, 1, sender)
		require.True(t, errors.Is(err, ErrInsufficientFunds))
	})

	t.Run("bad receiver", func(t *testing.T) {
		_, err := buildSpend(owned, "nobody", 10, 0, 1, sender)
		require.Error(t, err)
	})
}

func Test_NodeCalls(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	const url = "http://node:8080"

	exp := balance{
		Address: "addr",
		Balance: 50,
		UTXOs:   []utxo{{TxHash: database.Hash{9}, Index: 2, Value: 50, Lock: "lock"}},
	}

	httpmock.RegisterResponder(http.MethodGet, url+"/v1/utxos/addr", httpmock.NewJsonResponderOrPanic(http.StatusOK, exp))
	httpmock.RegisterResponder(http.MethodGet, url+"/v1/utxos/bad", httpmock.NewJsonResponderOrPanic(http.StatusBadRequest, map[string]string{"error": "invalid address"}))
	httpmock.RegisterResponder(http.MethodPost, url+"/v1/tx/submit", httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{"status": "accepted", "hash": "0xabc"}))

	bal, err := fetchBalance(url, "addr")
	require.NoError(t, err)
	require.Equal(t, exp, bal)

	_, err = fetchBalance(url, "bad")
	require.ErrorContains(t, err, "invalid address")

	hash, err := submitTx(url, database.Tx{Nonce: 1})
	require.NoError(t, err)
	require.Equal(t, "0xabc", hash)
}
