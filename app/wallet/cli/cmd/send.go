package cmd

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/script"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

// ErrInsufficientFunds is returned when the owned outputs can't cover the
// value and the fee.
var ErrInsufficientFunds = errors.New("insufficient funds")

var (
	to    string
	value uint64
	fee   uint64
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send value to a name or address",
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Name or address of the receiver.")
	sendCmd.Flags().Uint64VarP(&value, "value", "v", 0, "Value to send.")
	sendCmd.Flags().Uint64VarP(&fee, "fee", "f", 0, "Fee paid to the miner.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("value")
}

func sendRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return err
	}

	ns, err := nameservice.New(accountPath)
	if err != nil {
		return err
	}

	receiver, err := ns.Address(to)
	if err != nil {
		return err
	}

	bal, err := fetchBalance(nodeURL, signature.PublicKeyToAddress(privateKey.PublicKey))
	if err != nil {
		return err
	}

	tx, err := buildSpend(bal.UTXOs, receiver, value, fee, uint64(time.Now().UnixNano()), privateKey)
	if err != nil {
		return err
	}

	hash, err := submitTx(nodeURL, tx)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

// buildSpend selects owned outputs, oldest first as reported by the node,
// until value plus fee is covered. Any excess is returned to the sender as a
// change output. Every input is signed over the standard spend digest.
func buildSpend(owned []utxo, receiver string, value uint64, fee uint64, nonce uint64, privateKey *ecdsa.PrivateKey) (database.Tx, error) {
	if value == 0 {
		return database.Tx{}, errors.New("value must be greater than zero")
	}

	if err := signature.ValidateAddress(receiver); err != nil {
		return database.Tx{}, fmt.Errorf("receiver: %w", err)
	}

	need, err := database.AddValues(value, fee)
	if err != nil {
		return database.Tx{}, err
	}

	tx := database.Tx{
		Nonce: nonce,
		Vout:  []database.UTXO{{Value: value, Lock: script.Lock(receiver)}},
	}

	var total uint64
	for _, u := range owned {
		if total >= need {
			break
		}

		solution, err := script.SignSpend(u.TxHash, u.Index, privateKey)
		if err != nil {
			return database.Tx{}, fmt.Errorf("signing %s:%d: %w", u.TxHash, u.Index, err)
		}

		tx.Vin = append(tx.Vin, database.UTXOU{TxHash: u.TxHash, Index: u.Index, Solution: solution})

		if total, err = database.AddValues(total, u.Value); err != nil {
			return database.Tx{}, err
		}
	}

	if total < need {
		return database.Tx{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, total, need)
	}

	if change := total - need; change > 0 {
		sender := signature.PublicKeyToAddress(privateKey.PublicKey)
		tx.Vout = append(tx.Vout, database.UTXO{Value: change, Lock: script.Lock(sender)})
	}

	return tx, nil
}

// submitTx posts the transaction to the node and returns the hash the node
// accepted it under.
func submitTx(url string, tx database.Tx) (string, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return "", err
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	var result struct {
		Hash string `json:"hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return result.Hash, nil
}
