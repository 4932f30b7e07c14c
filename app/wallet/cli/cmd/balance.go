package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

// utxo is an output owned by the wallet as reported by the node.
type utxo struct {
	TxHash database.Hash `json:"tx_hash"`
	Index  uint32        `json:"index"`
	Value  uint64        `json:"value"`
	Lock   string        `json:"lock"`
}

// balance is the node's view of an address.
type balance struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Balance uint64 `json:"balance"`
	UTXOs   []utxo `json:"utxos"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the balance of the wallet key",
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return err
	}

	bal, err := fetchBalance(nodeURL, signature.PublicKeyToAddress(privateKey.PublicKey))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Address: %s\nBalance: %d\nOutputs: %d\n", bal.Address, bal.Balance, len(bal.UTXOs))
	return nil
}

// fetchBalance asks the node for the outputs locked to the address.
func fetchBalance(url string, address string) (balance, error) {
	resp, err := http.Get(fmt.Sprintf("%s/v1/utxos/%s", url, address))
	if err != nil {
		return balance{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return balance{}, decodeError(resp)
	}

	var bal balance
	if err := json.NewDecoder(resp.Body).Decode(&bal); err != nil {
		return balance{}, fmt.Errorf("decoding balance: %w", err)
	}

	return bal, nil
}

// decodeError converts an error response from the node.
func decodeError(resp *http.Response) error {
	var er struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
		return fmt.Errorf("node responded with status %d", resp.StatusCode)
	}

	return fmt.Errorf("node responded with status %d: %s", resp.StatusCode, er.Error)
}
