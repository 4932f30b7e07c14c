// This program is a wallet for the proof of work node. It manages keys and
// builds, signs and submits transactions.
package main

import "github.com/ardanlabs/powchain/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
