// This program performs administrative tasks against a stored ledger.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/powchain/app/tooling/admin/commands"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage/bolt"
	"github.com/ardanlabs/powchain/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

const usage = "usage: admin [chain [start stop] | utxos [address] | verify]"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("admin", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		return nil
	}

	dbPath := envOr("ADMIN_DB_PATH", "zblock/ledger.db")
	genesisPath := envOr("ADMIN_GENESIS_PATH", "zblock/genesis.json")

	log.Infow("admin", "version", build, "command", os.Args[1], "db", dbPath)

	db, err := bolt.New(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	snap, found, err := db.Load()
	if err != nil {
		return err
	}
	if !found {
		return errors.New("no ledger stored")
	}

	return processCommands(os.Args, snap, genesisPath)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args []string, snap commands.Snapshot, genesisPath string) error {
	switch args[1] {
	case "chain":
		if err := commands.Chain(args, snap); err != nil {
			return fmt.Errorf("printing chain: %w", err)
		}

	case "utxos":
		if err := commands.UTXOs(args, snap); err != nil {
			return fmt.Errorf("printing utxos: %w", err)
		}

	case "verify":
		gen, err := genesis.Load(genesisPath)
		if err != nil {
			return err
		}
		if err := commands.Verify(snap, gen); err != nil {
			return fmt.Errorf("verifying ledger: %w", err)
		}

	default:
		fmt.Println(usage)
	}

	return nil
}

func envOr(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
