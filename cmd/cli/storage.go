package cli

// cmd/cli/storage.go — CLI wrapper for the core/storage subsystem.
// ----------------------------------------------------------------------------
// Layout
//   1. Globals & middleware (env-driven wiring of logger and Storage).
//   2. Controllers – one per CLI sub-command, thin and validated.
//   3. CLI definitions – commands + flags.
//   4. Consolidated route export (BOTTOM), ready for import in root CLI.
// ----------------------------------------------------------------------------

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	logrus "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cardanogo/core"
)

// ---------------------------------------------------------------------------
// Globals & middleware
// ---------------------------------------------------------------------------

var (
	storageDB    *core.Storage
	storageLG    = logrus.New()
	storageFlags struct {
		root string
	}
)

func initStorageMiddleware(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	resolveStringFlag(cmd, "root", &storageFlags.root, os.Getenv("CARDANOGO_STORAGE_ROOT"))
	if storageFlags.root == "" {
		storageFlags.root = "./chain-data"
	}

	db, err := core.NewStorage(storageFlags.root, storageLG)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	storageDB = db
	return nil
}

// ---------------------------------------------------------------------------
// Controller helpers
// ---------------------------------------------------------------------------

func parseBlockHash(hexStr string) (core.Hash, error) {
	var h core.Hash
	b, err := hex.DecodeString(hexStr)
	if err != nil || len(b) != len(h) {
		return h, errors.New("hash must be 32-byte hex")
	}
	copy(h[:], b)
	return h, nil
}

// ---------------------------------------------------------------------------
// Controllers
// ---------------------------------------------------------------------------

func showTagHandler(cmd *cobra.Command, args []string) error {
	name := args[0]
	hash, block, err := storageDB.GetBlockFromTag(name)
	if err != nil {
		return fmt.Errorf("show-tag %s: %w", name, err)
	}
	printBlockSummary(cmd, hash, block)
	return nil
}

func showBlockHandler(cmd *cobra.Command, args []string) error {
	hash, err := parseBlockHash(args[0])
	if err != nil {
		return err
	}
	raw, err := storageDB.Read(hash)
	if err != nil {
		return fmt.Errorf("show-block %s: %w", hash.Short(), err)
	}
	block, err := core.DecodeBlock(raw)
	if err != nil {
		return fmt.Errorf("show-block %s: decode: %w", hash.Short(), err)
	}
	printBlockSummary(cmd, hash, block)
	return nil
}

func printBlockSummary(cmd *cobra.Command, hash core.Hash, block *core.Block) {
	date := block.Date()
	out := cmd.OutOrStdout()
	if block.Kind == core.KindBoundary {
		fmt.Fprintf(out, "%s  boundary  epoch=%d\n", hash.Short(), block.Boundary.Epoch)
		return
	}
	fmt.Fprintf(out, "%s  main  epoch=%d slot=%d prev=%s txs=%d\n",
		hash.Short(), date.Epoch, date.LocalSlot, block.PreviousHeader.Short(), len(block.Main.Body.Transactions))
}

// ---------------------------------------------------------------------------
// CLI definitions
// ---------------------------------------------------------------------------

var storageCmd = &cobra.Command{
	Use:              "storage",
	Short:            "Inspect content-addressed block storage",
	PersistentPreRunE: initStorageMiddleware,
}

var showTagCmd = &cobra.Command{
	Use:   "show-tag <name>",
	Short: "Resolve a named tag (e.g. HEAD) and print the block it points to",
	Args:  cobra.ExactArgs(1),
	RunE:  showTagHandler,
}

var showBlockCmd = &cobra.Command{
	Use:   "show-block <hash-hex>",
	Short: "Decode and print one block by hash",
	Args:  cobra.ExactArgs(1),
	RunE:  showBlockHandler,
}

func init() {
	storageCmd.PersistentFlags().String("root", "", "Storage root directory (CARDANOGO_STORAGE_ROOT)")
	storageCmd.AddCommand(showTagCmd)
	storageCmd.AddCommand(showBlockCmd)
}

// ---------------------------------------------------------------------------
// Helpers – flag/env handling
// ---------------------------------------------------------------------------

func resolveStringFlag(cmd *cobra.Command, name string, target *string, fallback string) {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		*target = v
	} else if fallback != "" {
		*target = fallback
	}
}

// ---------------------------------------------------------------------------
// Consolidated route export (BOTTOM) — importable by root CLI.
// ---------------------------------------------------------------------------

// StorageRoute represents the entry-point command (root: "storage").
var StorageRoute = storageCmd

// ---------------------------------------------------------------------------
// END cmd/cli/storage.go
// ---------------------------------------------------------------------------
