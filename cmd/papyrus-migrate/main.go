// papyrus-migrate opens a storage directory so the version gate runs its
// forward minor-version migrations, after backing up the KV data file.
// Major-version mismatches still refuse to open; those need a re-sync.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/starkware-libs/papyrus-go/pkg/storage"
	"github.com/starkware-libs/papyrus-go/pkg/types"
)

var (
	pathPrefix = flag.String("path-prefix", "./data", "Parent directory of the chain subdirectory")
	chainID    = flag.String("chain-id", "SN_MAIN", "Chain identifier (names the subdirectory)")
	scope      = flag.String("scope", string(types.ScopeFullArchive), "Storage scope: FullArchive or StateOnly")
	dryRun     = flag.Bool("dry-run", false, "Print this build's storage versions and exit without backing up or opening the database")
	backupPath = flag.String("backup", "", "Path to back up mdbx.dat before migrating (default: <dir>/mdbx.dat.backup)")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Papyrus Storage Migration Tool")
	log.Println("==============================")

	dir := filepath.Join(*pathPrefix, *chainID)
	dbPath := filepath.Join(dir, "mdbx.dat")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("Database not found at %s", dbPath)
	}

	log.Printf("Database: %s", dbPath)
	log.Printf("Dry run: %v", *dryRun)

	if !*dryRun {
		backupFile := *backupPath
		if backupFile == "" {
			backupFile = dbPath + ".backup"
		}
		log.Printf("Creating backup: %s", backupFile)
		if err := copyFile(dbPath, backupFile); err != nil {
			log.Fatalf("Failed to create backup: %v", err)
		}
		log.Println("Backup created successfully")
	}

	cfg := storage.Config{
		PathPrefix:        *pathPrefix,
		ChainID:           *chainID,
		EnforceFileExists: true,
		Scope:             types.Scope(*scope),
	}

	if *dryRun {
		log.Printf("Build versions: state %s, blocks %s",
			formatVersion(storage.CurrentVersionState), formatVersion(storage.CurrentVersionBlocks))
		log.Println("Dry run complete; no changes made")
		return
	}

	reader, _, err := storage.Open(cfg)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	defer func() { _ = reader.Close() }()

	txn, err := reader.BeginRO()
	if err != nil {
		log.Fatalf("Failed to read back versions: %v", err)
	}
	defer txn.Abort()

	if v, ok, err := txn.GetVersionState(); err != nil {
		log.Fatalf("Failed to read state version: %v", err)
	} else if ok {
		log.Printf("State version: %s", formatVersion(v))
	}
	if v, ok, err := txn.GetVersionBlocks(); err != nil {
		log.Fatalf("Failed to read blocks version: %v", err)
	} else if ok {
		log.Printf("Blocks version: %s", formatVersion(v))
	}
	log.Println("Migration complete")
}

func formatVersion(v types.Version) string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
