// Command docstorectl is an administrative CLI for a docstore-backed
// store: create/verify the schema, inspect stats, seed demo data, and
// purge or destroy collections. The store it manages declares a fixed
// demo schema (an "items" collection indexed by category and by
// category+createdAt) so the tool has something concrete to operate on;
// a real service embeds the docstore package directly and declares its
// own collections instead of going through this CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"docstore"
)

var (
	storeName string
	storeURL  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "docstorectl",
		Short: "Administrative CLI for a docstore document store",
	}
	rootCmd.PersistentFlags().StringVar(&storeName, "name", "demo", "store name")
	rootCmd.PersistentFlags().StringVar(&storeURL, "url", "mem://", "backend URL (mem://, bolt://path, sqlite://path)")

	dbCmd := &cobra.Command{Use: "db", Short: "Schema lifecycle commands"}
	dbCmd.AddCommand(
		&cobra.Command{Use: "create", Short: "Create and initialize the store if missing", RunE: runDBCreate},
		&cobra.Command{Use: "upgrade", Short: "Alias for verify: bring the descriptor up to the current version and reconcile", RunE: runDBVerify},
		&cobra.Command{Use: "verify", Short: "Open the store and run its schema reconciliation", RunE: runDBVerify},
		&cobra.Command{Use: "migrate", Short: "Alias for verify: reconcile declared collections/indexes", RunE: runDBVerify},
		&cobra.Command{Use: "stats", Short: "Print backend and per-collection statistics", RunE: runDBStats},
		&cobra.Command{Use: "dump", Short: "Print every collection's rows and index entries", RunE: runDBDump},
	)

	collectionsCmd := &cobra.Command{Use: "collections", Short: "Collection maintenance commands"}
	collectionsCmd.AddCommand(
		&cobra.Command{Use: "purge-removed", Short: "Drop data for collections no longer declared", RunE: runCollectionsPurgeRemoved},
	)

	seedCmd := &cobra.Command{Use: "seed", Short: "Insert a handful of demo items", RunE: runSeed}

	storeCmd := &cobra.Command{Use: "store", Short: "Whole-store maintenance commands"}
	var confirmDestroy bool
	destroyCmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete all data under this store and reset its schema state",
		RunE:  runStoreDestroy,
	}
	destroyCmd.Flags().BoolVar(&confirmDestroy, "yes", false, "required: confirm the destructive operation")
	storeCmd.AddCommand(destroyCmd)

	rootCmd.AddCommand(dbCmd, collectionsCmd, seedCmd, storeCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// demoCollections declares the fixed schema this CLI's store operates on.
func demoCollections() []*docstore.Collection {
	return []*docstore.Collection{
		{
			Name: "items",
			Indexes: []*docstore.Index{
				{
					Keys:       []string{"category"},
					Properties: []docstore.Property{docstore.SimpleProperty("category")},
					Projection: []string{"title"},
				},
				{
					Keys:       []string{"category", "createdAt"},
					Properties: []docstore.Property{docstore.SimpleProperty("category"), docstore.SimpleProperty("createdAt")},
				},
			},
		},
	}
}

func openStore() (*docstore.Store, error) {
	return docstore.Open(docstore.Options{
		Name:        storeName,
		URL:         storeURL,
		Collections: demoCollections(),
		Logf:        func(format string, args ...any) { fmt.Fprintf(os.Stderr, format+"\n", args...) },
	})
}

func runDBCreate(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Initialize(); err != nil {
		return err
	}
	fmt.Printf("store %q initialized at %s\n", storeName, storeURL)
	return nil
}

func runDBVerify(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Initialize(); err != nil {
		return err
	}
	fmt.Printf("store %q schema reconciled against %d declared collection(s)\n", storeName, len(demoCollections()))
	return nil
}

func runDBStats(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	stats, err := s.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("keys: %s  data: %s  alloc: %s\n",
		humanize.Comma(int64(stats.KeyCount)), humanize.Bytes(uint64(stats.DataSize)), humanize.Bytes(uint64(stats.DataAlloc)))
	for name, cs := range stats.Collections {
		fmt.Printf("  %s: %s rows, %s index rows\n", name, humanize.Comma(int64(cs.Rows)), humanize.Comma(int64(cs.TotalIndexRows())))
	}
	return nil
}

func runDBDump(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	out, err := s.Dump(docstore.DumpAll)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func runCollectionsPurgeRemoved(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return s.PurgeRemovedCollections()
}

func runSeed(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	categories := []string{"alpha", "beta", "gamma"}
	for i, cat := range categories {
		key := docstore.StringElem(uuid.New().String())
		item := docstore.Item{
			"title":     fmt.Sprintf("demo item %d", i+1),
			"category":  cat,
			"createdAt": time.Now().UTC().Format(time.RFC3339Nano),
		}
		if err := s.Put("items", key, item, docstore.DefaultPutOptions()); err != nil {
			return err
		}
		fmt.Printf("seeded %s (%s)\n", key.Str, cat)
	}
	return nil
}

func runStoreDestroy(cmd *cobra.Command, args []string) error {
	confirmed, _ := cmd.Flags().GetBool("yes")
	if !confirmed {
		return fmt.Errorf("refusing to destroy store %q without --yes", storeName)
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return s.DestroyAll()
}
