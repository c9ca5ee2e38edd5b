package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fbhash/internal/codec"
	"fbhash/internal/summarizer"
)

var inspectLimit int

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Describe a model, digest or database file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().IntVarP(&inspectLimit, "limit", "n", 5, "number of entries to list")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	kind, err := codec.DetectFile(path)
	if err != nil {
		return err
	}
	switch kind {
	case codec.KindModel:
		m, err := codec.ReadModelFile(path)
		if err != nil {
			return err
		}
		cmd.Print("corpus model\n" + summarizer.Summarize(m, inspectLimit).Report())
	case codec.KindDigest:
		d, err := codec.ReadDigestFile(path)
		if err != nil {
			return err
		}
		cmd.Println("digest")
		cmd.Printf("scheme:   %s\n", d.Scheme)
		cmd.Printf("model:    %s\n", d.Model)
		cmd.Printf("entries:  %d\n", d.Len())
		for _, e := range d.Entries[:min(max(inspectLimit, 0), d.Len())] {
			cmd.Printf("  %016x  %.6f\n", uint64(e.ID), e.Weight)
		}
	case codec.KindDatabase:
		db, err := codec.ReadDatabaseFile(path)
		if err != nil {
			return err
		}
		cmd.Println("digest database")
		cmd.Printf("scheme:   %s\n", db.Scheme)
		cmd.Printf("model:    %s\n", db.Model)
		cmd.Printf("files:    %d\n", len(db.Records))
		for _, r := range db.Records[:min(max(inspectLimit, 0), len(db.Records))] {
			cmd.Printf("  %s (%d entries)\n", r.Path, r.Digest.Len())
		}
	default:
		return fmt.Errorf("unsupported file kind %q", kind)
	}
	return nil
}
