package main

import (
	"fmt"
	"strings"

	"github.com/bazaar-community/bzr-go/binternals/btree"
	"github.com/bazaar-community/bzr-go/internal/flagutil"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIndexCmd(cfg *appConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "index <file>",
		Short: "print the meta header of a B+Tree graph index file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpIndexHeader(cmd, cfg, args[0])
		},
	}
}

func dumpIndexHeader(cmd *cobra.Command, cfg *appConfig, path string) error {
	data, err := afero.ReadFile(cfg.fs, path)
	if err != nil {
		return err
	}
	header, pages, err := btree.ParseHeader(data)
	if err != nil {
		return err
	}
	cfg.logger.Debug("index header parsed", zap.Int("page bytes", len(pages)))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "key_elements: %d\n", header.KeyElements)
	fmt.Fprintf(out, "node_ref_lists: %d\n", header.RefLists)
	fmt.Fprintf(out, "len: %d\n", header.NumNodes)
	lengths := make([]string, len(header.RowLengths))
	for i, l := range header.RowLengths {
		lengths[i] = fmt.Sprintf("%d", l)
	}
	fmt.Fprintf(out, "row_lengths: %s\n", strings.Join(lengths, ","))
	return nil
}

func newLeafCmd(cfg *appConfig) *cobra.Command {
	keyElements := flagutil.NewCountFlag(1, 1)
	refLists := flagutil.NewCountFlag(0, 0)
	cmd := &cobra.Command{
		Use:   "leaf <file>",
		Short: "print the records of a decompressed leaf page",
		Long: "Print the records of a single decompressed leaf page.\n" +
			"The page configuration is not stored in the page itself, so\n" +
			"--key-elements and --ref-lists must match the owning index.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := btree.Options{
				KeyElements: keyElements.Get(),
				RefLists:    refLists.Get(),
			}
			return dumpLeaf(cmd, cfg, opts, args[0])
		},
	}
	cmd.Flags().Var(keyElements, "key-elements", "number of segments per key")
	cmd.Flags().Var(refLists, "ref-lists", "number of reference lists per record")
	return cmd
}

func dumpLeaf(cmd *cobra.Command, cfg *appConfig, opts btree.Options, path string) error {
	data, err := afero.ReadFile(cfg.fs, path)
	if err != nil {
		return err
	}
	entries, err := opts.ParseLeafLines(data)
	if err != nil {
		return err
	}
	cfg.logger.Debug("leaf page parsed", zap.Int("records", len(entries)))

	out := cmd.OutOrStdout()
	for _, entry := range entries {
		fmt.Fprintf(out, "%s = %q\n", strings.Join(entry.Key, "/"), entry.Value)
		for i, list := range entry.Refs {
			refs := make([]string, len(list))
			for j, ref := range list {
				refs[j] = strings.Join(ref, "/")
			}
			fmt.Fprintf(out, "  refs[%d]: %s\n", i, strings.Join(refs, " "))
		}
	}
	return nil
}
