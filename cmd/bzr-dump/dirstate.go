package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/bazaar-community/bzr-go/binternals/dirstate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDirstateCmd(cfg *appConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "dirstate <file>",
		Short: "print the rows of a dirstate file, grouped by directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpDirstate(cmd, cfg, args[0])
		},
	}
}

func dumpDirstate(cmd *cobra.Command, cfg *appConfig, path string) error {
	start := time.Now()
	state, err := dirstate.Load(cfg.fs, path)
	if err != nil {
		return err
	}
	cfg.logger.Debug("dirstate parsed",
		zap.Int("entries", state.NumEntries()),
		zap.Int("blocks", len(state.Blocks)),
		zap.Int("parents", len(state.Parents)),
		zap.Duration("took", time.Since(start)))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "parents: %s\n", strings.Join(state.Parents, " "))
	fmt.Fprintf(out, "ghosts: %s\n", strings.Join(state.Ghosts, " "))
	for i := range state.Blocks {
		block := &state.Blocks[i]
		fmt.Fprintf(out, "%q:\n", block.Dirname)
		for j := range block.Entries {
			entry := &block.Entries[j]
			fmt.Fprintf(out, "  %s (%s)", entry.Key.Basename, entry.Key.FileID)
			for _, tree := range entry.Trees {
				executable := "-"
				if tree.Executable {
					executable = "x"
				}
				fmt.Fprintf(out, " | %c %s %d %s", tree.Minikind, executable, tree.Size, tree.Fingerprint)
			}
			fmt.Fprintln(out)
		}
	}
	return nil
}
