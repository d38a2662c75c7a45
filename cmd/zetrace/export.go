package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zetrace/internal/capture"
)

var exportCmd = &cobra.Command{
	Use:   "export [flags] <snapshot.msgpack>",
	Short: "Render a saved graph snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "output path, - for stdout (default from config)")
	exportCmd.Flags().String("format", "", "output format (dot|msgpack, default from config)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, format, err := exportTarget(cmd, &cfg)
	if err != nil {
		return err
	}
	snap, err := capture.LoadSnapshot(args[0])
	if err != nil {
		return fmt.Errorf("load %s: %w", args[0], err)
	}
	return writeGraph(cmd, snap, format, out)
}
