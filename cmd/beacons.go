// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/southspace/lstrelay/pkg/tmtc"
	"github.com/spf13/cobra"
)

var beaconsVerbose bool

var beaconsCmd = &cobra.Command{
	Use:   "beacons",
	Short: "List the built-in beacon layouts",
	Long: `List every beacon the relay can decode, in dispatch order.

Each beacon shows its ID byte, total length including the trailing CRC-16,
and with --fields the topic and wire type of every field.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printBeacons(os.Stdout, tmtc.Registrations(), beaconsVerbose)
	},
}

func init() {
	rootCmd.AddCommand(beaconsCmd)
	beaconsCmd.Flags().BoolVarP(&beaconsVerbose, "fields", "f", false, "Show every field and its topic")
}

func printBeacons(w io.Writer, regs []tmtc.Registration, verbose bool) error {
	for _, r := range regs {
		l := r.Layout
		if _, err := fmt.Fprintf(w, "%-24s id=0x%02X len=%-3d fields=%d\n", l.Name, l.ID, l.Size(), len(l.Fields)); err != nil {
			return err
		}
		if !verbose {
			continue
		}
		for _, f := range l.Fields {
			typ := f.Type.String()
			if f.Count > 1 {
				typ = fmt.Sprintf("[%d]%s", f.Count, typ)
			}
			fmt.Fprintf(w, "  %-40s %s\n", l.Topic(f.Name), typ)
		}
		if len(r.LogFields) > 0 {
			fmt.Fprintf(w, "  logged: %s\n", strings.Join(r.LogFields, ", "))
		}
	}
	return nil
}
