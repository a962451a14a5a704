package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kbuckham/udsd/internal/dtcstore"
	"github.com/spf13/cobra"
)

var inspectNVMCmd = &cobra.Command{
	Use:   "inspect-nvm",
	Short: "Dump the persistent store's DID and DTC regions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		nvm, catalogue, registry, err := openResponderState(cfg)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "=== DID region ===")
		fmt.Fprintln(w, "DID\tWRITABLE\tVALUE")
		for _, id := range []uint16{0xF190, 0xF191, 0xF192} {
			def, ok := registry.Lookup(id)
			if !ok {
				continue
			}
			value := "n/a (live-sourced)"
			if def.Writable {
				buf := make([]byte, 2)
				if err := nvm.Read(def.NVMOffset, buf); err == nil {
					value = fmt.Sprintf("0x%02X%02X", buf[0], buf[1])
				}
			}
			fmt.Fprintf(w, "0x%04X\t%v\t%s\n", id, def.Writable, value)
		}
		w.Flush()

		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "=== DTC region ===")
		fmt.Fprintln(w, "SLOT\tCODE\tSTATUS\tTEMP\tDATE")
		for i := 0; i < catalogue.Count(); i++ {
			rec, ok, err := catalogue.Get(i)
			if err != nil {
				return fmt.Errorf("inspect-nvm: read slot %d: %w", i, err)
			}
			if !ok {
				fmt.Fprintf(w, "%d\t-\t-\t-\t-\n", i)
				continue
			}
			fmt.Fprintf(w, "%d\t0x%06X\t0x%02X\t%d\t%04d-%02d-%02d\n",
				i, rec.Code&dtcstore.CodeMask, rec.Status,
				rec.Snapshot.Temperature, rec.Snapshot.Year, rec.Snapshot.Month, rec.Snapshot.Day)
		}
		w.Flush()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectNVMCmd)
}
