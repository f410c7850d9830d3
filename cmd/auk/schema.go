package main

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/encoding"
	"github.com/effective-security/auk/tools/auk"
	"github.com/spf13/cobra"
)

func schemaCmd() *cobra.Command {
	var format, tool string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the descriptors of the user-interaction tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := encoding.ParseMode(format)
			if err != nil {
				return err
			}
			if mode == encoding.ModePlainText {
				return errors.Newf("unsupported format: %s", format)
			}

			var v any = auk.Descriptors(auk.StaticImages())
			if tool != "" {
				d, ok := auk.Find(tool)
				if !ok {
					return errors.Newf("tool not found: %s", tool)
				}
				v = d
			}

			b, err := encoding.Marshal(mode, v, "tools")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = out.Write(b)
			if len(b) > 0 && b[len(b)-1] != '\n' {
				_, _ = out.Write([]byte{'\n'})
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json|yaml|toml")
	cmd.Flags().StringVarP(&tool, "tool", "t", "", "Print only the named tool")
	return cmd
}
