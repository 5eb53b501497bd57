package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/contact-sync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeConfig(os.Stdout, cfg)
	},
}

func writeConfig(w io.Writer, c *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Redacted()); err != nil {
		return eris.Wrap(err, "encode config")
	}
	return eris.Wrap(enc.Close(), "encode config")
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
