package main

import (
	"fmt"

	"github.com/ethpandaops/gatewaybench/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "<redacted>"

var showConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Print the effective configuration",
	Long:  `Print the configuration after defaults, config file and environment overrides are applied. Secrets are redacted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out, err := renderConfig(cfg)
		if err != nil {
			return err
		}

		_, err = fmt.Fprint(cmd.OutOrStdout(), out)

		return err
	},
}

func init() {
	rootCmd.AddCommand(showConfigCmd)
}

// renderConfig marshals cfg as YAML with credentials masked.
func renderConfig(cfg *config.Config) (string, error) {
	c := *cfg

	if c.ResultsUpload.S3.SecretAccessKey != "" {
		c.ResultsUpload.S3.SecretAccessKey = redacted
	}

	if c.Orchestrator.Index.Database.Postgres.Password != "" {
		c.Orchestrator.Index.Database.Postgres.Password = redacted
	}

	if c.Benchmark.Setup.Password != "" {
		c.Benchmark.Setup.Password = redacted
	}

	data, err := yaml.Marshal(&c)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}

	return string(data), nil
}
