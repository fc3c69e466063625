package main

import (
	"fmt"

	"github.com/ethpandaops/gatewaybench/pkg/upload"
	"github.com/spf13/cobra"
)

var (
	uploadResultDir  string
	uploadResultName string
)

var uploadResultsCmd = &cobra.Command{
	Use:   "upload-results",
	Short: "Upload a results directory to remote storage",
	Long:  `Upload a local log or report directory to S3-compatible storage using the config file settings.`,
	RunE:  runUploadResults,
}

func init() {
	rootCmd.AddCommand(uploadResultsCmd)
	uploadResultsCmd.Flags().StringVar(&uploadResultDir, "dir", "",
		"Path to the directory to upload")
	uploadResultsCmd.Flags().StringVar(&uploadResultName, "name", "",
		"Remote name of the upload (defaults to the directory name)")

	_ = uploadResultsCmd.MarkFlagRequired("dir")
}

func runUploadResults(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !cfg.ResultsUpload.S3.Enabled {
		return fmt.Errorf("S3 upload is not enabled in config")
	}

	uploader, err := upload.NewS3Uploader(log, &cfg.ResultsUpload.S3)
	if err != nil {
		return fmt.Errorf("creating S3 uploader: %w", err)
	}

	ctx := cmd.Context()

	if err := uploader.Preflight(ctx); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}

	log.WithField("dir", uploadResultDir).Info("Uploading results")

	prefix, err := uploader.Upload(ctx, uploadResultDir, upload.CategoryManual, uploadResultName)
	if err != nil {
		return fmt.Errorf("uploading results: %w", err)
	}

	log.WithField("prefix", prefix).Info("Upload completed successfully")

	return nil
}
