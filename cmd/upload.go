package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weiwangfds/racenotes/internal/service/media"
)

func uploadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload media files to the configured object storage and print their public URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := media.NewServiceFromConfig(a.cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			if !svc.Available() {
				return errors.New("no storage provider configured, set storage.provider")
			}

			var errs []error
			for _, path := range args {
				if !svc.IsSupportedFile(path) {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s has an unrecognised extension, uploading as a generic file\n", path)
				}
				url, err := svc.UploadFile(path)
				if err != nil {
					errs = append(errs, fmt.Errorf("failed to upload %s: %w", path, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", path, url)
			}
			return errors.Join(errs...)
		},
	}
}
