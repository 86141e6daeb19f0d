package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/colisage/internal/core"
)

func newPreviewCmd(g *globalFlags) *cobra.Command {
	var dossierID int64

	cmd := &cobra.Command{
		Use:   "preview [flags] FILE",
		Short: "Resolve a workbook against reference data without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dossierID <= 0 {
				return fmt.Errorf("--dossier is required")
			}

			svc, closeFn, err := openService(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer closeFn()

			in, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			res, err := svc.PreviewImport(cmd.Context(), dossierID, in)
			if err != nil {
				return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().Int64Var(&dossierID, "dossier", 0, "Target dossier ID")
	return cmd
}

func newImportCmd(g *globalFlags) *cobra.Command {
	var (
		dossierID int64
		update    bool
	)

	cmd := &cobra.Command{
		Use:   "import [flags] FILE",
		Short: "Preview a workbook and import every valid row",
		Long: `import previews FILE and commits every row that resolved. Rows that
already exist in the dossier are left untouched unless --update is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dossierID <= 0 {
				return fmt.Errorf("--dossier is required")
			}

			svc, closeFn, err := openService(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer closeFn()

			in, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			preview, err := svc.PreviewImport(cmd.Context(), dossierID, in)
			if err != nil {
				return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
			}
			for _, issue := range preview.Issues {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %s\n", issue.Error())
			}
			if len(preview.Preview) == 0 {
				return fmt.Errorf("no valid rows to import")
			}

			res, err := svc.CommitImport(cmd.Context(), core.CommitRequest{
				DossierID:      dossierID,
				Rows:           preview.Preview,
				UpdateExisting: update,
			})
			if res != nil {
				if perr := printJSON(cmd, res); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.Flags().Int64Var(&dossierID, "dossier", 0, "Target dossier ID")
	cmd.Flags().BoolVar(&update, "update", false, "Overwrite line items that already exist")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
