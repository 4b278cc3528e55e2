package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export <file>",
	GroupID: "data",
	Short:   "Export the dataset to a yaml backup file",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		out, err := a.manager.Export()
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], out, 0644); err != nil {
			return fmt.Errorf("failed to write backup: %w", err)
		}
		fmt.Printf("Exported %d categories, %d flashcards to %s\n",
			len(a.manager.Categories()), len(a.manager.Flashcards()), args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "data",
	Short:   "Replace the dataset from a yaml backup file",
	Long: `Replace the local dataset with the contents of a backup file.

Imported rows are marked pending, so the restored state is uploaded on the
next push. Locally stored images are not part of backups and are left
untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read backup: %w", err)
		}
		if err := a.manager.Import(cmd.Context(), raw); err != nil {
			return err
		}
		fmt.Printf("Imported %d categories, %d flashcards from %s\n",
			len(a.manager.Categories()), len(a.manager.Flashcards()), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
}
