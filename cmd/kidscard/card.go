package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kj20000/kidscard/internal/data"
)

var cardCmd = &cobra.Command{
	Use:     "card",
	GroupID: "data",
	Short:   "Manage flashcards",
}

var cardListCmd = &cobra.Command{
	Use:   "list [category-id]",
	Short: "List flashcards, optionally filtered by category",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		cards := a.manager.Flashcards()
		if len(args) == 1 {
			cards = a.manager.FlashcardsByCategory(args[0])
		}
		for _, f := range cards {
			fmt.Printf("%s  %-20s category=%s %s\n", f.ID, f.Word, f.CategoryID, f.SyncStatus)
		}
		return nil
	},
}

var cardImage string

var cardAddCmd = &cobra.Command{
	Use:   "add <category-id> <word>",
	Short: "Create a flashcard",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		card, err := a.manager.AddFlashcard(cmd.Context(), args[1], "", args[0])
		if err != nil {
			return err
		}
		if cardImage != "" {
			blob, err := os.ReadFile(cardImage)
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}
			if err := a.manager.AttachImage(cmd.Context(), card.ID, blob); err != nil {
				return err
			}
		}
		fmt.Printf("Created flashcard %s (%s)\n", card.Word, card.ID)
		return nil
	},
}

var cardUpdateWord string

var cardUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a flashcard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		patch := data.FlashcardPatch{}
		if cmd.Flags().Changed("word") {
			patch.Word = &cardUpdateWord
		}
		if _, err := a.manager.UpdateFlashcard(cmd.Context(), args[0], patch); err != nil {
			return err
		}
		fmt.Printf("Updated flashcard %s\n", args[0])
		return nil
	},
}

var cardDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a flashcard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		if err := a.manager.DeleteFlashcard(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted flashcard %s\n", args[0])
		return nil
	},
}

func init() {
	cardAddCmd.Flags().StringVar(&cardImage, "image", "", "attach a local image file")
	cardUpdateCmd.Flags().StringVar(&cardUpdateWord, "word", "", "new word")

	cardCmd.AddCommand(cardListCmd, cardAddCmd, cardUpdateCmd, cardDeleteCmd)
	rootCmd.AddCommand(cardCmd)
}
