package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kj20000/kidscard/internal/data"
	"github.com/Kj20000/kidscard/internal/model"
)

var categoryCmd = &cobra.Command{
	Use:     "category",
	GroupID: "data",
	Short:   "Manage flashcard categories",
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories in display order",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		for _, c := range a.manager.Categories() {
			cards := a.manager.FlashcardsByCategory(c.ID)
			fmt.Printf("%2d. %s %s (%s, %d cards, %s)\n",
				c.Order, c.Icon, c.Name, c.Color, len(cards), c.SyncStatus)
		}
		return nil
	},
}

var (
	categoryIcon  string
	categoryColor string
)

var categoryAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		cat, err := a.manager.AddCategory(cmd.Context(), args[0], categoryIcon,
			model.Color(categoryColor))
		if err != nil {
			return err
		}
		fmt.Printf("Created category %s (%s)\n", cat.Name, cat.ID)
		return nil
	},
}

var categoryRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		_, err = a.manager.UpdateCategory(cmd.Context(), args[0],
			data.CategoryPatch{Name: &args[1]})
		if err != nil {
			return err
		}
		fmt.Printf("Renamed category %s\n", args[0])
		return nil
	},
}

var categoryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a category and its flashcards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		if err := a.manager.DeleteCategory(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted category %s\n", args[0])
		return nil
	},
}

var categoryReorderCmd = &cobra.Command{
	Use:   "reorder <id>...",
	Short: "Reorder categories to match the given id sequence",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		if err := a.manager.ReorderCategories(cmd.Context(), args); err != nil {
			return err
		}
		fmt.Println("Reordered categories")
		return nil
	},
}

func init() {
	categoryAddCmd.Flags().StringVar(&categoryIcon, "icon", "📁", "icon glyph")
	categoryAddCmd.Flags().StringVar(&categoryColor, "color", string(model.ColorBlue),
		"palette color (red, orange, yellow, green, blue, purple, pink, teal)")

	categoryCmd.AddCommand(categoryListCmd, categoryAddCmd, categoryRenameCmd,
		categoryDeleteCmd, categoryReorderCmd)
	rootCmd.AddCommand(categoryCmd)
}
