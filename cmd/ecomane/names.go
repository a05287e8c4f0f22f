package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jgoulah/ecomane/internal/names"
)

var namesCmd = &cobra.Command{
	Use:   "names [label]",
	Short: "Show the label to entity name table",
	Long: `Without arguments, prints every known device label and the entity name it
maps to. With a label, prints the entity name it normalizes to; unknown labels
are returned unchanged.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNames,
}

func init() {
	rootCmd.AddCommand(namesCmd)
}

func runNames(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		fmt.Println(names.Normalize(args[0]))
		return nil
	}

	table := names.Table()
	labels := make([]string, 0, len(table))
	for label := range table {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		fmt.Printf("%-40q %s\n", label, table[label])
	}
	return nil
}
