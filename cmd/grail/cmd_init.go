package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const starterScript = `from grail import external, Input

# Declare the values the host must supply before running this script.
count: int = Input("count", default=1)

# Declare a function the host must implement.
@external
def fetch_price(symbol: str) -> float:
    """Return the current price for a ticker symbol."""
    ...

price = fetch_price("AAPL") * count
price
`

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "write a starter script at path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !forceInit {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}
		if err := os.WriteFile(path, []byte(starterScript), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Printf("wrote starter script to %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
}
