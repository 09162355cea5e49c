package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// paramsCmd represents the params command
var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print the effective settings as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		b, err := json.MarshalIndent(viper.AllSettings(), "", "  ")
		if err == nil {
			fmt.Println(string(b))
		}
	},
}

func init() {
	rootCmd.AddCommand(paramsCmd)
}
