// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gateway's build version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Println(Version)
		return nil
	},
}
