package cmd

import (
	"minisite/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动迷你站服务器",
	Long:  `启动 master-save / publish HTTP 服务，存储后端由 STORAGE_BACKEND 决定。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
