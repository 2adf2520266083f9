package cmd

import (
	"fmt"
	"log"
	"time"

	"minisite/core/auth"

	"github.com/spf13/cobra"
)

var (
	tokenProject string
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发写接口使用的 JWT",
	Long:  `使用 JWT_SECRET 签发 bearer token。不指定 --project 时 token 对所有项目有效。`,
	Run: func(cmd *cobra.Command, args []string) {
		if !cfg.AuthEnabled() {
			log.Fatal("JWT_SECRET 未设置")
		}
		token, err := auth.GenerateToken([]byte(cfg.JWTSecret), tokenSubject, tokenProject, tokenTTL)
		if err != nil {
			log.Fatalf("签发失败: %v", err)
		}
		fmt.Println(token)
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenProject, "project", "", "限定的项目ID")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "producer", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "有效期")
	rootCmd.AddCommand(tokenCmd)
}
