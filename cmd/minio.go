package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"minisite/core/snapshot"
	"minisite/server"
	"minisite/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix  string
	minioProject string
	minioStats   bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "存储桶内容查看",
	Long:  `列出存储中的对象。指定 --project 时列出该项目的快照和 latest 指针。`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := server.OpenStore(ctx, cfg)
		if err != nil {
			log.Fatalf("无法打开存储: %v", err)
		}
		lister, ok := store.(storage.Lister)
		if !ok {
			log.Fatalf("存储后端 %s 不支持列出对象", cfg.StorageBackend)
		}

		prefix := minioPrefix
		if minioProject != "" {
			if err := snapshot.ValidateProjectID(minioProject); err != nil {
				log.Fatal(err)
			}
			prefix = snapshot.ReturnsPrefix(minioProject)
		}

		objects, err := lister.List(ctx, prefix)
		if err != nil {
			log.Fatalf("列出对象失败: %v", err)
		}

		if minioStats {
			stats := storage.Stats(objects)
			fmt.Printf("objects: %d, bytes: %d\n", stats.TotalObjects, stats.TotalSize)
			return
		}
		storage.PrintListing(os.Stdout, prefix, objects)
	},
}

func init() {
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "对象前缀")
	minioCmd.Flags().StringVar(&minioProject, "project", "", "项目ID，列出其快照")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "只显示统计信息")
	rootCmd.AddCommand(minioCmd)
}
