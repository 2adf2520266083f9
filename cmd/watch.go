package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"minisite/config"
	"minisite/core/snapshot"
	"minisite/model"
	"minisite/storage"

	"github.com/spf13/cobra"
)

var watchProject string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "监听项目 latest 指针变化（仅 fs 后端）",
	Run: func(cmd *cobra.Command, args []string) {
		if cfg.StorageBackend != config.BackendFS {
			log.Fatalf("watch 只支持 fs 后端，当前为 %s", cfg.StorageBackend)
		}
		if err := snapshot.ValidateProjectID(watchProject); err != nil {
			log.Fatal(err)
		}
		store, err := storage.NewFSStore(cfg.FSRoot)
		if err != nil {
			log.Fatalf("无法打开存储: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		latestKey := snapshot.LatestKey(watchProject)
		dirKey := strings.TrimSuffix(latestKey, "/"+path.Base(latestKey))
		fmt.Printf("watching %s\n", latestKey)

		err = store.WatchPrefix(ctx, dirKey, func(key string) {
			if key != latestKey {
				return
			}
			var pointer model.LatestPointer
			found, err := storage.GetJSON(ctx, store, key, &pointer)
			if err != nil || !found {
				fmt.Printf("latest pointer unreadable: %v\n", err)
				return
			}
			fmt.Printf("%s  %s\n", pointer.LastMasterSaveAt, pointer.LatestSnapshotKey)
		})
		if err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchProject, "project", "", "项目ID")
	watchCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(watchCmd)
}
