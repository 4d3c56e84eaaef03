package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"voicecleaner/cache"
)

var redisRunID string

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功并进行基本读写操作，可选地读取缓存的运行报告。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.RedisEnabled() {
			return &exitError{code: exitFatal, err: errors.New("REDIS_HOST is not set")}
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		client, err := cache.ConnectRedis(ctx, cfg)
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		defer client.Close()
		fmt.Fprintln(out, "Redis连接成功！")

		if err := cache.CheckRedis(ctx, client); err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		fmt.Fprintln(out, "Redis基本操作测试成功！")

		rc := cache.NewReportCache(client, cfg.RedisTTL)
		var summary interface{}
		if redisRunID != "" {
			summary, err = rc.Get(ctx, redisRunID)
		} else {
			summary, err = rc.Latest(ctx)
		}
		switch {
		case errors.Is(err, cache.ErrRunNotFound):
			fmt.Fprintln(out, "没有缓存的运行报告")
			return nil
		case err != nil:
			return &exitError{code: exitFatal, err: err}
		}
		return printJSON(out, summary)
	},
}

func init() {
	redisCmd.Flags().StringVar(&redisRunID, "run", "", "print the cached report of this run instead of the latest")
	rootCmd.AddCommand(redisCmd)
}
