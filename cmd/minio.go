package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"voicecleaner/storage"
)

var (
	minioPrefix string
	minioDelete string
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO归档管理",
	Long:  `列出 MinIO 存储桶中归档的运行结果，或删除某次运行的归档。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.MinioEnabled() {
			return &exitError{code: exitFatal, err: errors.New("MINIO_ENDPOINT is not set")}
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		client, err := storage.NewMinioClient(ctx, cfg)
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		archiver := storage.NewArchiver(client, cfg.MinioBucket, cfg.MinioPrefix)

		if minioDelete != "" {
			n, err := archiver.DeleteRun(ctx, minioDelete)
			if err != nil {
				return &exitError{code: exitFatal, err: err}
			}
			fmt.Fprintf(out, "删除了 %d 个对象\n", n)
			return nil
		}

		prefix := minioPrefix
		if prefix == "" {
			prefix = cfg.MinioPrefix
		}
		objects, err := archiver.ListObjects(ctx, prefix)
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}

		var total uint64
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED")
		for _, obj := range objects {
			total += uint64(obj.Size)
			fmt.Fprintf(tw, "%s\t%s\t%s\n", obj.Key, humanize.IBytes(uint64(obj.Size)), humanize.Time(obj.LastModified))
		}
		tw.Flush()
		fmt.Fprintf(out, "\n%d objects, %s in %s/%s\n", len(objects), humanize.IBytes(total), cfg.MinioBucket, prefix)
		return nil
	},
}

func init() {
	minioCmd.Flags().StringVar(&minioPrefix, "prefix", "", "object prefix to list (env MINIO_PREFIX)")
	minioCmd.Flags().StringVar(&minioDelete, "delete-run", "", "delete every archived object of this run")
	rootCmd.AddCommand(minioCmd)
}
