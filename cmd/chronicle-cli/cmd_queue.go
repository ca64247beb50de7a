package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the audit queue",
	}
	cmd.AddCommand(queueStatsCmd())
	cmd.AddCommand(queueDeadCmd())
	cmd.AddCommand(queueRetryCmd())
	return cmd
}

func queueStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue item counts per status",
		Run: func(cmd *cobra.Command, args []string) {
			stats, err := apiClient.Queue.Stats(context.Background())
			if err != nil {
				fatal("queue stats", err)
			}
			if flagFmt == "table" {
				formatTable(
					[]string{"PENDING", "PROCESSING", "FAILED", "DEAD", "COMPLETED"},
					[][]string{{
						strconv.FormatInt(stats.Pending, 10),
						strconv.FormatInt(stats.Processing, 10),
						strconv.FormatInt(stats.Failed, 10),
						strconv.FormatInt(stats.Dead, 10),
						strconv.FormatInt(stats.Completed, 10),
					}},
				)
				return
			}
			output(stats, "")
		},
	}
}

func queueDeadCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "dead",
		Short: "List dead-lettered queue items",
		Run: func(cmd *cobra.Command, args []string) {
			items, hasMore, err := apiClient.Queue.ListDead(context.Background(), limit, offset)
			if err != nil {
				fatal("list dead items", err)
			}
			if flagFmt == "table" {
				headers := []string{"ID", "RETRIES", "LAST ERROR", "ENQUEUED"}
				var rows [][]string
				for _, it := range items {
					lastErr := ""
					if it.LastError != nil {
						lastErr = *it.LastError
					}
					rows = append(rows, []string{
						strconv.FormatInt(it.ID, 10), strconv.Itoa(it.RetryCount),
						lastErr, it.EnqueuedAt.Format("2006-01-02 15:04:05"),
					})
				}
				formatTable(headers, rows)
				if hasMore {
					fmt.Println("(more results available; use --offset)")
				}
				return
			}
			if flagFmt == "quiet" {
				for _, it := range items {
					fmt.Println(it.ID)
				}
				return
			}
			output(items, "")
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset")
	return cmd
}

func queueRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Requeue a dead item with a fresh retry budget",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: id must be an integer, got %q\n", args[0])
				os.Exit(1)
			}
			item, err := apiClient.Queue.RetryDead(context.Background(), id)
			if err != nil {
				fatal("retry dead item", err)
			}
			output(item, strconv.FormatInt(item.ID, 10))
		},
	}
}
