package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/backbill/chronicle/client"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage configuration snapshots",
	}
	cmd.AddCommand(snapshotTakeCmd())
	cmd.AddCommand(snapshotGetCmd())
	cmd.AddCommand(snapshotListCmd())
	cmd.AddCommand(snapshotAncestryCmd())
	cmd.AddCommand(snapshotRollbackCmd())
	return cmd
}

func snapshotTakeCmd() *cobra.Command {
	var snapType, dataJSON string
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Capture a configuration snapshot",
		Run: func(cmd *cobra.Command, args []string) {
			req := &client.TakeSnapshotRequest{SnapshotType: snapType}
			if dataJSON != "" {
				if err := json.Unmarshal([]byte(dataJSON), &req.Data); err != nil {
					fatal("parse data", err)
				}
			}
			snap, err := apiClient.Snapshots.Take(context.Background(), req)
			if err != nil {
				fatal("take snapshot", err)
			}
			output(snap, snap.ID)
		},
	}
	cmd.Flags().StringVar(&snapType, "type", "manual", "Snapshot type: manual|scheduled|pre_change")
	cmd.Flags().StringVar(&dataJSON, "data", "", "Explicit configuration data as JSON (captures live config when empty)")
	return cmd
}

func snapshotGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a snapshot by ID",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			snap, err := apiClient.Snapshots.Get(context.Background(), args[0])
			if err != nil {
				fatal("get snapshot", err)
			}
			output(snap, snap.ID)
		},
	}
}

func snapshotListCmd() *cobra.Command {
	var snapType string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots (newest first)",
		Run: func(cmd *cobra.Command, args []string) {
			opts := &client.SnapshotListOptions{Type: snapType, Limit: limit, Offset: offset}
			snaps, hasMore, err := apiClient.Snapshots.List(context.Background(), opts)
			if err != nil {
				fatal("list snapshots", err)
			}
			if flagFmt == "table" {
				headers := []string{"ID", "TYPE", "HASH", "CREATED BY", "CREATED"}
				var rows [][]string
				for _, s := range snaps {
					hash := s.ConfigurationHash
					if len(hash) > 12 {
						hash = hash[:12]
					}
					rows = append(rows, []string{
						s.ID, s.SnapshotType, hash, s.CreatedBy,
						s.CreatedAt.Format("2006-01-02 15:04:05"),
					})
				}
				formatTable(headers, rows)
				if hasMore {
					fmt.Println("(more results available; use --offset)")
				}
				return
			}
			if flagFmt == "quiet" {
				for _, s := range snaps {
					fmt.Println(s.ID)
				}
				return
			}
			output(snaps, "")
		},
	}
	cmd.Flags().StringVar(&snapType, "type", "", "Filter by snapshot type")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset")
	return cmd
}

func snapshotAncestryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ancestry <id>",
		Short: "Show the snapshot chain back to its root",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			chain, err := apiClient.Snapshots.Ancestry(context.Background(), args[0])
			if err != nil {
				fatal("get ancestry", err)
			}
			if flagFmt == "table" {
				headers := []string{"DEPTH", "ID", "TYPE", "CREATED"}
				var rows [][]string
				for i, s := range chain {
					rows = append(rows, []string{
						strconv.Itoa(i), s.ID, s.SnapshotType,
						s.CreatedAt.Format("2006-01-02 15:04:05"),
					})
				}
				formatTable(headers, rows)
				return
			}
			output(chain, "")
		},
	}
}

func snapshotRollbackCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rollback <id>",
		Short: "Restore configuration to the state in a snapshot",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if !yes {
				fmt.Printf("This restores all config entities to snapshot %s. Re-run with --yes to confirm.\n", args[0])
				return
			}
			snap, err := apiClient.Snapshots.Rollback(context.Background(), args[0])
			if err != nil {
				fatal("rollback", err)
			}
			output(snap, snap.ID)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the rollback")
	return cmd
}
