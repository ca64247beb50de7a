package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/backbill/chronicle/client"
)

func newEntityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Manage versioned entities",
	}
	cmd.AddCommand(entityCreateCmd())
	cmd.AddCommand(entityGetCmd())
	cmd.AddCommand(entityUpdateCmd())
	cmd.AddCommand(entityDeleteCmd())
	cmd.AddCommand(entityRestoreCmd())
	cmd.AddCommand(entityListCmd())
	cmd.AddCommand(entityTrailCmd())
	return cmd
}

func entityCreateCmd() *cobra.Command {
	var entityID, dataJSON string
	cmd := &cobra.Command{
		Use:   "create <entity-type>",
		Short: "Create an entity",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			req := &client.CreateEntityRequest{
				ID:         entityID,
				EntityType: args[0],
			}
			if dataJSON != "" {
				if err := json.Unmarshal([]byte(dataJSON), &req.Data); err != nil {
					fatal("parse data", err)
				}
			}
			entity, err := apiClient.Entities.Create(context.Background(), req)
			if err != nil {
				fatal("create entity", err)
			}
			output(entity, entity.ID)
		},
	}
	cmd.Flags().StringVar(&entityID, "id", "", "Entity ID (generated when empty)")
	cmd.Flags().StringVar(&dataJSON, "data", "", "Entity data as JSON")
	return cmd
}

func entityGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get an entity by ID",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entity, err := apiClient.Entities.Get(context.Background(), args[0])
			if err != nil {
				fatal("get entity", err)
			}
			output(entity, entity.ID)
		},
	}
}

func entityUpdateCmd() *cobra.Command {
	var expectedVersion int64
	var changesJSON string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an entity (optimistic version check)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			req := &client.MutateEntityRequest{ExpectedVersion: expectedVersion}
			if changesJSON == "" {
				fmt.Fprintln(os.Stderr, "Error: --changes is required")
				os.Exit(1)
			}
			if err := json.Unmarshal([]byte(changesJSON), &req.Changes); err != nil {
				fatal("parse changes", err)
			}
			entity, err := apiClient.Entities.Update(context.Background(), args[0], req)
			if err != nil {
				if client.IsStaleVersion(err) {
					fmt.Fprintln(os.Stderr, "Hint: re-run 'chronicle entity get' and retry with the current version")
				}
				fatal("update entity", err)
			}
			output(entity, entity.ID)
		},
	}
	cmd.Flags().Int64Var(&expectedVersion, "expected-version", 0, "Current entity version (required)")
	cmd.Flags().StringVar(&changesJSON, "changes", "", "Changes as JSON (null value removes a field)")
	cmd.MarkFlagRequired("expected-version") //nolint:errcheck
	return cmd
}

func entityDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete an entity",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entity, err := apiClient.Entities.Delete(context.Background(), args[0])
			if err != nil {
				fatal("delete entity", err)
			}
			output(entity, entity.ID)
		},
	}
}

func entityRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a soft-deleted entity",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entity, err := apiClient.Entities.Restore(context.Background(), args[0])
			if err != nil {
				fatal("restore entity", err)
			}
			output(entity, entity.ID)
		},
	}
}

func entityListCmd() *cobra.Command {
	var entityType string
	var includeDeleted bool
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities",
		Run: func(cmd *cobra.Command, args []string) {
			if limit < 0 || offset < 0 {
				fmt.Fprintln(os.Stderr, "Error: --limit and --offset must be non-negative")
				os.Exit(1)
			}
			opts := &client.EntityListOptions{
				Type:           entityType,
				IncludeDeleted: includeDeleted,
				Limit:          limit,
				Offset:         offset,
			}
			entities, _, err := apiClient.Entities.List(context.Background(), opts)
			if err != nil {
				fatal("list entities", err)
			}
			if flagFmt == "table" {
				headers := []string{"ID", "TYPE", "VERSION", "DELETED", "UPDATED BY"}
				var rows [][]string
				for _, e := range entities {
					rows = append(rows, []string{
						e.ID, e.EntityType, strconv.FormatInt(e.Version, 10),
						strconv.FormatBool(e.IsDeleted), e.UpdatedBy,
					})
				}
				formatTable(headers, rows)
				return
			}
			if flagFmt == "quiet" {
				for _, e := range entities {
					fmt.Println(e.ID)
				}
				return
			}
			output(entities, "")
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "Filter by entity type")
	cmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "Include soft-deleted entities")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset")
	return cmd
}

func entityTrailCmd() *cobra.Command {
	var entityType string
	cmd := &cobra.Command{
		Use:   "trail <id>",
		Short: "Show the full audit trail for an entity",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			trail, err := apiClient.Audit.Trail(context.Background(), entityType, args[0], nil, nil)
			if err != nil {
				fatal("get trail", err)
			}
			if flagFmt == "table" {
				headers := []string{"VERSION", "OPERATION", "ACTOR", "AT"}
				var rows [][]string
				for _, rec := range trail {
					rows = append(rows, []string{
						strconv.FormatInt(rec.VersionAfter, 10), rec.Operation,
						rec.ActorID, rec.OccurredAt.Format("2006-01-02 15:04:05"),
					})
				}
				formatTable(headers, rows)
				return
			}
			output(trail, "")
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "Entity type (required)")
	cmd.MarkFlagRequired("type") //nolint:errcheck
	return cmd
}
