package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/backbill/chronicle/client"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit log",
	}
	cmd.AddCommand(auditQueryCmd())
	return cmd
}

func auditQueryCmd() *cobra.Command {
	var (
		entityType, recordID, operation, actorID, batchID string
		fromStr, toStr                                    string
		limit, offset                                     int
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Search audit records (newest first)",
		Run: func(cmd *cobra.Command, args []string) {
			opts := &client.AuditQueryOptions{
				EntityType: entityType,
				RecordID:   recordID,
				Operation:  operation,
				ActorID:    actorID,
				BatchID:    batchID,
				Limit:      limit,
				Offset:     offset,
			}
			if fromStr != "" {
				ts, err := time.Parse(time.RFC3339, fromStr)
				if err != nil {
					fatal("parse --from", err)
				}
				opts.From = &ts
			}
			if toStr != "" {
				ts, err := time.Parse(time.RFC3339, toStr)
				if err != nil {
					fatal("parse --to", err)
				}
				opts.To = &ts
			}
			records, hasMore, err := apiClient.Audit.Query(context.Background(), opts)
			if err != nil {
				fatal("query audit", err)
			}
			if flagFmt == "table" {
				headers := []string{"ID", "TABLE", "RECORD", "OP", "VERSION", "ACTOR", "AT"}
				var rows [][]string
				for _, rec := range records {
					rows = append(rows, []string{
						strconv.FormatInt(rec.ID, 10), rec.TableName, rec.RecordID,
						rec.Operation, strconv.FormatInt(rec.VersionAfter, 10),
						rec.ActorID, rec.OccurredAt.Format("2006-01-02 15:04:05"),
					})
				}
				formatTable(headers, rows)
				if hasMore {
					fmt.Println("(more results available; use --offset)")
				}
				return
			}
			output(records, "")
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "Filter by entity type")
	cmd.Flags().StringVar(&recordID, "record", "", "Filter by record ID")
	cmd.Flags().StringVar(&operation, "operation", "", "Filter by operation (CREATE|UPDATE|DELETE|SOFT_DELETE|RESTORE)")
	cmd.Flags().StringVar(&actorID, "actor-filter", "", "Filter by actor ID")
	cmd.Flags().StringVar(&batchID, "batch", "", "Filter by batch UUID")
	cmd.Flags().StringVar(&fromStr, "from", "", "Start of time range (RFC3339)")
	cmd.Flags().StringVar(&toStr, "to", "", "End of time range (RFC3339)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset")
	return cmd
}
