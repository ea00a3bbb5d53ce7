// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/blobrepo/document"
	"storj.io/blobrepo/peer"
	"storj.io/blobrepo/private/date"
	"storj.io/common/memory"
	"storj.io/common/process"
)

var (
	documentCmd = &cobra.Command{
		Use:   "document",
		Short: "Store, retrieve and delete documents",
	}
	putCmd = &cobra.Command{
		Use:   "put [file]",
		Short: "Store a new version of a document, - reads standard input",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdPut,
	}
	getCmd = &cobra.Command{
		Use:   "get [uuid]",
		Short: "Retrieve the current version of a document",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdGet,
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [uuid]",
		Short: "Delete a version of a document",
		Args:  cobra.MaximumNArgs(1),
		RunE:  cmdDelete,
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List every stored document version",
		Args:  cobra.NoArgs,
		RunE:  cmdList,
	}

	putOpts struct {
		uuid         string
		archiveAfter string
		metadata     []string
		store        int64
	}
	getOpts struct {
		output   string
		omitBlob bool
	}
	deleteOpts struct {
		docID int64
	}
	listOpts struct {
		account string
	}
)

func bindDocumentFlags() {
	putCmd.Flags().StringVar(&putOpts.uuid, "uuid", "", "uuid of the document, a new one is generated when empty")
	putCmd.Flags().StringVar(&putOpts.archiveAfter, "archive-after", "720h", "RFC 3339 instant, or duration from now, after which the document is archived")
	putCmd.Flags().StringArrayVar(&putOpts.metadata, "meta", nil, "metadata property as name=value, may be repeated")
	putCmd.Flags().Int64Var(&putOpts.store, "store", 0, "id of the store the blob is written to, selected automatically when 0")

	getCmd.Flags().StringVar(&getOpts.output, "output", "-", "file the blob is written to, - writes standard output")
	getCmd.Flags().BoolVar(&getOpts.omitBlob, "omit-blob", false, "only print the document details")

	deleteCmd.Flags().Int64Var(&deleteOpts.docID, "doc-id", 0, "id of the version to delete, required when the document has several versions")

	listCmd.Flags().StringVar(&listOpts.account, "account", "", "only list documents in stores whose account name matches this LIKE pattern")
}

// parseMetadata parses name=value pairs.
func parseMetadata(values []string) ([]document.Property, error) {
	properties := make([]document.Property, 0, len(values))
	for _, value := range values {
		name, v, ok := strings.Cut(value, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errs.New("invalid metadata %q: expected name=value", value)
		}
		properties = append(properties, document.Property{Name: name, Value: v})
	}
	return properties, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func cmdPut(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	archiveAfter, err := date.ParseInstant(putOpts.archiveAfter, time.Now())
	if err != nil {
		return err
	}
	metadata, err := parseMetadata(putOpts.metadata)
	if err != nil {
		return err
	}
	data, err := readInput(args[0])
	if err != nil {
		return errs.Wrap(err)
	}

	return withPeer(ctx, zap.L(), func(ctx context.Context, repo *peer.Peer) error {
		result, err := repo.Documents.Upsert(ctx, document.UpsertRequest{
			UUID:           putOpts.uuid,
			ArchiveAfter:   archiveAfter,
			Blob:           data,
			Metadata:       metadata,
			PreferredStore: putOpts.store,
		})
		if result.DocID > 0 {
			tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "UUID\tDOC ID\tSTORE\tBLOB\tREWRITTEN")
			_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%t\n", result.UUID, result.DocID, result.StoreID, result.BlobID, result.Rewritten)
			if flushErr := tw.Flush(); flushErr != nil {
				return errs.Combine(err, flushErr)
			}
		}
		return err
	})
}

func cmdGet(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	return withPeer(ctx, zap.L(), func(ctx context.Context, repo *peer.Peer) (err error) {
		doc, err := repo.Documents.Retrieve(ctx, args[0], getOpts.omitBlob)
		if err != nil {
			return err
		}

		details := os.Stdout
		if !getOpts.omitBlob {
			if getOpts.output == "-" {
				details = os.Stderr
				if _, err := os.Stdout.Write(doc.Blob); err != nil {
					return errs.Wrap(err)
				}
			} else if err := os.WriteFile(getOpts.output, doc.Blob, 0600); err != nil {
				return errs.Wrap(err)
			}
		}

		tw := tabwriter.NewWriter(details, 0, 8, 2, ' ', 0)
		defer func() { err = errs.Combine(err, tw.Flush()) }()

		_, _ = fmt.Fprintf(tw, "uuid\t%s\n", doc.UUID)
		_, _ = fmt.Fprintf(tw, "doc id\t%d\n", doc.DocID)
		_, _ = fmt.Fprintf(tw, "created\t%s\n", date.Format(doc.Created))
		_, _ = fmt.Fprintf(tw, "modified\t%s\n", date.Format(doc.Modified))
		_, _ = fmt.Fprintf(tw, "archive after\t%s\n", date.Format(doc.ArchiveAfter))
		_, _ = fmt.Fprintf(tw, "store\t%d\n", doc.StoreID)
		_, _ = fmt.Fprintf(tw, "blob\t%s (%s, md5 %s)\n", doc.BlobID, memory.Size(doc.BlobSize), doc.BlobMD5)
		for _, property := range doc.Metadata {
			_, _ = fmt.Fprintf(tw, "meta %s\t%s\n", property.Name, property.Value)
		}
		return nil
	})
}

func cmdDelete(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	var docUUID string
	if len(args) > 0 {
		docUUID = args[0]
	}
	if docUUID == "" && deleteOpts.docID <= 0 {
		return errs.New("a uuid or --doc-id is required")
	}

	return withPeer(ctx, zap.L(), func(ctx context.Context, repo *peer.Peer) error {
		return repo.Documents.Delete(ctx, docUUID, deleteOpts.docID)
	})
}

func cmdList(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	return withPeer(ctx, zap.L(), func(ctx context.Context, repo *peer.Peer) (err error) {
		items, err := repo.Documents.List(ctx, listOpts.account)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		defer func() { err = errs.Combine(err, tw.Flush()) }()

		_, _ = fmt.Fprintln(tw, "UUID\tCREATED\tMODIFIED\tARCHIVE AFTER\tBLOB\tSIZE\tMD5\tACCOUNT\tTIER")
		for _, item := range items {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				item.UUID, date.Format(item.Created), date.Format(item.Modified), date.Format(item.ArchiveAfter),
				item.BlobID, memory.Size(item.BlobSize), item.BlobMD5, item.AccountName, item.Tier)
		}
		return nil
	})
}
