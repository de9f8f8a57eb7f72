package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ehr/carehub/pkg/client"
)

func (c *cli) uploadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "EDI and document uploads",
	}
	cmd.AddCommand(c.uploadCmd(), c.uploadListCmd(), c.uploadGetCmd(), c.uploadDownloadCmd(), c.uploadDeleteCmd())
	return cmd
}

func (c *cli) printUpload(u *client.Upload) error {
	if c.output == outputJSON {
		return c.printJSON(u)
	}
	rows := [][]string{
		{"id", u.ID},
		{"file_name", u.FileName},
		{"content_type", u.ContentType},
		{"size", strconv.FormatInt(u.Size, 10)},
		{"category", u.Category},
		{"sha256", u.Hash},
		{"created_at", u.CreatedAt.Format(time.RFC3339)},
	}
	if u.PatientID != "" {
		rows = append(rows, []string{"patient_id", u.PatientID})
	}
	if u.Description != "" {
		rows = append(rows, []string{"description", u.Description})
	}
	return c.printTable([]string{"field", "value"}, rows)
}

func (c *cli) uploadCmd() *cobra.Command {
	var req client.UploadRequest
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			req.FileName = filepath.Base(args[0])
			req.Content = f
			u, err := c.client.Uploads().Upload(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("upload %s: %w", req.FileName, err)
			}
			return c.printUpload(u)
		},
	}
	cmd.Flags().StringVar(&req.Category, "category", "", "claim, eligibility-270, eligibility-271, remittance or other")
	cmd.Flags().StringVar(&req.Description, "description", "", "free-text description")
	cmd.Flags().StringVar(&req.PatientID, "patient", "", "patient the file belongs to")
	cmd.Flags().StringVar(&req.ContentType, "content-type", "", "override the inferred content type")
	return cmd
}

func (c *cli) uploadListCmd() *cobra.Command {
	var (
		filters     map[string]string
		page, limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.client.Uploads().List(cmd.Context(), client.Filters(filters), client.Page{Number: page, Limit: limit})
			if err != nil {
				return fmt.Errorf("list uploads: %w", err)
			}
			if c.output == outputJSON {
				return c.printJSON(res)
			}
			rows := make([][]string, 0, len(res.Data))
			for _, u := range res.Data {
				rows = append(rows, []string{u.ID, u.FileName, u.Category, strconv.FormatInt(u.Size, 10), u.CreatedAt.Format(time.RFC3339)})
			}
			if err := c.printTable([]string{"id", "file_name", "category", "size", "created_at"}, rows); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%d of %d (page %d/%d)\n", len(res.Data), res.Total, res.Page, res.TotalPages)
			return nil
		},
	}
	cmd.Flags().StringToStringVarP(&filters, "filter", "f", nil, "filter, e.g. -f category=claim")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (server default when 0)")
	return cmd
}

func (c *cli) uploadGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show upload metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.client.Uploads().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get upload %s: %w", args[0], err)
			}
			return c.printUpload(u)
		},
	}
}

func (c *cli) uploadDownloadCmd() *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Write upload content to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := c.client.Uploads().Download(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("download upload %s: %w", args[0], err)
			}
			defer body.Close()

			var w io.Writer = c.out
			if dest != "" && dest != "-" {
				f, err := os.Create(dest)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if _, err := io.Copy(w, body); err != nil {
				return fmt.Errorf("write content: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "to", "", "destination file (stdout when empty)")
	return cmd
}

func (c *cli) uploadDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client.Uploads().Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete upload %s: %w", args[0], err)
			}
			fmt.Fprintf(c.out, "deleted upload %s\n", args[0])
			return nil
		},
	}
}
