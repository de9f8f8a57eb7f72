package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ehr/carehub/pkg/client"
	"github.com/ehr/carehub/pkg/editsession"
	"github.com/ehr/carehub/pkg/resourcestore"
)

func (c *cli) resourceCmd(def resourceDef) *cobra.Command {
	cmd := &cobra.Command{
		Use:   def.Name,
		Short: def.Short,
	}
	cmd.AddCommand(c.listCmd(def), c.getCmd(def), c.deleteCmd(def))
	if len(def.Schema.Fields) > 0 {
		cmd.AddCommand(c.editCmd(def, false), c.editCmd(def, true))
	}
	return cmd
}

func (c *cli) resource(def resourceDef) *client.Resource[client.Document] {
	return client.NewResource[client.Document](c.client, def.Name)
}

func (c *cli) store(def resourceDef) *resourcestore.Store[client.Document] {
	return resourcestore.New[client.Document](c.resource(def), resourcestore.Fields(def.Columns...), c.logger)
}

func (c *cli) listCmd(def resourceDef) *cobra.Command {
	var (
		search      string
		filters     map[string]string
		page, limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List " + def.Name,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := c.store(def)
			store.SetFilters(client.Filters(filters))
			store.SetPage(page, limit)
			if err := store.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("list %s: %w", def.Name, err)
			}
			store.SetSearchTerm(search)
			rows := store.Filtered()

			if c.output == outputJSON {
				return c.printJSON(rows)
			}
			table := make([][]string, 0, len(rows))
			for _, doc := range rows {
				table = append(table, append([]string{doc.RecordID()}, resourcestore.Fields(def.Columns...)(doc)...))
			}
			if err := c.printTable(append([]string{"id"}, def.Columns...), table); err != nil {
				return err
			}
			fmt.Fprintln(c.out, store.Summary())
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "keep rows whose display columns contain this text")
	cmd.Flags().StringToStringVarP(&filters, "filter", "f", nil, "server-side filter, e.g. -f status=active")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (server default when 0)")
	return cmd
}

func (c *cli) getCmd(def resourceDef) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := c.resource(def).Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get %s %s: %w", def.Name, args[0], err)
			}
			return c.printRecord(def, doc)
		},
	}
}

func (c *cli) printRecord(def resourceDef, doc client.Document) error {
	if c.output == outputJSON {
		return c.printJSON(doc)
	}
	paths := append([]string{"id", "version_id"}, def.Columns...)
	for _, f := range def.Schema.Fields {
		if !contains(paths, f.Name) {
			paths = append(paths, f.Name)
		}
	}
	rows := make([][]string, 0, len(paths))
	for _, p := range paths {
		if v := doc.String(p); v != "" {
			rows = append(rows, []string{p, v})
		}
	}
	return c.printTable([]string{"field", "value"}, rows)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// editCmd builds "create" or, with update set, "update <id>".
func (c *cli) editCmd(def resourceDef, update bool) *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a record from --set field=value pairs",
		Args:  cobra.NoArgs,
	}
	if update {
		cmd.Use = "update <id>"
		cmd.Short = "Replace a record, changing the given --set fields"
		cmd.Args = cobra.ExactArgs(1)
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		res := c.resource(def)
		session := editsession.New(def.Schema, res, c.store(def), &editsession.Shell{}, c.logger)

		if update {
			doc, err := res.Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get %s %s: %w", def.Name, args[0], err)
			}
			session.Open(doc)
		} else {
			session.Open(nil)
		}

		for _, kv := range sets {
			name, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("--set %q: expected field=value", kv)
			}
			if err := session.Set(strings.TrimSpace(name), value); err != nil {
				return err
			}
		}

		saved, err := session.Submit(ctx)
		if errors.Is(err, editsession.ErrInvalid) {
			fmt.Fprintf(c.out, "%s rejected:\n", def.Name)
			c.printFieldErrors(session)
			return err
		}
		if err != nil {
			return fmt.Errorf("save %s: %w", def.Name, err)
		}
		return c.printRecord(def, saved)
	}
	cmd.Flags().StringArrayVarP(&sets, "set", "s", nil, "field=value; repeatable, dotted paths allowed")
	return cmd
}

func (c *cli) deleteCmd(def resourceDef) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.resource(def).Remove(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete %s %s: %w", def.Name, args[0], err)
			}
			fmt.Fprintf(c.out, "deleted %s %s\n", def.Name, args[0])
			return nil
		},
	}
}
