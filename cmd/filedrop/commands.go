package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fruitsalade/filedrop/internal/cache"
	"github.com/fruitsalade/filedrop/internal/catalog"
	"github.com/fruitsalade/filedrop/internal/config"
	"github.com/fruitsalade/filedrop/internal/ingest"
	"github.com/fruitsalade/filedrop/internal/reconcile"
	"github.com/fruitsalade/filedrop/pkg/codec"
	"github.com/fruitsalade/filedrop/pkg/models"
)

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Encode files and add them to the catalog",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "media type for every file (detected when empty)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("usage: filedrop add FILE...", 2)
			}
			s, err := open(c)
			if err != nil {
				return err
			}
			s.ctl.ClearNotices()

			sources := make([]ingest.Source, 0, c.NArg())
			for _, path := range c.Args().Slice() {
				sources = append(sources, ingest.FileSource{Path: path, Type: c.String("type")})
			}
			res, refreshErr := s.ctl.Ingest(c.Context, sources)

			out := c.App.Writer
			for _, o := range res.Outcomes {
				if o.Err != nil {
					fmt.Fprintf(out, "failed  %s: %v\n", o.Err.Filename, o.Err.Err)
					continue
				}
				size := "?"
				if n, ok := o.Record.Size(); ok {
					size = models.FormatSize(n)
				}
				fmt.Fprintf(out, "added   %s (%s)\n", o.Record.Filename, size)
			}
			if res.PersistErr != nil {
				if qe, ok := cache.AsQuotaExceeded(res.PersistErr); ok {
					fmt.Fprintf(c.App.ErrWriter, "warning: local storage full (%s of %s), files kept for this run only\n",
						models.FormatSize(qe.Size), models.FormatSize(qe.Quota))
				} else {
					fmt.Fprintf(c.App.ErrWriter, "warning: could not persist files: %v\n", res.PersistErr)
				}
			}
			if refreshErr != nil {
				fmt.Fprintf(c.App.ErrWriter, "warning: list refresh failed: %v\n", refreshErr)
			}
			if n := len(res.Errors()); n > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d files failed", n, len(sources)), 1)
			}
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List catalog records, newest last for local and newest first for remote",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print records as JSON"},
		},
		Action: func(c *cli.Context) error {
			s, err := open(c)
			if err != nil {
				return err
			}
			v := s.ctl.View()
			if v.State == reconcile.Error {
				return cli.Exit("list failed: "+v.Err, 1)
			}
			if c.Bool("json") {
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(v.Files)
			}
			writeTable(c.App.Writer, v.Files)
			return nil
		},
	}
}

func writeTable(w io.Writer, files []models.FileRecord) {
	if len(files) == 0 {
		fmt.Fprintln(w, "No files yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSIZE\tTYPE\tCREATED\tNAME")
	for _, f := range files {
		size := "-"
		if n, ok := f.Size(); ok {
			size = models.FormatSize(n)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.Key(), size, mediaType(f), listDate(f), f.Filename)
	}
	tw.Flush()
}

// mediaType falls back to the data URL header when the record has no type.
func mediaType(f models.FileRecord) string {
	if f.MimeType != "" {
		return f.MimeType
	}
	if f.IsDataURL() {
		if mt, err := codec.MediaTypeOf(f.Content); err == nil {
			return mt
		}
	}
	return "-"
}

func listDate(f models.FileRecord) string {
	if f.CreatedAt == nil || f.CreatedAt.IsZero() {
		return "-"
	}
	return models.FormatDate(f.CreatedAt)
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Write a record's content to disk",
		ArgsUsage: "KEY",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "destination path, - for stdout (default: the record's filename)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: filedrop get KEY", 2)
			}
			key := c.Args().First()
			s, err := open(c)
			if err != nil {
				return err
			}
			v := s.ctl.View()
			if v.State == reconcile.Error {
				return cli.Exit("list failed: "+v.Err, 1)
			}
			rec, ok := findRecord(v.Files, key)
			if !ok {
				return cli.Exit("no record matches "+key, 1)
			}

			if !rec.IsDataURL() {
				fmt.Fprintln(c.App.Writer, rec.Content)
				return nil
			}
			blob, err := codec.Decode(rec.Content)
			if err != nil {
				return cli.Exit(fmt.Sprintf("%s: %v", rec.Filename, err), 1)
			}

			dest := c.String("output")
			if dest == "-" {
				_, err := c.App.Writer.Write(blob.Data)
				return err
			}
			if dest == "" {
				dest = filepath.Base(rec.Filename)
			}
			if err := os.WriteFile(dest, blob.Data, 0644); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Fprintf(c.App.Writer, "wrote %s (%s, %s)\n", dest, models.FormatSize(int64(len(blob.Data))), blob.MediaType)
			return nil
		},
	}
}

// findRecord matches key against record keys first and filenames second.
func findRecord(files []models.FileRecord, key string) (models.FileRecord, bool) {
	for _, f := range files {
		if f.Key() == key {
			return f, true
		}
	}
	for _, f := range files {
		if f.Filename == key {
			return f, true
		}
	}
	return models.FileRecord{}, false
}

const rmDescription = `In local mode KEY is a filename and every record with that name is removed.
In remote mode KEY is the numeric record ID shown by list.`

func rmCommand() *cli.Command {
	return &cli.Command{
		Name:        "rm",
		Usage:       "Delete records by key",
		ArgsUsage:   "KEY",
		Description: rmDescription,
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: filedrop rm KEY", 2)
			}
			key := c.Args().First()
			s, err := open(c)
			if err != nil {
				return err
			}
			n, err := s.ctl.Delete(c.Context, key)
			if err != nil && n == 0 {
				return cli.Exit("delete failed: "+err.Error(), 1)
			}
			if n == 0 {
				return cli.Exit("no record matches "+key, 1)
			}
			fmt.Fprintf(c.App.Writer, "removed %d record(s)\n", n)
			if err != nil {
				fmt.Fprintf(c.App.ErrWriter, "warning: %v\n", err)
			}
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show catalog mode, reachability, and record count",
		Action: func(c *cli.Context) error {
			s, err := open(c)
			if err != nil {
				return err
			}
			v := s.ctl.View()
			out := c.App.Writer

			fmt.Fprintf(out, "catalog:  %s (%s)\n", s.catalog.Name(), s.catalog.Mode())
			if s.cfg.Mode == config.ModeRemote {
				fmt.Fprintf(out, "server:   %s\n", s.cfg.ServerURL)
			}
			switch cat := s.catalog.(type) {
			case *catalog.Remote:
				if cat.Online() {
					fmt.Fprintf(out, "online:   yes (clock %s)\n", v.ServiceTime.Local().Format(time.RFC3339))
				} else {
					fmt.Fprintln(out, "online:   no")
				}
				if seen := cat.LastSeen(); !seen.IsZero() {
					fmt.Fprintf(out, "seen:     %s\n", seen.Local().Format(time.RFC3339))
				}
			case *catalog.Local:
				fmt.Fprintf(out, "quota:    %s\n", models.FormatSize(cat.Quota()))
			}
			fmt.Fprintf(out, "state:    %s\n", v.State)
			fmt.Fprintf(out, "records:  %d\n", len(v.Files))
			printNotices(out, v.Notices)
			if v.State == reconcile.Error {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func printNotices(w io.Writer, notices []string) {
	for _, n := range notices {
		fmt.Fprintf(w, "notice: %s\n", n)
	}
}
