package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/lanbox/backend/internal/client"
	"github.com/lanbox/backend/internal/config"
	"github.com/spf13/cobra"
)

func sendCmd() *cobra.Command {
	var limit string

	cmd := &cobra.Command{
		Use:   "send <server> <file>...",
		Short: "Upload files one after another",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []client.Option
			if limit != "" {
				bps, err := config.ParseSize(limit)
				if err != nil {
					return fmt.Errorf("invalid --limit: %w", err)
				}
				opts = append(opts, client.WithRateLimit(int(bps)))
			}
			c, err := client.New(args[0], opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			sessions := c.UploadAll(cmd.Context(), args[1:], func(s client.UploadSession) {
				printSession(out, s)
			})

			failed := 0
			for _, s := range sessions {
				if s.State != client.StateSucceeded {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d uploads failed", failed, len(sessions))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&limit, "limit", "", "Bandwidth cap per second, e.g. 2MB")

	return cmd
}

func printSession(w io.Writer, s client.UploadSession) {
	name := filepath.Base(s.File)
	switch s.State {
	case client.StateUploading:
		p := s.Progress
		fmt.Fprintf(w, "\r%-30s %3d%%  %7.2f MB / %.2f MB  %6.2f MB/s  %5.1fs",
			name, p.Percent,
			float64(p.Sent)/(1<<20), float64(p.Total)/(1<<20),
			p.Rate/(1<<20), p.Elapsed.Seconds())
	case client.StateSucceeded:
		fmt.Fprintf(w, "\r\033[32m✓\033[0m %-28s -> %s\n", name, s.Result.Filename)
	case client.StateFailed:
		fmt.Fprintf(w, "\r\033[31m✗\033[0m %-28s %v\n", name, s.Err)
	}
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <server>",
		Short: "List files stored on a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New(args[0])
			if err != nil {
				return err
			}
			files, err := c.List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tUPLOADED")
			for _, f := range files {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", f.Filename, f.Size, f.UploadTime.Local().Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}

func getCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <server> <name>",
		Short: "Download a stored file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New(args[0])
			if err != nil {
				return err
			}
			name := args[1]
			if output == "" {
				output = filepath.Base(name)
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			n, err := c.Download(cmd.Context(), name, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(output)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d bytes)\n", output, n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the file (default: its name)")

	return cmd
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <server> <name>...",
		Short: "Delete stored files",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New(args[0])
			if err != nil {
				return err
			}
			for _, name := range args[1:] {
				if err := c.Delete(cmd.Context(), name); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
			}
			return nil
		},
	}
}
