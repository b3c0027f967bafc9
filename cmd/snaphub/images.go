package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/snaphub/internal/rpc"
)

func newListCmd() *cobra.Command {
	cmd := newClientCmd("list", "List stored images, newest first", cobra.NoArgs,
		func(ctx context.Context, c *rpc.Client, v *viper.Viper, _ []string) error {
			imgs, err := c.List(ctx)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			if v.GetBool("json") {
				return printJSON(imgs)
			}
			if len(imgs) == 0 {
				fmt.Println("No images stored.")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(tw, "ID\tCREATED\tPATH\tOCR\n")
			for _, img := range imgs {
				ocr := "-"
				if img.OCRResult != nil {
					ocr = "yes"
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					img.ID[:12], time.Unix(img.CreatedAt, 0).Format(time.DateTime), img.Path, ocr)
			}
			return tw.Flush()
		})
	cmd.Flags().Bool("json", false, "output raw JSON")
	return cmd
}

func newSaveCmd() *cobra.Command {
	cmd := newClientCmd("save [FILE|-]", "Store an image from a file or stdin", cobra.MaximumNArgs(1),
		func(ctx context.Context, c *rpc.Client, _ *viper.Viper, args []string) error {
			data, err := readInput(args)
			if err != nil {
				return err
			}
			resp, err := c.Save(ctx, data)
			if err != nil {
				return fmt.Errorf("save: %w", err)
			}
			state := "saved"
			if resp.Duplicate {
				state = "duplicate"
			}
			fmt.Printf("%s %s %s\n", state, resp.Image.ID, resp.Image.Path)
			return nil
		})
	cmd.Long = `Submits image bytes to the store, bypassing the clipboard poller.
Reads FILE, or stdin when FILE is "-" or omitted.`
	return cmd
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return data, nil
}

func newDeleteCmd() *cobra.Command {
	return newClientCmd("delete ID...", "Delete images by id", cobra.MinimumNArgs(1),
		func(ctx context.Context, c *rpc.Client, _ *viper.Viper, args []string) error {
			for _, id := range args {
				if err := c.Delete(ctx, id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
			}
			return nil
		})
}

func newCleanupCmd() *cobra.Command {
	cmd := newClientCmd("cleanup", "Delete images older than --hours", cobra.NoArgs,
		func(ctx context.Context, c *rpc.Client, v *viper.Viper, _ []string) error {
			n, err := c.Cleanup(ctx, v.GetInt64("hours"))
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}
			fmt.Printf("removed %d image(s)\n", n)
			return nil
		})
	cmd.Flags().Int64("hours", 24, "age threshold in hours (0 removes everything)")
	return cmd
}

func newClearCmd() *cobra.Command {
	return newClientCmd("clear", "Delete every stored image", cobra.NoArgs,
		func(ctx context.Context, c *rpc.Client, _ *viper.Viper, _ []string) error {
			return c.Clear(ctx)
		})
}

func newResetHashCmd() *cobra.Command {
	return newClientCmd("reset-hash", "Let the poller accept the current clipboard image again", cobra.NoArgs,
		func(ctx context.Context, c *rpc.Client, _ *viper.Viper, _ []string) error {
			return c.ResetHash(ctx)
		})
}

func newOCRCmd() *cobra.Command {
	return newClientCmd("ocr ID TEXT", "Attach recognised text to an image", cobra.ExactArgs(2),
		func(ctx context.Context, c *rpc.Client, _ *viper.Viper, args []string) error {
			img, err := c.SetOCR(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("ocr: %w", err)
			}
			fmt.Println(img.ID)
			return nil
		})
}

func newCatCmd() *cobra.Command {
	return newClientCmd("cat PATH", "Write the bytes of a stored image to stdout", cobra.ExactArgs(1),
		func(ctx context.Context, c *rpc.Client, _ *viper.Viper, args []string) error {
			data, err := c.ReadFile(ctx, args[0])
			if err != nil {
				return fmt.Errorf("cat: %w", err)
			}
			_, err = os.Stdout.Write(data)
			return err
		})
}

func newCopyFileCmd() *cobra.Command {
	return newClientCmd("copy-file PATH", "Place a file on the system clipboard", cobra.ExactArgs(1),
		func(ctx context.Context, c *rpc.Client, _ *viper.Viper, args []string) error {
			path := args[0]
			// The daemon resolves relative paths against its own working directory.
			if !strings.HasPrefix(path, "asset://") {
				abs, err := filepath.Abs(path)
				if err != nil {
					return err
				}
				path = abs
			}
			return c.CopyFile(ctx, path)
		})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
