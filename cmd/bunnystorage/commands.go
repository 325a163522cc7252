package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/bunnystorage/storage_sdk_go/pkg/bunnystorage"
)

const usage = `usage: bunnystorage [flags] <command> [args]

commands:
  ls [path]                 list a directory (default: zone root)
  put <local> [remoteDir]   upload a local file
  get <remote> [out|-]      download a file to out, or stdout when omitted or "-"
  rm <remote>               delete a file or directory
`

var errUsage = errors.New("invalid usage")

// storage is the part of *bunnystorage.Client the commands use.
type storage interface {
	ListFiles(ctx context.Context, path string) ([]bunnystorage.File, error)
	UploadFile(ctx context.Context, src bunnystorage.Source, remotePath string) error
	DownloadFile(ctx context.Context, path string) ([]byte, error)
	DeleteFile(ctx context.Context, path string) error
}

func runCommand(ctx context.Context, st storage, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "ls":
		if len(rest) > 1 {
			return errUsage
		}
		path := ""
		if len(rest) == 1 {
			path = rest[0]
		}
		return list(ctx, st, path, stdout)
	case "put":
		if len(rest) < 1 || len(rest) > 2 {
			return errUsage
		}
		remote := ""
		if len(rest) == 2 {
			remote = rest[1]
		}
		return st.UploadFile(ctx, bunnystorage.FromLocalPath(rest[0]), remote)
	case "get":
		if len(rest) < 1 || len(rest) > 2 {
			return errUsage
		}
		out := "-"
		if len(rest) == 2 {
			out = rest[1]
		}
		return get(ctx, st, rest[0], out, stdout)
	case "rm":
		if len(rest) != 1 {
			return errUsage
		}
		return st.DeleteFile(ctx, rest[0])
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func list(ctx context.Context, st storage, path string, stdout io.Writer) error {
	files, err := st.ListFiles(ctx, path)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, f := range files {
		kind, size, name := "-", humanize.IBytes(uint64(f.Length)), f.ObjectName
		if f.IsDirectory {
			kind, size, name = "d", "-", f.ObjectName+"/"
		}
		changed := "-"
		if !f.LastChanged.IsZero() {
			changed = f.LastChanged.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", kind, size, changed, name)
	}
	return tw.Flush()
}

func get(ctx context.Context, st storage, remote, out string, stdout io.Writer) error {
	data, err := st.DownloadFile(ctx, remote)
	if err != nil {
		return err
	}
	if out == "-" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(out, data, 0o644)
}
