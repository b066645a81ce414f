package main

import (
	"encoding/json"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/imrenagi/uploadex/upload"
)

func newUploadCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload local files through the configured provider and print their metadata",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, p, err := c.load(ctx)
			if err != nil {
				return err
			}

			files := make([]*upload.IncomingFile, 0, len(args))
			for _, name := range args {
				f, err := stage(name, cfg.Server.TempDir)
				if err != nil {
					for _, staged := range files {
						staged.RemoveTemp()
					}
					return err
				}
				files = append(files, f)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if len(files) == 1 {
				meta, err := p.HandleSingleFileUpload(ctx, files[0])
				if err != nil {
					return err
				}
				return enc.Encode(meta)
			}
			metas, err := p.HandleMultipleFileUpload(ctx, files)
			if err != nil {
				return err
			}
			return enc.Encode(metas)
		},
	}
}

// stage copies name into tempDir, so the provider can remove the copy
// without touching the original.
func stage(name, tempDir string) (*upload.IncomingFile, error) {
	src, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, err
	}
	dst, err := os.CreateTemp(tempDir, "cli-")
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(dst.Name())
		return nil, err
	}

	return &upload.IncomingFile{
		OriginalName: filepath.Base(name),
		MimeType:     detectContentType(name),
		Size:         n,
		TempPath:     dst.Name(),
	}, nil
}

// detectContentType sniffs the file content and falls back to the extension.
// Parameters such as charset are dropped.
func detectContentType(name string) string {
	if mt, err := mimetype.DetectFile(name); err == nil && !mt.Is("application/octet-stream") {
		return strings.TrimSpace(strings.Split(mt.String(), ";")[0])
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return strings.TrimSpace(strings.Split(t, ";")[0])
	}
	return "application/octet-stream"
}
