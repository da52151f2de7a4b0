package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/youruser/instagrid/internal/config"
	"github.com/youruser/instagrid/internal/export"
	"github.com/youruser/instagrid/internal/grid"
	imagepkg "github.com/youruser/instagrid/internal/image"
	"github.com/youruser/instagrid/internal/ingest"
	"github.com/youruser/instagrid/internal/util"
	"k8s.io/klog/v2"
)

type exportFlags struct {
	in          string
	out         string
	ratio       string
	format      string
	background  string
	transparent bool
	timeout     time.Duration
}

func newExportCmd(load func() (config.Config, error)) *cobra.Command {
	var f exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Compose a directory of images into one grid picture",
		Long: `Scans a directory for png, jpeg and gif files, lays them out newest
first (the last file in path order lands top-left) and writes the grid.`,
		Example: `  instagrid export --in ./shots --ratio 4:5 --format jpeg --out ./exports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			path, err := runExport(cmd.Context(), cfg, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.in, "in", "", "Directory of images to compose")
	cmd.Flags().StringVar(&f.out, "out", ".", "Directory to write the grid to")
	cmd.Flags().StringVar(&f.ratio, "ratio", "", "Cell aspect ratio: 1:1, 4:5 or 1.91:1 (default from config)")
	cmd.Flags().StringVar(&f.format, "format", "png", "Output format: png or jpeg")
	cmd.Flags().StringVar(&f.background, "background", "", "Background color, e.g. #18181b")
	cmd.Flags().BoolVar(&f.transparent, "transparent", false, "Leave the background transparent (white for jpeg)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 2*time.Minute, "Give up if images have not loaded by then")
	cmd.MarkFlagRequired("in")

	return cmd
}

func runExport(ctx context.Context, cfg config.Config, f exportFlags) (string, error) {
	ratio := cfg.Ratio()
	if f.ratio != "" {
		r, err := grid.ParseAspectRatio(f.ratio)
		if err != nil {
			return "", err
		}
		ratio = r
	}

	imgs, err := ingest.ScanDir(f.in)
	if err != nil {
		return "", err
	}
	if len(imgs) == 0 {
		return "", fmt.Errorf("%s: %w", f.in, export.ErrEmptyGrid)
	}

	e := export.New(imagepkg.NewFetcher(cfg.FetcherOptions()), cfg.ExportOptions())
	if _, err := e.Begin(imgs, ratio); err != nil {
		return "", err
	}
	defer e.Reset()

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	if err := e.WaitReady(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			p := e.Progress()
			return "", fmt.Errorf("loaded %d of %d images before timeout: %w", p.Loaded, p.Total, err)
		}
		return "", err
	}

	file, err := e.Export(ctx, export.Config{
		Format:          export.Format(f.format),
		BackgroundColor: f.background,
		Transparent:     f.transparent,
	})
	if err != nil {
		return "", err
	}

	path := filepath.Join(f.out, file.Name)
	if err := util.WriteFileAtomic(path, file.Data); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	klog.Infof("wrote %s", path)
	return path, nil
}
