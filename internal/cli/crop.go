package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"github.com/youruser/instagrid/internal/export"
	"github.com/youruser/instagrid/internal/grid"
	imagepkg "github.com/youruser/instagrid/internal/image"
	"github.com/youruser/instagrid/internal/util"
)

func newCropCmd() *cobra.Command {
	var (
		ratio string
		width int
	)

	cmd := &cobra.Command{
		Use:   "crop IN OUT",
		Short: "Cover-crop one image to a grid aspect ratio",
		Long: `Crops IN to the largest centered region with the given aspect ratio,
scales it to --width and writes OUT. The output format follows OUT's
extension.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrop(args[0], args[1], ratio, width)
		},
	}

	cmd.Flags().StringVar(&ratio, "ratio", string(grid.Square), "Aspect ratio: 1:1, 4:5 or 1.91:1")
	cmd.Flags().IntVar(&width, "width", 1080, "Output width in pixels")

	return cmd
}

func runCrop(in, out, ratio string, width int) error {
	r, err := grid.ParseAspectRatio(ratio)
	if err != nil {
		return err
	}
	if width <= 0 {
		return fmt.Errorf("width must be positive, got %d", width)
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	src, err := imagepkg.Decode(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", in, err)
	}
	if err := util.EnsureDir(filepath.Dir(out)); err != nil {
		return err
	}
	img := imagepkg.CoverCropImage(src, r.Value(), width, r.CellHeight(width))
	return imaging.Save(img, out, imaging.JPEGQuality(export.DefaultJPEGQuality))
}
