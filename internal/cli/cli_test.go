package cli

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/youruser/instagrid/internal/config"
	"github.com/youruser/instagrid/internal/export"
	"github.com/youruser/instagrid/internal/grid"
)

func writePNG(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.SettleDelay = 0
	return cfg
}

func TestRunExport(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(in, "1.png"), 50, 40, color.NRGBA{R: 0xff, A: 0xff})
	writePNG(t, filepath.Join(in, "2.png"), 50, 40, color.NRGBA{G: 0xff, A: 0xff})
	writePNG(t, filepath.Join(in, "3.png"), 50, 40, color.NRGBA{B: 0xff, A: 0xff})
	writePNG(t, filepath.Join(in, "4.png"), 50, 40, color.NRGBA{R: 0xff, G: 0xff, A: 0xff})

	path, err := runExport(context.Background(), testConfig(), exportFlags{in: in, out: out, ratio: "4:5", format: "png"})
	if err != nil {
		t.Fatalf("runExport: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "instagrid-preview-") || filepath.Ext(path) != ".png" {
		t.Errorf("unexpected file %s", path)
	}
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	// two rows of 275px cells
	if want := image.Pt(3*724, 3*(32+2*275+16)); img.Bounds().Size() != want {
		t.Errorf("size = %v, want %v", img.Bounds().Size(), want)
	}
}

func TestRunExportErrors(t *testing.T) {
	empty := t.TempDir()
	if _, err := runExport(context.Background(), testConfig(), exportFlags{in: empty, out: t.TempDir()}); !errors.Is(err, export.ErrEmptyGrid) {
		t.Errorf("Expected ErrEmptyGrid, got %v", err)
	}
	if _, err := runExport(context.Background(), testConfig(), exportFlags{in: empty, ratio: "2:1"}); !errors.Is(err, grid.ErrUnknownAspectRatio) {
		t.Errorf("Expected ErrUnknownAspectRatio, got %v", err)
	}

	in := t.TempDir()
	writePNG(t, filepath.Join(in, "1.png"), 10, 10, color.NRGBA{A: 0xff})
	if _, err := runExport(context.Background(), testConfig(), exportFlags{in: in, out: t.TempDir(), format: "bmp"}); !errors.Is(err, export.ErrUnknownFormat) {
		t.Errorf("Expected ErrUnknownFormat, got %v", err)
	}
}

func TestRunCrop(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "wide.png")
	writePNG(t, in, 400, 100, color.NRGBA{B: 0xff, A: 0xff})

	tests := []struct {
		ratio string
		width int
		want  image.Point
	}{
		{"1:1", 300, image.Pt(300, 300)},
		{"4:5", 200, image.Pt(200, 250)},
		{"1.91:1", 191, image.Pt(191, 100)},
	}
	for _, tt := range tests {
		out := filepath.Join(dir, "out", strings.ReplaceAll(tt.ratio, ":", "x")+".jpg")
		if err := runCrop(in, out, tt.ratio, tt.width); err != nil {
			t.Fatalf("runCrop(%s): %v", tt.ratio, err)
		}
		img, err := imaging.Open(out)
		if err != nil {
			t.Fatal(err)
		}
		if img.Bounds().Size() != tt.want {
			t.Errorf("%s: size %v, want %v", tt.ratio, img.Bounds().Size(), tt.want)
		}
	}

	if err := runCrop(in, filepath.Join(dir, "x.jpg"), "3:2", 100); !errors.Is(err, grid.ErrUnknownAspectRatio) {
		t.Errorf("Expected ErrUnknownAspectRatio, got %v", err)
	}
	if err := runCrop(filepath.Join(dir, "missing.png"), filepath.Join(dir, "x.jpg"), "1:1", 100); err == nil {
		t.Error("Expected error for missing input")
	}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{"serve", "export", "crop"} {
		if c, _, err := cmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("Find(%s) = %v, %v", name, c, err)
		}
	}
	if cmd.PersistentFlags().Lookup("v") == nil {
		t.Error("Expected klog -v flag on the root command")
	}
}
