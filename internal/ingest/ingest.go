// Package ingest turns files, uploads and links into image records.
package ingest

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/youruser/instagrid/internal/grid"
	imagepkg "github.com/youruser/instagrid/internal/image"
	"k8s.io/klog/v2"
)

var ErrUnsupportedType = errors.New("unsupported image type")

// Accepted lists the content types the grid takes.
var Accepted = []string{"image/png", "image/jpeg", "image/gif"}

// MaxFileBytes caps a single ingested file.
const MaxFileBytes = 32 << 20

// DetectType sniffs data and returns its content type if it is accepted.
func DetectType(data []byte) (string, error) {
	ct := http.DetectContentType(data)
	for _, a := range Accepted {
		if ct == a {
			return ct, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
}

// FromBytes builds a record holding data inline as a data URI. name is only
// used for messages.
func FromBytes(name string, data []byte) (grid.Image, error) {
	if len(data) > MaxFileBytes {
		return grid.Image{}, fmt.Errorf("%s: file exceeds %d bytes", name, MaxFileBytes)
	}
	ct, err := DetectType(data)
	if err != nil {
		return grid.Image{}, fmt.Errorf("%s: %w", name, err)
	}
	return grid.Image{ID: grid.NewID(), URL: imagepkg.EncodeDataURI(ct, data)}, nil
}

// FromURL builds a record pointing at an http(s) URL or an image data URI.
func FromURL(raw string) (grid.Image, error) {
	raw = strings.TrimSpace(raw)
	if imagepkg.IsDataURI(raw) {
		mime, _, err := imagepkg.DecodeDataURI(raw)
		if err != nil {
			return grid.Image{}, err
		}
		if !strings.HasPrefix(mime, "image/") {
			return grid.Image{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
		}
		return grid.Image{ID: grid.NewID(), URL: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return grid.Image{}, fmt.Errorf("%w: %s", imagepkg.ErrUnsupportedURL, imagepkg.ShortURL(raw))
	}
	return grid.Image{ID: grid.NewID(), URL: u.String()}, nil
}

// FromFile reads and ingests the file at path.
func FromFile(path string) (grid.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return grid.Image{}, err
	}
	return FromBytes(filepath.Base(path), data)
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// ScanDir ingests every accepted file under dir in path order. Dot files
// and dot directories are skipped, as are files of other types.
func ScanDir(dir string) ([]grid.Image, error) {
	var paths []string
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == dir {
				return nil
			}
			if hidden(de.Name()) {
				if de.IsDir() {
					return godirwalk.SkipThis
				}
				return nil
			}
			if de.IsRegular() {
				paths = append(paths, path)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	var out []grid.Image
	for _, p := range paths {
		img, err := FromFile(p)
		if err != nil {
			klog.V(1).Infof("skipping %s: %v", p, err)
			continue
		}
		out = append(out, img)
	}
	klog.Infof("found %d images in %s", len(out), dir)
	return out, nil
}
