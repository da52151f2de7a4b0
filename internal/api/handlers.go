package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/youruser/instagrid/internal/export"
	"github.com/youruser/instagrid/internal/grid"
	imagepkg "github.com/youruser/instagrid/internal/image"
	"github.com/youruser/instagrid/internal/ingest"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, grid.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, export.ErrEmptyGrid),
		errors.Is(err, export.ErrNotReady),
		errors.Is(err, export.ErrReset),
		errors.Is(err, export.ErrNoSession):
		return http.StatusConflict
	case errors.Is(err, grid.ErrUnknownAspectRatio),
		errors.Is(err, grid.ErrDuplicateID),
		errors.Is(err, grid.ErrEmptyURL),
		errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, imagepkg.ErrInvalidColor),
		errors.Is(err, imagepkg.ErrInvalidDataURI),
		errors.Is(err, imagepkg.ErrUnsupportedURL),
		errors.Is(err, imagepkg.ErrEmptyCrop),
		errors.Is(err, ingest.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		klog.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// bindOptionalJSON decodes the body into v, treating an empty body as {}.
func bindOptionalJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listImages(c *gin.Context) {
	imgs := s.board.Images.Snapshot()
	if c.Query("order") == "display" {
		imgs = grid.Reversed(imgs)
	}
	c.JSON(http.StatusOK, gin.H{"count": len(imgs), "images": imgs})
}

// addImages takes multipart uploads (files or file) or a JSON list of
// urls. Nothing is added unless every item is accepted.
func (s *Server) addImages(c *gin.Context) {
	var (
		recs []grid.Image
		err  error
	)
	if form, ferr := c.MultipartForm(); ferr == nil {
		recs, err = fromUploads(append(form.File["files"], form.File["file"]...))
	} else {
		var req struct {
			URLs []string `json:"urls"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart files or {\"urls\": [...]}"})
			return
		}
		for _, u := range req.URLs {
			var rec grid.Image
			if rec, err = ingest.FromURL(u); err != nil {
				break
			}
			recs = append(recs, rec)
		}
	}
	if err != nil {
		fail(c, err)
		return
	}
	if len(recs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no images given"})
		return
	}

	added, err := s.board.Images.Add(recs...)
	if err != nil {
		fail(c, err)
		return
	}
	s.board.Changed()
	klog.Infof("added %d images", len(added))
	c.JSON(http.StatusCreated, gin.H{"count": len(added), "images": added})
}

func fromUploads(files []*multipart.FileHeader) ([]grid.Image, error) {
	var out []grid.Image
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(f, ingest.MaxFileBytes+1))
		f.Close()
		if err != nil {
			return nil, err
		}
		rec, err := ingest.FromBytes(fh.Filename, data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Server) clearImages(c *gin.Context) {
	s.board.Images.Clear()
	s.store.ClearImages()
	c.Status(http.StatusNoContent)
}

func (s *Server) removeImage(c *gin.Context) {
	if err := s.board.Images.Remove(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	s.board.Changed()
	c.Status(http.StatusNoContent)
}

func (s *Server) moveImage(c *gin.Context) {
	var req struct {
		OverID string `json:"over_id"`
		Index  *int   `json:"index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	var err error
	switch {
	case req.OverID != "":
		err = s.board.Images.MoveOver(id, req.OverID)
	case req.Index != nil:
		err = s.board.Images.Move(id, *req.Index)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "over_id or index is required"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	s.board.Changed()
	c.JSON(http.StatusOK, gin.H{"images": s.board.Images.Snapshot()})
}

// cropImage replaces an image's url with a cropped copy: a cover crop at
// the active ratio for an empty body, otherwise the given pixel rect.
func (s *Server) cropImage(c *gin.Context) {
	var req struct {
		X      int `json:"x"`
		Y      int `json:"y"`
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	img, ok := s.board.Images.Get(id)
	if !ok {
		fail(c, fmt.Errorf("%w: %s", grid.ErrNotFound, id))
		return
	}

	var cropped string
	if req.Width == 0 && req.Height == 0 {
		ratio := s.board.Ratio()
		layout := s.cfg.Layout()
		w := layout.CellWidth * s.cfg.Scale
		h := ratio.CellHeight(layout.CellWidth) * s.cfg.Scale
		cropped = imagepkg.CoverCrop(c.Request.Context(), s.loader, img.URL, ratio.Value(), w, h)
	} else {
		var err error
		rect := image.Rect(req.X, req.Y, req.X+req.Width, req.Y+req.Height)
		if cropped, err = imagepkg.CropRect(c.Request.Context(), s.loader, img.URL, rect); err != nil {
			fail(c, err)
			return
		}
	}

	if err := s.board.Images.Replace(id, cropped); err != nil {
		fail(c, err)
		return
	}
	s.board.Changed()
	img, _ = s.board.Images.Get(id)
	c.JSON(http.StatusOK, img)
}

func (s *Server) getAspectRatio(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ratio": s.board.Ratio(), "options": grid.AspectRatios()})
}

func (s *Server) setAspectRatio(c *gin.Context) {
	var req struct {
		Ratio string `json:"ratio"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r, err := grid.ParseAspectRatio(req.Ratio)
	if err == nil {
		err = s.board.SetRatio(r)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ratio": r})
}

// preview renders the on-screen grid as a PNG. Images that fail to load
// show as placeholders.
func (s *Server) preview(c *gin.Context) {
	scale := 1
	if v := c.Query("scale"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 3 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scale must be 1, 2 or 3"})
			return
		}
		scale = n
	}

	g, err := imagepkg.BuildGrid(s.board.Images.Snapshot(), s.board.Ratio(), s.cfg.Layout(), s.cfg.Background, false)
	if err != nil {
		fail(c, err)
		return
	}
	eg, ctx := errgroup.WithContext(c.Request.Context())
	eg.SetLimit(max(s.cfg.Concurrency, 1))
	for _, cell := range g.Cells {
		eg.Go(func() error {
			img, err := s.loader.Load(ctx, cell.URL)
			if err != nil {
				klog.V(1).Infof("preview: %s: %v", cell.ID, err)
				cell.Err = err
				return nil
			}
			cell.Image = img
			return nil
		})
	}
	eg.Wait()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, g.Paint(scale), imaging.PNG); err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) beginExport(c *gin.Context) {
	p, err := s.exporter.Begin(s.board.Images.Snapshot(), s.board.Ratio())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, p)
}

func (s *Server) exportProgress(c *gin.Context) {
	c.JSON(http.StatusOK, s.exporter.Progress())
}

func (s *Server) resetExport(c *gin.Context) {
	s.exporter.Reset()
	c.Status(http.StatusNoContent)
}

// download captures the Ready session. With ?wait=true it first blocks
// until every image has loaded.
func (s *Server) download(c *gin.Context) {
	var cfg export.Config
	if err := bindOptionalJSON(c, &cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if c.Query("wait") == "true" {
		if err := s.exporter.WaitReady(ctx); err != nil {
			fail(c, err)
			return
		}
	}

	f, err := s.exporter.Export(ctx, cfg)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	c.Data(http.StatusOK, f.ContentType, f.Data)
}

// qr returns a code linking to the preview, for opening the grid on a
// phone.
func (s *Server) qr(c *gin.Context) {
	link := s.cfg.PublicURL
	if link == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		link = scheme + "://" + c.Request.Host
	}
	link += "/api/preview"

	size := 256
	if v, err := strconv.Atoi(c.Query("size")); err == nil {
		size = v
	}
	b, err := imagepkg.ShareCode(link, size)
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", b)
}
