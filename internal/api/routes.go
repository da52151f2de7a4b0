package api

import (
	"github.com/gin-gonic/gin"
	"github.com/youruser/instagrid/internal/config"
	"github.com/youruser/instagrid/internal/export"
	"github.com/youruser/instagrid/internal/grid"
	imagepkg "github.com/youruser/instagrid/internal/image"
	"github.com/youruser/instagrid/internal/store"
)

// Server exposes one board over HTTP.
type Server struct {
	cfg      config.Config
	board    *grid.Board
	store    *store.Store
	loader   imagepkg.Loader
	exporter *export.Exporter
}

// NewServer wires board to st so every list change is persisted.
func NewServer(cfg config.Config, board *grid.Board, st *store.Store, loader imagepkg.Loader) *Server {
	board.OnChange = st.SaveImages
	return &Server{
		cfg:      cfg,
		board:    board,
		store:    st,
		loader:   loader,
		exporter: export.New(loader, cfg.ExportOptions()),
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/health", health)

		api.GET("/images", s.listImages)
		api.POST("/images", s.addImages)
		api.DELETE("/images", s.clearImages)
		api.DELETE("/images/:id", s.removeImage)
		api.POST("/images/:id/move", s.moveImage)
		api.POST("/images/:id/crop", s.cropImage)

		api.GET("/aspect-ratio", s.getAspectRatio)
		api.PUT("/aspect-ratio", s.setAspectRatio)

		api.GET("/preview", s.preview)

		api.POST("/export", s.beginExport)
		api.GET("/export", s.exportProgress)
		api.DELETE("/export", s.resetExport)
		api.POST("/export/download", s.download)

		api.GET("/qr", s.qr)
	}
}

// Handler returns a gin engine serving the API.
func (s *Server) Handler() *gin.Engine {
	r := gin.Default()
	s.RegisterRoutes(r)
	return r
}
