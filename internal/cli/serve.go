package cli

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/youruser/instagrid/internal/api"
	"github.com/youruser/instagrid/internal/config"
	"github.com/youruser/instagrid/internal/grid"
	imagepkg "github.com/youruser/instagrid/internal/image"
	"github.com/youruser/instagrid/internal/ingest"
	"github.com/youruser/instagrid/internal/store"
	"k8s.io/klog/v2"
)

func newServeCmd(load func() (config.Config, error)) *cobra.Command {
	var port, watchDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the grid API",
		Example: `  # Serve on the default port 8080
  instagrid serve

  # Ingest anything dropped into ~/Pictures/grid
  instagrid serve --port 3000 --watch-dir ~/Pictures/grid`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			if watchDir != "" {
				cfg.WatchDir = watchDir
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			board := grid.NewBoard(st.LoadImages(), cfg.Ratio())
			klog.Infof("restored %d images", board.Images.Len())

			srv := api.NewServer(cfg, board, st, imagepkg.NewFetcher(cfg.FetcherOptions()))

			ctx := cmd.Context()
			if cfg.WatchDir != "" {
				w, err := startWatcher(ctx, cfg.WatchDir, board)
				if err != nil {
					return err
				}
				go func() {
					if err := w.Run(ctx); err != nil {
						klog.Errorf("watcher stopped: %v", err)
					}
				}()
			}

			return listen(ctx, ":"+cfg.Port, srv.Handler())
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default from config, 8080)")
	cmd.Flags().StringVar(&watchDir, "watch-dir", "", "Directory to ingest dropped images from")

	return cmd
}

func openStore(cfg config.Config) (*store.Store, error) {
	if cfg.Store == config.StoreMemory {
		return store.New(store.NewMemoryBackend()), nil
	}
	b, err := store.NewFileBackend(filepath.Clean(cfg.DataDir), cfg.StoreQuotaBytes)
	if err != nil {
		return nil, err
	}
	return store.New(b), nil
}

// startWatcher seeds an empty board from dir, then returns a watcher that
// appends later drops.
func startWatcher(ctx context.Context, dir string, board *grid.Board) (*ingest.Watcher, error) {
	if board.Images.Len() == 0 {
		imgs, err := ingest.ScanDir(dir)
		if err != nil {
			return nil, err
		}
		if len(imgs) > 0 {
			if _, err := board.Images.Add(imgs...); err != nil {
				return nil, err
			}
			board.Changed()
		}
	}

	w := ingest.NewWatcher(dir, func(img grid.Image) {
		if _, err := board.Images.Add(img); err != nil {
			klog.Warningf("adding %s: %v", img.ID, err)
			return
		}
		board.Changed()
	})
	if err := w.Prime(); err != nil {
		return nil, err
	}
	return w, nil
}

func listen(ctx context.Context, addr string, h http.Handler) error {
	server := &http.Server{
		Addr:    addr,
		Handler: h,
	}

	serverErr := make(chan error, 1)
	go func() {
		klog.Infof("starting server on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		klog.Infof("shutting down server ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		klog.Infof("server stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}
