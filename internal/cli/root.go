// Package cli holds the instagrid commands.
package cli

import (
	"flag"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/youruser/instagrid/internal/config"
	"k8s.io/klog/v2"
)

func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "instagrid",
		Short: "Arrange images into a profile grid and export it as one picture",
		Long: `instagrid keeps an ordered list of images, crops them to a shared
aspect ratio and composes them into a three-column profile grid that can be
downloaded as a single PNG or JPEG.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	cmd.PersistentFlags().AddGoFlagSet(fs)
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")

	load := func() (config.Config, error) {
		return config.Load(configPath)
	}
	cmd.AddCommand(newServeCmd(load))
	cmd.AddCommand(newExportCmd(load))
	cmd.AddCommand(newCropCmd())

	return cmd
}
