package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the logcache client.
// It registers the log, services and health command groups.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "logcache",
		Short: "logcache client commands",
	}
	root.AddCommand(NewLogCommand())
	root.AddCommand(NewServicesCommand(baseURL))
	root.AddCommand(NewHealthCommand())
	return root
}
