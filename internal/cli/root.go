package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand builds the mangahub command tree.
func NewRootCommand() *cobra.Command {
	initViper()

	root := &cobra.Command{
		Use:           "mangahub",
		Short:         "MangaHub command-line client",
		Long:          "Track reading progress, manage your library and listen to live platform events.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("server", viper.GetString("server_url"), "gateway base URL")
	viper.BindPFlag("server_url", root.PersistentFlags().Lookup("server"))

	root.AddCommand(newAuthCommand())
	root.AddCommand(newProgressCommand())
	root.AddCommand(newLibraryCommand())
	root.AddCommand(newListenCommand())
	return root
}

// sessionClient loads the saved session and builds a client with its
// token attached.
func sessionClient() (*apiClient, *Session, error) {
	sess, err := LoadSession()
	if err != nil {
		return nil, nil, err
	}
	serverURL := viper.GetString("server_url")
	if sess.ServerURL != "" {
		serverURL = sess.ServerURL
	}
	return newAPIClient(serverURL, sess.Token), sess, nil
}
