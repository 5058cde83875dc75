package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mangahub/pkg/models"
)

func newLibraryCommand() *cobra.Command {
	library := &cobra.Command{
		Use:   "library",
		Short: "Your manga collection",
	}
	library.AddCommand(newLibraryAddCommand(), newLibraryListCommand(), newLibraryRemoveCommand())
	return library
}

func requireSession() (*apiClient, error) {
	client, sess, err := sessionClient()
	if err != nil {
		return nil, err
	}
	if sess.Token == "" {
		return nil, errors.New("not signed in; run `mangahub auth login`")
	}
	return client, nil
}

func newLibraryAddCommand() *cobra.Command {
	var mangaID, status string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a manga to your library",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mangaID == "" {
				return errors.New("--manga is required")
			}
			client, err := requireSession()
			if err != nil {
				return err
			}
			_, err = client.do("POST", "/users/library", models.AddToLibraryRequest{
				MangaID: mangaID,
				Status:  status,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Added %s to your library.\n", mangaID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&mangaID, "manga", "m", "", "manga id")
	cmd.Flags().StringVarP(&status, "status", "s", "reading", "library status")
	return cmd
}

func newLibraryListCommand() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show your library",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := requireSession()
			if err != nil {
				return err
			}

			path := "/users/library"
			if status != "" {
				path = "/users/library/filtered?status=" + status
			}
			envelope, err := client.do("GET", path, nil)
			if err != nil {
				return err
			}
			var items []models.LibraryItem
			if err := decodeData(envelope, &items); err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("Library is empty.")
				return nil
			}
			for _, item := range items {
				title := item.MangaID
				if item.Manga != nil {
					title = item.Manga.Title
				}
				fmt.Printf("%-40s %s\n", title, item.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by status")
	return cmd
}

func newLibraryRemoveCommand() *cobra.Command {
	var mangaID string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a manga from your library",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mangaID == "" {
				return errors.New("--manga is required")
			}
			client, err := requireSession()
			if err != nil {
				return err
			}
			if _, err := client.do("DELETE", "/users/library/"+mangaID, nil); err != nil {
				return err
			}
			fmt.Printf("Removed %s from your library.\n", mangaID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&mangaID, "manga", "m", "", "manga id")
	return cmd
}
