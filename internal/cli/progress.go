package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mangahub/pkg/models"
)

func newProgressCommand() *cobra.Command {
	progress := &cobra.Command{
		Use:   "progress",
		Short: "Reading progress",
	}
	progress.AddCommand(newProgressUpdateCommand(), newProgressListCommand())
	return progress
}

func newProgressUpdateCommand() *cobra.Command {
	var mangaID, status string
	var chapter int

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Record the chapter you just read",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mangaID == "" {
				return errors.New("--manga is required")
			}
			client, sess, err := sessionClient()
			if err != nil {
				return err
			}
			if sess.Token == "" {
				return errors.New("not signed in; run `mangahub auth login`")
			}

			envelope, err := client.do("PUT", "/users/progress", models.UpdateProgressRequest{
				MangaID:        mangaID,
				CurrentChapter: chapter,
				Status:         status,
			})
			if err != nil {
				return err
			}

			var event models.ProgressEvent
			if err := decodeData(envelope, &event); err == nil && event.MangaTitle != "" {
				fmt.Printf("Progress saved: %s, chapter %d.\n", event.MangaTitle, event.Chapter)
			} else {
				fmt.Println("Progress saved.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mangaID, "manga", "m", "", "manga id")
	cmd.Flags().IntVarP(&chapter, "chapter", "c", 0, "chapter number")
	cmd.Flags().StringVarP(&status, "status", "s", "", "library status to set alongside")
	return cmd
}

func newProgressListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show your reading positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := sessionClient()
			if err != nil {
				return err
			}
			if sess.Token == "" {
				return errors.New("not signed in; run `mangahub auth login`")
			}

			envelope, err := client.do("GET", "/users/progress", nil)
			if err != nil {
				return err
			}
			var records []models.ProgressRecord
			if err := decodeData(envelope, &records); err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No progress recorded yet.")
				return nil
			}
			for _, r := range records {
				fmt.Printf("%-30s chapter %-5d last read %s\n",
					r.MangaID, r.CurrentChapter, r.LastReadAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
