package cmd

import (
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/craigvandotcom/eatzone/internal/analysis"
	"github.com/craigvandotcom/eatzone/internal/capture"
	"github.com/craigvandotcom/eatzone/internal/compress"
	"github.com/craigvandotcom/eatzone/internal/filecam"
	"github.com/craigvandotcom/eatzone/internal/storage"
	"github.com/craigvandotcom/eatzone/internal/submit"
)

func newCaptureCmd() *cobra.Command {
	var (
		framesDir string
		endpoint  string
		dbPath    string
		shots     int
		uploads   []string
		name      string
		notes     string
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture meal photos and log an entry",
		Long: `Runs the full capture flow from the command line: grab frames from a
directory-backed camera device, compress them, send them to a running
analysis endpoint, and save the resulting entry.

Each subdirectory of --frames is treated as one camera device whose
image files are served as frames. The preferred device is remembered
across runs.`,
		Example: `  # Capture two frames and log the meal
  eatzone capture --frames ./testdata/cameras --shots 2 --name "Lunch"

  # Analyze existing photos instead of camera frames
  eatzone capture --frames ./testdata/cameras --shots 0 --upload meal.jpg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := storage.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			engine := compress.NewEngine(0)
			defer engine.Close()

			source := filecam.New(framesDir)
			session := capture.NewSession(capture.Config{
				Opener:     source,
				Selector:   capture.NewSelector(source, store),
				Compressor: engine,
			})

			if err := session.Open(ctx); err != nil {
				return fmt.Errorf("failed to open capture session: %w", err)
			}
			defer session.Close()

			for i := 0; i < shots; i++ {
				outcome, err := session.CaptureFrame(ctx)
				if err != nil {
					return fmt.Errorf("failed to capture frame %d: %w", i+1, err)
				}
				if !outcome.Valid {
					return fmt.Errorf("frame %d rejected: %w", i+1, outcome.Err)
				}
				slog.Info("Captured frame", "shot", i+1)
			}

			coordinator := submit.NewCoordinator(analysis.NewClient(endpoint), store)
			defer coordinator.Close()

			if len(uploads) > 0 {
				batch, err := readUploads(uploads)
				if err != nil {
					return err
				}
				failures, err := coordinator.AddUploads(ctx, session, batch)
				if err != nil {
					return err
				}
				for _, f := range failures {
					slog.Warn("Upload rejected", "file", f.Filename, "err", f.Err)
				}
			}

			images := session.Images()
			if len(images) == 0 {
				return fmt.Errorf("nothing to analyze: no frames captured and no valid uploads")
			}

			result, err := coordinator.Analyze(ctx, images)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			if len(result.Ingredients) == 0 {
				fmt.Println(submit.ZeroIngredientsMessage)
			} else {
				fmt.Printf("%s\n\n", result.MealSummary)
				for _, ing := range result.Ingredients {
					marker := ""
					if ing.Organic {
						marker = " (organic)"
					}
					fmt.Printf("  [%s] %s%s\n", ing.Zone, ing.Name, marker)
				}
			}

			if name != "" {
				coordinator.SetName(name)
			}
			if notes != "" {
				coordinator.SetNotes(notes)
			}

			entry, err := coordinator.Submit(ctx, session)
			if err != nil {
				return fmt.Errorf("failed to save entry: %w", err)
			}
			slog.Info("Entry saved", "id", entry.ID, "name", entry.Name, "ingredients", len(entry.Ingredients))
			return nil
		},
	}

	cmd.Flags().StringVar(&framesDir, "frames", "frames", "Directory of camera devices (one subdirectory per device)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "http://localhost:8888", "Base URL of a running eatzone serve instance")
	cmd.Flags().StringVar(&dbPath, "db", "eatzone.db", "Path to the sqlite database")
	cmd.Flags().IntVar(&shots, "shots", 1, "Number of frames to capture from the camera")
	cmd.Flags().StringArrayVar(&uploads, "upload", nil, "Image file to add to the batch (repeatable)")
	cmd.Flags().StringVar(&name, "name", "", "Meal name (overrides the AI summary)")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes to store with the entry")

	return cmd
}

func readUploads(paths []string) ([]submit.Upload, error) {
	batch := make([]submit.Upload, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		batch = append(batch, submit.Upload{
			Filename: filepath.Base(path),
			MimeType: mimeType,
			Data:     data,
		})
	}
	return batch, nil
}
