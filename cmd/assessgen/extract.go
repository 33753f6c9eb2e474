package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/assessgen-backend/internal/app"
	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/extraction/source"
)

var (
	extractYouTube  string
	extractMedia    string
	extractDocument string
	extractURL      string
	extractURLKind  string
	extractForceOCR bool
	extractTimeout  string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract text from one input and print the result as JSON",
	Example: `  assessgen extract --youtube https://youtu.be/dQw4w9WgXcQ
  assessgen extract --document slides.pptx
  assessgen extract --url https://example.com/scan.pdf --kind document --force-ocr`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractYouTube, "youtube", "", "YouTube video URL")
	extractCmd.Flags().StringVar(&extractMedia, "media", "", "Path to a local audio or video file")
	extractCmd.Flags().StringVar(&extractDocument, "document", "", "Path to a local PDF, PPTX or PPT file")
	extractCmd.Flags().StringVar(&extractURL, "url", "", "Remote media or document URL")
	extractCmd.Flags().StringVar(&extractURLKind, "kind", "document", "Kind of --url: media or document")
	extractCmd.Flags().BoolVar(&extractForceOCR, "force-ocr", false, "Skip the PDF text layer and OCR every page")
	extractCmd.Flags().StringVar(&extractTimeout, "timeout", "", "Override the per-kind time budget, e.g. 2m")
	extractCmd.MarkFlagsMutuallyExclusive("youtube", "media", "document", "url")
	extractCmd.MarkFlagsOneRequired("youtube", "media", "document", "url")
	rootCmd.AddCommand(extractCmd)
}

func descriptorFromFlags() (extraction.InputDescriptor, error) {
	switch {
	case extractYouTube != "":
		return extraction.NewYouTube(extractYouTube), nil
	case extractURL != "":
		switch extractURLKind {
		case "media":
			return extraction.NewRemoteMedia(extractURL), nil
		case "document":
			return extraction.NewRemoteDocument(extractURL), nil
		default:
			return extraction.InputDescriptor{}, fmt.Errorf("--kind must be media or document, got %q", extractURLKind)
		}
	case extractMedia != "":
		b, err := os.ReadFile(extractMedia)
		if err != nil {
			return extraction.InputDescriptor{}, err
		}
		return extraction.NewUploadedMedia(b, source.MimeFromName(extractMedia), filepath.Base(extractMedia)), nil
	case extractDocument != "":
		b, err := os.ReadFile(extractDocument)
		if err != nil {
			return extraction.InputDescriptor{}, err
		}
		mt := source.MimeFromName(extractDocument)
		if mt == "" {
			mt = source.SniffDocumentMime(b)
		}
		return extraction.NewUploadedDocument(b, mt, filepath.Base(extractDocument)), nil
	}
	return extraction.InputDescriptor{}, errors.New("one of --youtube, --media, --document or --url is required")
}

func runExtract(cmd *cobra.Command, _ []string) error {
	d, err := descriptorFromFlags()
	if err != nil {
		return err
	}
	opts := extraction.Options{ForceOCR: extractForceOCR}
	if extractTimeout != "" {
		if opts.Timeout, err = time.ParseDuration(extractTimeout); err != nil {
			return err
		}
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		res, err := a.Extract(ctx, d, opts)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	})
}
