package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"igleads/pkg/classifier"
	"igleads/pkg/contact"
	"igleads/pkg/models"
)

var (
	// Extract command flags
	extractFile string
	extractJSON bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [text...]",
	Short: "Extract WhatsApp contact details and a category from bio text",
	Long: `Run the contact extractor and the keyword classifier over a piece of text,
without touching Instagram. Useful for checking keyword lists and region tables.

The text comes from the arguments, from --file, or from standard input.`,
	Example: `  # Check a bio
  igleads extract "Reparación de celulares 📲 wa.me/5215512345678"

  # Read a bio from a file and print JSON
  igleads extract --file bio.txt --json`,
	RunE: runExtract,
}

// extraction is the result printed by the extract command
type extraction struct {
	Relevant          bool            `json:"relevant"`
	Category          models.Category `json:"category"`
	WhatsAppNumber    string          `json:"whatsapp_number,omitempty"`
	WhatsAppGroupLink string          `json:"whatsapp_group_link,omitempty"`
	Region            string          `json:"region"`
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractFile, "file", "", "read the text from this file")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print the result as JSON")
}

func runExtract(cmd *cobra.Command, args []string) error {
	text, err := extractInput(cmd, args)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig(nil)
	if err != nil {
		return err
	}

	res := extractText(cmd.Context(), text, classifier.NewKeywordClassifier(cfg.Classifier.Keywords), contact.New(cfg.Regions))

	if extractJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	p := printer(cmd)
	p.Info("Relevant", fmt.Sprintf("%t", res.Relevant))
	p.Info("Category", string(res.Category))
	p.Info("WhatsApp", orNone(res.WhatsAppNumber))
	p.Info("Group link", orNone(res.WhatsAppGroupLink))
	p.Info("Region", res.Region)
	return nil
}

func extractInput(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case extractFile != "":
		data, err := os.ReadFile(extractFile)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", extractFile, err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read standard input: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("no text given: pass it as arguments, with --file, or on standard input")
	}
	return string(data), nil
}

// extractText treats text as a profile bio
func extractText(ctx context.Context, text string, kc *classifier.KeywordClassifier, ex *contact.Extractor) extraction {
	record := models.ProfileRecord{Bio: text}
	cleaned := classifier.CleanBio(record)
	info := ex.Extract(text)

	return extraction{
		Relevant:          kc.Relevant(ctx, classifier.FieldsOf(record)),
		Category:          kc.Categorize(cleaned),
		WhatsAppNumber:    info.WhatsAppNumber,
		WhatsAppGroupLink: info.WhatsAppGroupLink,
		Region:            ex.InferRegion(info.WhatsAppNumber, text),
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
