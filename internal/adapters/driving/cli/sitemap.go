package cli

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"

	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"

	"github.com/arcastone/vault/internal/fsutil"
)

var (
	sitemapHTML   bool
	sitemapOutput string
)

var sitemapCmd = &cobra.Command{
	Use:   "sitemap",
	Short: "Print an index of every document",
	Long: `Prints a markdown index listing each document with its opening
passage. Use --html for a standalone HTML page.`,
	Args: cobra.NoArgs,
	RunE: runSitemap,
}

func init() {
	sitemapCmd.Flags().BoolVar(&sitemapHTML, "html", false, "render as HTML")
	sitemapCmd.Flags().StringVarP(&sitemapOutput, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(sitemapCmd)
}

func runSitemap(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	md, err := documentService.Sitemap(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to build sitemap: %w", err)
	}

	out := []byte(md)
	if sitemapHTML {
		if out, err = renderSitemapHTML(md); err != nil {
			return err
		}
	}

	if sitemapOutput != "" {
		if err := fsutil.WriteAtomic(sitemapOutput, out, 0o644); err != nil {
			return fmt.Errorf("failed to write sitemap: %w", err)
		}
		cmd.Printf("Sitemap written to %s\n", sitemapOutput)
		return nil
	}

	cmd.Print(string(out))
	return nil
}

const sitemapTitle = "Vault Sitemap"

// renderSitemapHTML converts the markdown sitemap into a standalone page.
func renderSitemapHTML(md string) ([]byte, error) {
	converter := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)

	var body bytes.Buffer
	if err := converter.Convert([]byte(md), &body); err != nil {
		return nil, fmt.Errorf("render sitemap: %w", err)
	}

	var page bytes.Buffer
	writePage(&page, sitemapTitle, body.Bytes())
	return page.Bytes(), nil
}

func writePage(w io.Writer, title string, body []byte) {
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n",
		html.EscapeString(title))
	w.Write(body) //nolint:errcheck
	fmt.Fprint(w, "</body>\n</html>\n")
}
