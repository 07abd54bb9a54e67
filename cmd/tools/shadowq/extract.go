package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"shadowquery-workers/internal/common/chatgpt"
	"shadowquery-workers/internal/common/config"
	httpclient "shadowquery-workers/internal/common/http"
	"shadowquery-workers/internal/extractor"
	"shadowquery-workers/internal/models"
)

var (
	extractFile   string
	extractID     string
	extractToken  string
	extractCookie string
	extractPretty bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract shadow queries and citations from a conversation",
	Long: `Extract reads a conversation record from a file (or stdin with --file -)
or fetches it by id, and prints the report as JSON.

Fetching needs either --token or --cookie. The base URL and retry
policy come from the chatgpt section of the config.`,
	RunE: runExtract,
}

func init() {
	addSourceFlags(extractCmd)
	extractCmd.Flags().BoolVar(&extractPretty, "pretty", false, "Indent the JSON output")
	rootCmd.AddCommand(extractCmd)
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&extractFile, "file", "", "Conversation record to read (- for stdin)")
	cmd.Flags().StringVar(&extractID, "id", "", "Conversation id")
	cmd.Flags().StringVar(&extractToken, "token", "", "Access token used to fetch the conversation")
	cmd.Flags().StringVar(&extractCookie, "cookie", "", "Session cookie exchanged for an access token")
}

func runExtract(cmd *cobra.Command, args []string) error {
	report, _, err := extractReport(cmd)
	if err != nil {
		return err
	}
	return writeJSON(cmd, report, extractPretty)
}

// extractReport loads the selected conversation and extracts it.
func extractReport(cmd *cobra.Command) (*models.Report, *extractor.Document, error) {
	doc, err := loadDocument(cmd)
	if err != nil {
		return nil, nil, err
	}
	report, err := extractor.New(newLogger()).Extract(doc, extractID)
	if err != nil {
		return nil, nil, err
	}
	return report, doc, nil
}

func loadDocument(cmd *cobra.Command) (*extractor.Document, error) {
	if extractFile != "" {
		data, err := readInput(cmd, extractFile)
		if err != nil {
			return nil, err
		}
		return extractor.ParseDocument(data)
	}
	if extractID == "" {
		return nil, fmt.Errorf("one of --file or --id is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client := chatgpt.NewClient(cfg.ChatGPT.BaseURL, cfg.ChatGPT.UserAgent, httpclient.NewClient(
		config.GetDuration(cfg.ChatGPT.Timeout),
		httpclient.WithRetryPolicy(httpclient.RetryPolicy{
			MaxRetries: cfg.ChatGPT.MaxRetries,
			BaseDelay:  config.GetDuration(cfg.ChatGPT.BaseDelay),
			MaxDelay:   config.GetDuration(cfg.ChatGPT.MaxDelay),
		}),
	))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	token := extractToken
	if token == "" {
		session, err := client.FetchSession(ctx, extractCookie)
		if err != nil {
			return nil, err
		}
		token = session.AccessToken
	}
	data, err := client.FetchConversation(ctx, token, extractID)
	if err != nil {
		return nil, err
	}
	return extractor.ParseDocument(data)
}

func writeJSON(cmd *cobra.Command, v interface{}, pretty bool) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
