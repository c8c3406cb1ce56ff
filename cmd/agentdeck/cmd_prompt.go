package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/agentdeck/internal/types"
	"github.com/user/agentdeck/internal/webtext"
)

var (
	promptServerURL   string
	promptImportTitle string
	promptImportTags  []string
)

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.AddCommand(promptListCmd, promptImportCmd)
	promptCmd.PersistentFlags().StringVar(&promptServerURL, "server", "http://localhost:8090", "running console's base URL")
	promptImportCmd.Flags().StringVar(&promptImportTitle, "title", "", "title for the imported prompt (defaults to the URL)")
	promptImportCmd.Flags().StringSliceVar(&promptImportTags, "tags", nil, "tags for the imported prompt")
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Manage the prompt catalog of a running console",
}

// consoleClient returns an HTTP client logged in to the running daemon. The
// catalog lives in the daemon's memory, so the CLI goes through its API
// rather than touching state directly.
func consoleClient() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	client := &http.Client{Jar: jar, Timeout: 10 * time.Second}

	resp, err := client.Post(promptServerURL+"/auth/login", "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("login to console at %s: %w", promptServerURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login failed: status %d", resp.StatusCode)
	}
	return client, nil
}

func decodeConsoleResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("console error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

var promptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompts in the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := consoleClient()
		if err != nil {
			return err
		}

		resp, err := client.Get(promptServerURL + "/prompts")
		if err != nil {
			return fmt.Errorf("list prompts: %w", err)
		}
		var out struct {
			Prompts []*types.Prompt `json:"prompts"`
		}
		if err := decodeConsoleResponse(resp, &out); err != nil {
			return err
		}
		if len(out.Prompts) == 0 {
			fmt.Println("No prompts found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tTAGS\tVERSIONS\tUPDATED")
		for _, p := range out.Prompts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				p.ID,
				p.Title,
				strings.Join(p.Tags, ","),
				len(p.Versions),
				p.UpdatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var promptImportCmd = &cobra.Command{
	Use:   "import <url>",
	Short: "Fetch a web page as markdown and add it as a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]
		title := promptImportTitle
		if title == "" {
			title = url
		}

		md, err := webtext.NewFetcher().Fetch(context.Background(), url)
		if err != nil {
			return err
		}

		client, err := consoleClient()
		if err != nil {
			return err
		}

		body, err := json.Marshal(map[string]any{
			"title": title,
			"body":  md,
			"tags":  promptImportTags,
		})
		if err != nil {
			return fmt.Errorf("marshal prompt: %w", err)
		}
		resp, err := client.Post(promptServerURL+"/prompts", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create prompt: %w", err)
		}
		var out struct {
			Prompt *types.Prompt `json:"prompt"`
		}
		if err := decodeConsoleResponse(resp, &out); err != nil {
			return err
		}

		fmt.Printf("Imported %s as prompt %s (%d chars)\n", url, out.Prompt.ID, len(out.Prompt.Body))
		return nil
	},
}
