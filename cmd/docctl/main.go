package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var apiURL string
	root := &cobra.Command{
		Use:   "docctl",
		Short: "Command line client for the document management API",
	}
	root.PersistentFlags().StringVar(&apiURL, "api", getenv("DOCMAN_API_URL", "http://localhost:8080"), "API base URL")

	client := &apiClient{apiURL: &apiURL, http: &http.Client{Timeout: 180 * time.Second}}
	root.AddCommand(
		uploadCMD(client),
		listCMD(client),
		getCMD(client),
		deleteCMD(client),
		downloadCMD(client),
		askCMD(client),
		statsCMD(client),
		setKeyCMD(client),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

type apiClient struct {
	apiURL *string
	http   *http.Client
}

func (c *apiClient) url(path string) string {
	return strings.TrimRight(*c.apiURL, "/") + path
}

func (c *apiClient) doJSON(method, path string, body io.Reader) error {
	req, err := http.NewRequest(method, c.url(path), body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(raw) > 0 {
		var pretty bytes.Buffer
		if json.Indent(&pretty, raw, "", "  ") == nil {
			fmt.Println(pretty.String())
		} else {
			fmt.Println(string(raw))
		}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("api returned %s", resp.Status)
	}
	return nil
}

func uploadCMD(client *apiClient) *cobra.Command {
	var category string
	var useModel bool
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload and classify a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			part, err := mw.CreateFormFile("file", filepath.Base(args[0]))
			if err != nil {
				return err
			}
			if _, err := part.Write(data); err != nil {
				return err
			}
			if category != "" {
				if err := mw.WriteField("category", category); err != nil {
					return err
				}
			}
			if err := mw.WriteField("use_model", fmt.Sprintf("%t", useModel)); err != nil {
				return err
			}
			if err := mw.Close(); err != nil {
				return err
			}

			req, err := http.NewRequest(http.MethodPost, client.url("/v1/documents"), &buf)
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", mw.FormDataContentType())
			resp, err := client.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			return printResponse(resp)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "pin the storage category instead of the classifier verdict")
	cmd.Flags().BoolVar(&useModel, "use-model", true, "use the hosted model for the executive summary")
	return cmd
}

func listCMD(client *apiClient) *cobra.Command {
	var category, keyword string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if category != "" {
				params.Set("category", category)
			}
			if keyword != "" {
				params.Set("q", keyword)
			}
			path := "/v1/documents"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}
			return client.doJSON(http.MethodGet, path, nil)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&keyword, "q", "", "filename or content keyword")
	return cmd
}

func getCMD(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a stored document with its analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.doJSON(http.MethodGet, "/v1/documents/"+args[0], nil)
		},
	}
}

func deleteCMD(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.doJSON(http.MethodDelete, "/v1/documents/"+args[0], nil)
		},
	}
}

func downloadCMD(client *apiClient) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download the original file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.http.Get(client.url("/v1/documents/" + args[0] + "/file"))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return printResponse(resp)
			}

			target := out
			if target == "" {
				target = filenameFromDisposition(resp.Header.Get("Content-Disposition"))
			}
			if target == "" {
				target = "document-" + args[0]
			}
			f, err := os.Create(target)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := io.Copy(f, resp.Body); err != nil {
				return err
			}
			fmt.Printf("saved %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output path (defaults to the stored filename)")
	return cmd
}

func askCMD(client *apiClient) *cobra.Command {
	var category string
	var noModel bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question against the stored corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.Marshal(map[string]any{
				"question":  strings.Join(args, " "),
				"category":  category,
				"use_model": !noModel,
			})
			if err != nil {
				return err
			}
			return client.doJSON(http.MethodPost, "/v1/qa/ask", bytes.NewReader(payload))
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "restrict the corpus to one category")
	cmd.Flags().BoolVar(&noModel, "no-model", false, "skip the hosted model and answer from excerpts")
	return cmd
}

func statsCMD(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show corpus statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.doJSON(http.MethodGet, "/v1/stats", nil)
		},
	}
}

func setKeyCMD(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "set-key <api-key>",
		Short: "Install the OpenAI API key at runtime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.Marshal(map[string]string{"api_key": args[0]})
			if err != nil {
				return err
			}
			return client.doJSON(http.MethodPut, "/v1/config/openai-key", bytes.NewReader(payload))
		},
	}
}

func filenameFromDisposition(header string) string {
	_, after, ok := strings.Cut(header, "filename=")
	if !ok {
		return ""
	}
	return strings.Trim(strings.TrimSpace(after), `"`)
}
