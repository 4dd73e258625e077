package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"identix/internal/credential/handler"
)

// errNotValid makes the process exit non-zero for any outcome but valid.
type errNotValid struct{ outcome string }

func (e errNotValid) Error() string {
	return "credential not valid: " + e.outcome
}

func newVerifyCmd() *cobra.Command {
	var (
		serverURL string
		studentID string
		tok       string
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a credential against a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp, status, err := postVerify(ctx, &http.Client{}, serverURL, handler.VerifyRequest{StudentID: studentID, Token: tok})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOutput {
				if err := printJSON(w, resp); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(w, "Outcome: %s\n", outcomeColor(resp).Sprint(resp.Outcome))
				if resp.MatchedIndex != nil {
					fmt.Fprintf(w, "Index:   %d\n", *resp.MatchedIndex)
				}
				if c := resp.Credential; c != nil {
					fmt.Fprintf(w, "Holder:  %s\n", c.HolderName)
					fmt.Fprintf(w, "Issued:  %s by %s\n", c.IssuedAt.Format(time.RFC3339), c.IssuerID)
					fmt.Fprintf(w, "Status:  %s\n", c.Status)
				}
			}
			if status == http.StatusServiceUnavailable {
				return fmt.Errorf("verification inconclusive, retry later")
			}
			if !resp.Valid {
				return errNotValid{outcome: resp.Outcome}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "identix server base URL")
	cmd.Flags().StringVar(&studentID, "student-id", "", "Student identifier")
	cmd.Flags().StringVar(&tok, "token", "", "Credential lookup token")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Request timeout")
	_ = cmd.MarkFlagRequired("student-id")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func outcomeColor(resp *handler.VerifyResponse) *color.Color {
	switch {
	case resp.Valid:
		return color.New(color.FgGreen, color.Bold)
	case resp.Outcome == "transport_error":
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func postVerify(ctx context.Context, client *http.Client, serverURL string, body handler.VerifyRequest) (*handler.VerifyResponse, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encode request: %w", err)
	}
	url := strings.TrimRight(serverURL, "/") + "/verify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("call %s: %w", url, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusServiceUnavailable {
		var apiErr struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		return nil, res.StatusCode, fmt.Errorf("server returned %d: %s %s", res.StatusCode, apiErr.Error, apiErr.Description)
	}

	var out handler.VerifyResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, res.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return &out, res.StatusCode, nil
}
