package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"portfolio-backend/internal/extract"
	"portfolio-backend/internal/insights"
	"portfolio-backend/internal/llm"
	"portfolio-backend/internal/llm/azure"
	"portfolio-backend/internal/llm/mock"
	"portfolio-backend/internal/pipeline"
	"portfolio-backend/internal/shared/config"
	"portfolio-backend/internal/shared/telemetry"
)

type parseOutput struct {
	Insight   insights.Insight `json:"insight"`
	Defaulted []string         `json:"defaulted,omitempty"`
}

type analyzeOutput struct {
	File       string           `json:"file"`
	Provider   string           `json:"provider,omitempty"`
	Model      string           `json:"model,omitempty"`
	Structured bool             `json:"structured"`
	TextChars  int              `json:"textChars"`
	Insight    insights.Insight `json:"insight"`
	Defaulted  []string         `json:"defaulted,omitempty"`
	ElapsedMs  int64            `json:"elapsedMs"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reviewctl",
		Short:         "Offline tools for the portfolio review pipeline",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			env := "production"
			if debug {
				env = "dev"
			}
			return telemetry.Configure(env)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			telemetry.Sync()
		},
	}
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")
	root.PersistentFlags().Bool("compact", false, "Print single-line JSON")

	root.AddCommand(newParseCmd())
	root.AddCommand(newAnalyzeCmd())
	return root
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [FILE|-]",
		Short: "Parse free-form analysis text into an insight",
		Long: `Run the insight parser over analysis text read from FILE, or stdin when
FILE is "-" or omitted, and print the resulting insight as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			raw, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			insight, missing := insights.ParseWithReport(string(raw))
			return writeJSON(cmd, parseOutput{Insight: insights.Finalize(insight), Defaulted: missing})
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Extract, interpret and parse a portfolio document",
		Long: `Run a document through text extraction and interpretation without touching
session storage. Azure OpenAI is used when configured; otherwise the mock
interpreter answers. Use --provider to force one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, _ := cmd.Flags().GetString("provider")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			client, err := buildInterpreter(config.Load(), provider)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out, err := analyzeFile(ctx, client, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, out)
		},
	}
	cmd.Flags().String("provider", "", "Interpreter to use: azure or mock (default from environment)")
	cmd.Flags().Duration("timeout", 2*time.Minute, "Overall deadline for the analysis")
	return cmd
}

func buildInterpreter(cfg config.Config, provider string) (llm.Client, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = cfg.LLMProvider
	}
	switch provider {
	case "azure":
		return azure.NewClient(azure.Config{
			Endpoint:   cfg.AzureOpenAIEndpoint,
			APIKey:     cfg.AzureOpenAIKey,
			Deployment: cfg.AzureOpenAIDeployment,
			APIVersion: cfg.AzureOpenAIAPIVersion,
			Timeout:    cfg.LLMTimeout,
		})
	case "mock", "":
		return mock.Client{}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

func analyzeFile(ctx context.Context, client llm.Client, path string) (analyzeOutput, error) {
	started := time.Now()
	data, err := os.ReadFile(path)
	if err != nil {
		return analyzeOutput{}, fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(data)) > pipeline.DefaultMaxDocumentBytes {
		return analyzeOutput{}, fmt.Errorf("%s exceeds %d bytes", path, pipeline.DefaultMaxDocumentBytes)
	}

	text, err := extract.ExtractTextFromBytes(ctx, data, "", filepath.Base(path))
	if err != nil {
		return analyzeOutput{}, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return analyzeOutput{}, fmt.Errorf("no text extracted from %s", path)
	}

	resp, err := client.Interpret(ctx, text)
	if err != nil {
		return analyzeOutput{}, fmt.Errorf("interpret: %w", err)
	}
	insight, missing, err := pipeline.InsightFromInterpretation(resp)
	if err != nil {
		return analyzeOutput{}, fmt.Errorf("decode interpretation: %w", err)
	}

	return analyzeOutput{
		File:       filepath.Base(path),
		Provider:   resp.Provider,
		Model:      resp.Model,
		Structured: resp.IsStructured(),
		TextChars:  len(text),
		Insight:    insights.Finalize(insight),
		Defaulted:  missing,
		ElapsedMs:  time.Since(started).Milliseconds(),
	}, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	compact, _ := cmd.Flags().GetBool("compact")
	enc := json.NewEncoder(cmd.OutOrStdout())
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
