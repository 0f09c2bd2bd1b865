package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"gitgraph/internal/gitgraph"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// SimilarResponseCLI is the payload of the similar command.
type SimilarResponseCLI struct {
	Path    string                `json:"path"`
	K       int                   `json:"k"`
	Results []gitgraph.SimilarFile `json:"results"`
}

// ScanResponseCLI is the payload of the scan command.
type ScanResponseCLI struct {
	Root       string `json:"root"`
	Generation uint64 `json:"generation"`
	Commits    int    `json:"commits"`
	Files      int    `json:"files"`
	ElapsedMs  int64  `json:"elapsedMs"`
}

// StatusResponseCLI is the payload of the status command.
type StatusResponseCLI struct {
	Root       string `json:"root"`
	Built      bool   `json:"built"`
	Generation uint64 `json:"generation"`
	Commits    int    `json:"commits"`
	Files      int    `json:"files"`
	Queries    uint64 `json:"queries"`
	HeadCommit string `json:"headCommit,omitempty"`
	StateID    string `json:"stateId,omitempty"`
	Dirty      bool   `json:"dirty"`
}

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *SimilarResponseCLI:
		return formatSimilarHuman(v), nil
	case *ScanResponseCLI:
		return formatScanHuman(v), nil
	case *StatusResponseCLI:
		return formatStatusHuman(v), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatSimilarHuman(resp *SimilarResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Files similar to %s:\n", resp.Path)
	if len(resp.Results) == 0 {
		b.WriteString("  (no similar files found)\n")
		return b.String()
	}
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "  %2d. %-50s %.4f\n", i+1, r.Path, r.Score)
	}
	return b.String()
}

func formatScanHuman(resp *ScanResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scan complete: %s\n", resp.Root)
	fmt.Fprintf(&b, "  Generation: %d\n", resp.Generation)
	fmt.Fprintf(&b, "  Commits:    %d\n", resp.Commits)
	fmt.Fprintf(&b, "  Files:      %d\n", resp.Files)
	fmt.Fprintf(&b, "  Elapsed:    %dms\n", resp.ElapsedMs)
	return b.String()
}

func formatStatusHuman(resp *StatusResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", resp.Root)
	if resp.HeadCommit != "" {
		fmt.Fprintf(&b, "  HEAD:       %s\n", resp.HeadCommit)
	}
	if resp.StateID != "" {
		fmt.Fprintf(&b, "  State:      %s\n", resp.StateID)
	}
	fmt.Fprintf(&b, "  Dirty:      %v\n", resp.Dirty)
	fmt.Fprintf(&b, "  Built:      %v\n", resp.Built)
	if resp.Built {
		fmt.Fprintf(&b, "  Generation: %d\n", resp.Generation)
		fmt.Fprintf(&b, "  Commits:    %d\n", resp.Commits)
		fmt.Fprintf(&b, "  Files:      %d\n", resp.Files)
		fmt.Fprintf(&b, "  Queries:    %d\n", resp.Queries)
	}
	return b.String()
}
