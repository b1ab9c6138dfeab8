package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"clinrag/internal/clinical"
	"clinrag/internal/metadata"
	"clinrag/internal/rag"
	"clinrag/internal/retriever"
	"clinrag/internal/store"
	"clinrag/internal/tui"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing patient assessment and literature search tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	engine, corpus, err := newEngine(cmd.Context())
	if err != nil {
		return err
	}
	if corpus != nil {
		defer corpus.Close()
	}

	s := mcpserver.NewMCPServer("clinrag", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(assessPatientTool(), makeAssessHandler(engine))
	s.AddTool(searchLiteratureTool(), makeSearchHandler(engine))
	s.AddTool(listDocumentsTool(), makeListDocumentsHandler(corpus))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(false),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func assessPatientTool() mcp.Tool {
	return mcp.NewTool("assess_patient",
		mcp.WithDescription("Infer symptoms and diagnostic findings from a patient record, retrieve supporting literature, and return a grounded clinical summary with citations."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("patient",
			mcp.Required(),
			mcp.Description("Patient record as a JSON or YAML mapping of dataset columns, e.g. {\"hematocrit\": 29, \"irondef\": 1, \"respiration\": 24}"),
		),
		mcp.WithString("question",
			mcp.Description("Optional question to focus the summary on"),
		),
	)
}

func searchLiteratureTool() mcp.Tool {
	return mcp.NewTool("search_literature",
		mcp.WithDescription("Search the literature corpus. Returns ranked chunks with scores, titles and source files."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of chunks to return (default 10)"),
		),
	)
}

func listDocumentsTool() mcp.Tool {
	return mcp.NewTool("list_documents",
		mcp.WithDescription("List the documents in the literature corpus with their bibliographic metadata and chunk counts."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

// --- Handler factories ---

func makeAssessHandler(engine *rag.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw := req.GetString("patient", "")
		if strings.TrimSpace(raw) == "" {
			return mcp.NewToolResultError("patient is required"), nil
		}
		rec, err := clinical.DecodeRecord(strings.NewReader(raw))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid patient record: %v", err)), nil
		}

		res, err := engine.Assess(ctx, rec, req.GetString("question", ""))
		if res == nil {
			return mcp.NewToolResultError(fmt.Sprintf("assessment failed: %v", err)), nil
		}
		return assessmentResult(res)
	}
}

// assessmentResult returns the rendered report followed by the result as
// JSON. The JSON is also attached as structured content.
func assessmentResult(res *rag.Result) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode assessment: %w", err)
	}
	r := mcp.NewToolResultText(tui.RenderAssessment(res, 100, true))
	r.Content = append(r.Content, mcp.NewTextContent(string(b)))
	r.StructuredContent = res
	return r, nil
}

func makeSearchHandler(engine *rag.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", 10)
		if k <= 0 {
			k = 10
		}

		results, err := engine.Search(ctx, query, k)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatSearchResults(query, engine.Strategy(), results)), nil
	}
}

func makeListDocumentsHandler(corpus store.Reader) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if corpus == nil {
			return mcp.NewToolResultText("No corpus available. Run 'clinrag build <source-dir>' first."), nil
		}

		docs, err := corpus.Documents(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list documents failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## Corpus documents (%d)\n\n", len(docs))
		for _, d := range docs {
			title := d.Title
			if title == "" {
				title = metadata.Stem(d.Filename)
			}
			fmt.Fprintf(&sb, "- **%s**", title)
			if a := metadata.DisplayAuthor(d.Author); a != "" {
				fmt.Fprintf(&sb, ", %s", a)
			}
			if d.Year > 0 {
				fmt.Fprintf(&sb, " (%d)", d.Year)
			}
			fmt.Fprintf(&sb, ": `%s`, %d chunks, %d embedded\n", d.Filename, d.Chunks, d.Embedded)
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, strategy retriever.Strategy, results []retriever.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q (%s retrieval)", query, strategy)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks, %s retrieval)\n\n", query, len(results), strategy)

	for i, r := range results {
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, r.Chunk.Filename)
		fmt.Fprintf(&sb, "**Title:** %s  \n**Score:** %.3f  \n**Chunk:** %d\n\n", r.Chunk.Title, r.Score, r.Chunk.Index)
		fmt.Fprintf(&sb, "%s\n\n", r.Chunk.Text)
	}

	return sb.String()
}
