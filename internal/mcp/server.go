package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/julienmessagingme/educnat/internal/config"
	"github.com/julienmessagingme/educnat/internal/descriptions"
	"github.com/julienmessagingme/educnat/internal/pipeline"
	"github.com/julienmessagingme/educnat/internal/saisine"
	"github.com/julienmessagingme/educnat/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *pipeline.Service
	mcpServer *server.MCPServer
	logger    *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *pipeline.Service, logger *zap.Logger) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("pipeline service cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		service:   service,
		mcpServer: mcpServer,
		logger:    logger,
	}
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ExtractFile,
		mcp.WithDescription(descriptions.ExtractFileDescription),
		mcp.WithString("path",
			mcp.Description("Document path, absolute or relative to the document directory"),
		),
		mcp.WithString("filename",
			mcp.Description("Original file name of an uploaded document (.docx or .pdf)"),
		),
		mcp.WithString("content_base64",
			mcp.Description("Base64 content of an uploaded document"),
		),
	), s.handleExtractFile)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.DetectFile,
		mcp.WithDescription(descriptions.DetectFileDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Document path, absolute or relative to the document directory"),
		),
	), s.handleDetectFile)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.AnalyseFiles,
		mcp.WithDescription(descriptions.AnalyseFilesDescription),
		mcp.WithArray("paths",
			mcp.Required(),
			mcp.Description("Document paths in presentation order"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	), s.handleAnalyseFiles)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.GetFiche,
		mcp.WithDescription(descriptions.GetFicheDescription),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Fiche id")),
	), s.handleGetFiche)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ListFiches,
		mcp.WithDescription(descriptions.ListFichesDescription),
		mcp.WithString("status",
			mcp.Description("Only fiches in this state"),
			mcp.Enum(string(store.StatusPending), string(store.StatusValidated), string(store.StatusCompleted)),
		),
		mcp.WithString("search", mcp.Description("Text searched in the pupil's name and the source file name")),
		mcp.WithNumber("page", mcp.Description("Page number, from 1")),
		mcp.WithNumber("limit", mcp.Description("Page size, at most 100")),
	), s.handleListFiches)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.UpdateFiche,
		mcp.WithDescription(descriptions.UpdateFicheDescription),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Fiche id")),
		mcp.WithObject("fiche", mcp.Required(), mcp.Description("Corrected fiche fields")),
	), s.handleUpdateFiche)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.RenderFiche,
		mcp.WithDescription(descriptions.RenderFicheDescription),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Fiche id")),
	), s.handleRenderFiche)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.SaveProposition,
		mcp.WithDescription(descriptions.SavePropositionDescription),
		mcp.WithNumber("fiche_id", mcp.Required(), mcp.Description("Fiche id")),
		mcp.WithObject("proposition", mcp.Required(), mcp.Description("Proposition fields")),
	), s.handleSaveProposition)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.GetProposition,
		mcp.WithDescription(descriptions.GetPropositionDescription),
		mcp.WithNumber("fiche_id", mcp.Required(), mcp.Description("Fiche id")),
		mcp.WithNumber("temps", mcp.Description("1 or 2, 1 when omitted")),
	), s.handleGetProposition)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ListMotifs,
		mcp.WithDescription(descriptions.ListMotifsDescription),
	), s.handleListMotifs)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.GetAnalyse,
		mcp.WithDescription(descriptions.GetAnalyseDescription),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Analysis id")),
	), s.handleGetAnalyse)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ListAnalyses,
		mcp.WithDescription(descriptions.ListAnalysesDescription),
		mcp.WithString("status",
			mcp.Description("Only analyses in this state"),
			mcp.Enum(string(store.StatusPending), string(store.StatusValidated), string(store.StatusCompleted)),
		),
		mcp.WithString("search", mcp.Description("Text searched in the pupil's names")),
		mcp.WithNumber("page", mcp.Description("Page number, from 1")),
		mcp.WithNumber("limit", mcp.Description("Page size, at most 100")),
	), s.handleListAnalyses)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.UpdateAnalyse,
		mcp.WithDescription(descriptions.UpdateAnalyseDescription),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Analysis id")),
		mcp.WithObject("analyse", mcp.Required(), mcp.Description("Corrected analysis fields")),
	), s.handleUpdateAnalyse)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.RenderAnalyse,
		mcp.WithDescription(descriptions.RenderAnalyseDescription),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Analysis id")),
	), s.handleRenderAnalyse)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.DeleteAnalyse,
		mcp.WithDescription(descriptions.DeleteAnalyseDescription),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Analysis id")),
	), s.handleDeleteAnalyse)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ListDocuments,
		mcp.WithDescription(descriptions.ListDocumentsDescription),
		mcp.WithString("query", mcp.Description("Optional file name filter")),
	), s.handleListDocuments)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ServerInfo,
		mcp.WithDescription(descriptions.ServerInfoDescription),
	), s.handleServerInfo)
}

// Handler functions
func (s *Server) handleExtractFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	filename := request.GetString("filename", "")
	content := request.GetString("content_base64", "")

	var (
		rec *store.FicheRecord
		err error
	)
	switch {
	case content != "":
		if filename == "" {
			return mcp.NewToolResultError("filename is required with content_base64"), nil
		}
		data, decodeErr := base64.StdEncoding.DecodeString(content)
		if decodeErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid base64 content: %v", decodeErr)), nil
		}
		rec, err = s.service.ProcessUpload(ctx, filename, data)
	case path != "":
		rec, err = s.service.ProcessFile(ctx, path)
	default:
		return mcp.NewToolResultError("either path or filename with content_base64 is required"), nil
	}
	if err != nil {
		return s.toolError(err, "fiche"), nil
	}

	text := fmt.Sprintf("Fiche %d created from %s (status: %s)\n\n", rec.ID, rec.SourceFilename, rec.Status)
	text += formatFiche(rec, s.service.Catalog())
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleDetectFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.service.DetectFile(ctx, path)
	if err != nil {
		return s.toolError(err, ""), nil
	}
	return mcp.NewToolResultText(formatDetection(res, s.service.Catalog())), nil
}

func (s *Server) handleAnalyseFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := stringSlice(request.GetArguments(), "paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := s.service.Analyse(ctx, paths)
	if err != nil {
		return s.toolError(err, ""), nil
	}
	return mcp.NewToolResultText(formatAnalyse(rec)), nil
}

func (s *Server) handleGetFiche(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := s.service.GetFiche(ctx, id)
	if err != nil {
		return s.toolError(err, "fiche"), nil
	}
	return mcp.NewToolResultText(formatFiche(rec, s.service.Catalog())), nil
}

func (s *Server) handleListFiches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := store.ParseStatus(request.GetString("status", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	page, err := s.service.ListFiches(ctx, store.ListOptions{
		Page:   request.GetInt("page", 1),
		Limit:  request.GetInt("limit", 0),
		Status: status,
		Search: request.GetString("search", ""),
	})
	if err != nil {
		return s.toolError(err, "fiche"), nil
	}
	return mcp.NewToolResultText(formatFichePage(page)), nil
}

func (s *Server) handleUpdateFiche(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	corrected, err := ficheArgument(request.GetArguments(), "fiche")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := s.service.UpdateFiche(ctx, id, corrected)
	if err != nil {
		return s.toolError(err, "fiche"), nil
	}

	text := fmt.Sprintf("Fiche %d validated\n\n", rec.ID)
	text += formatFiche(rec, s.service.Catalog())
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleRenderFiche(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, out, err := s.service.RenderFiche(ctx, id)
	if err != nil {
		return s.toolError(err, "fiche"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Fiche %d rendered (status: %s)\nPDF: %s\nPages: %d\n",
		rec.ID, rec.Status, out.PDFPath, out.Pages)), nil
}

func (s *Server) handleSaveProposition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ficheID, err := requirePositiveID(request, "fiche_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var p saisine.Proposition
	if err := objectArgument(request.GetArguments(), "proposition", &p); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := s.service.SaveProposition(ctx, ficheID, p)
	if err != nil {
		return s.toolError(err, "fiche"), nil
	}
	fiche, err := s.service.GetFiche(ctx, ficheID)
	if err != nil {
		return s.toolError(err, "fiche"), nil
	}

	text := fmt.Sprintf("Proposition saved for fiche %d (Temps %d)\n\n", rec.FicheID, rec.Temps)
	text += formatProposition(rec, fiche.Prenom)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleGetProposition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ficheID, err := requirePositiveID(request, "fiche_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	temps := request.GetInt("temps", saisine.Temps1)
	if temps != saisine.Temps1 && temps != saisine.Temps2 {
		return mcp.NewToolResultError("temps must be 1 or 2"), nil
	}

	fiche, err := s.service.GetFiche(ctx, ficheID)
	if err != nil {
		return s.toolError(err, "fiche"), nil
	}
	rec, err := s.service.GetProposition(ctx, ficheID, temps)
	if err != nil {
		return s.toolError(err, "proposition"), nil
	}
	return mcp.NewToolResultText(formatProposition(rec, fiche.Prenom)), nil
}

func (s *Server) handleListMotifs(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatMotifs(saisine.Motifs())), nil
}

func (s *Server) handleGetAnalyse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := s.service.GetAnalyse(ctx, id)
	if err != nil {
		return s.toolError(err, "analyse"), nil
	}
	return mcp.NewToolResultText(formatAnalyse(rec)), nil
}

func (s *Server) handleListAnalyses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := store.ParseStatus(request.GetString("status", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	page, err := s.service.ListAnalyses(ctx, store.ListOptions{
		Page:   request.GetInt("page", 1),
		Limit:  request.GetInt("limit", 0),
		Status: status,
		Search: request.GetString("search", ""),
	})
	if err != nil {
		return s.toolError(err, "analyse"), nil
	}
	return mcp.NewToolResultText(formatAnalysePage(page)), nil
}

func (s *Server) handleUpdateAnalyse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var corrected saisine.Analyse
	if err := objectArgument(request.GetArguments(), "analyse", &corrected); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := s.service.UpdateAnalyse(ctx, id, corrected)
	if err != nil {
		return s.toolError(err, "analyse"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Analyse %d validated\n\n", rec.ID) + formatAnalyse(rec)), nil
}

func (s *Server) handleRenderAnalyse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, out, err := s.service.RenderAnalyse(ctx, id)
	if err != nil {
		return s.toolError(err, "analyse"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Analyse %d rendered (status: %s)\nPDF: %s\nPages: %d\n",
		rec.ID, rec.Status, out.PDFPath, out.Pages)), nil
}

func (s *Server) handleDeleteAnalyse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.service.DeleteAnalyse(ctx, id); err != nil {
		return s.toolError(err, "analyse"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Analyse %d deleted", id)), nil
}

func (s *Server) handleListDocuments(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	files, err := s.service.ListDocuments(query)
	if err != nil {
		return s.toolError(err, ""), nil
	}
	if len(files) == 0 {
		text := fmt.Sprintf("No documents found in directory: %s", s.service.Directory())
		if query != "" {
			text += fmt.Sprintf(" (searched for: %s)", query)
		}
		return mcp.NewToolResultText(text), nil
	}
	return mcp.NewToolResultText(formatDocuments(s.service.Directory(), query, files)), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := s.service.ListDocuments("")
	if err != nil {
		return s.toolError(err, ""), nil
	}
	return mcp.NewToolResultText(s.formatServerInfo(files)), nil
}

// toolError reports a failure to the client. Extraction errors carry their
// kind so the client can tell a bad document from a server problem; record
// names the kind of record a missing id refers to.
func (s *Server) toolError(err error, record string) *mcp.CallToolResult {
	var se *saisine.Error
	switch {
	case errors.As(err, &se):
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", se.Kind, err.Error()))
	case errors.Is(err, store.ErrNotFound) && record != "":
		return mcp.NewToolResultError(record + " not found")
	}
	s.logger.Warn("tool call failed", zap.Error(err))
	return mcp.NewToolResultError(err.Error())
}

func requireID(request mcp.CallToolRequest) (int64, error) {
	return requirePositiveID(request, "id")
}

func requirePositiveID(request mcp.CallToolRequest, key string) (int64, error) {
	id, err := request.RequireFloat(key)
	if err != nil {
		return 0, err
	}
	if id < 1 || id != float64(int64(id)) {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return int64(id), nil
}

func stringSlice(args map[string]any, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("required argument %q not found", key)
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("argument %q must be a list of strings", key)
			}
			out[i] = str
		}
		return out, nil
	}
	return nil, fmt.Errorf("argument %q must be a list of strings", key)
}

// ficheArgument decodes the corrected fields, given as an object or as its
// JSON text
func ficheArgument(args map[string]any, key string) (saisine.Fiche, error) {
	var f saisine.Fiche
	err := objectArgument(args, key, &f)
	return f, err
}

// objectArgument decodes args[key], an object or its JSON text, into v
func objectArgument(args map[string]any, key string, v any) error {
	raw, ok := args[key]
	if !ok {
		return fmt.Errorf("required argument %q not found", key)
	}

	var data []byte
	if str, ok := raw.(string); ok {
		data = []byte(str)
	} else {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		data = encoded
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	return nil
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	switch s.config.Mode {
	case config.ModeServer:
		return s.runServerMode(ctx)
	case config.ModeStdio:
		return s.runStdioMode(ctx)
	default:
		return fmt.Errorf("unsupported mode %q", s.config.Mode)
	}
}

// runStdioMode serves MCP over stdin/stdout until ctx is done
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Debug("starting MCP server in stdio mode", zap.String("dir", s.config.Directory))

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over HTTP with server-sent events until ctx is
// done
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	// Event streams only end when their request context does
	streams, closeStreams := context.WithCancel(context.Background())
	defer closeStreams()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           sse,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streams },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server in SSE mode", zap.String("address", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve SSE: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	closeStreams()
	if err := sse.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("failed to close SSE sessions", zap.Error(err))
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down SSE server: %w", err)
	}
	return nil
}
