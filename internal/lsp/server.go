package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"fortio.org/safecast"

	"glitchls/internal/command"
	"glitchls/internal/publish"
	"glitchls/internal/refresh"
	"glitchls/internal/runner"
	"glitchls/internal/version"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// ActiveEditorMethod is the notification a host sends when the focused
// editor changes without an open or close.
const ActiveEditorMethod = "glitch/didChangeActiveEditor"

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	Runner  runner.Runner
	Command command.Options
	// Debounce of zero selects refresh.DefaultDebounce; a negative value
	// disables debouncing.
	Debounce    time.Duration
	MaxParallel int
	Logger      *slog.Logger
	// WatchConfig re-analyzes open documents when a .glitch.toml changes.
	WatchConfig bool
}

// Server handles stdio JSON-RPC for the glitch language server.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	mu     sync.Mutex

	openDocs map[string]refresh.Document
	active   string

	workspaceRoot     string
	shutdownRequested bool
	traceLSP          bool

	coll    *publish.Collection
	trigger *refresh.Trigger
	source  *refresh.LayeredSource
	watcher *configWatcher
	logger  *slog.Logger
	baseCtx context.Context
}

// NewServer constructs a new LSP server.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := opts.Debounce
	switch {
	case debounce == 0:
		debounce = refresh.DefaultDebounce
	case debounce < 0:
		debounce = 0
	}
	run := opts.Runner
	if run == nil {
		run = runner.New(runner.WithLogger(logger))
	}

	s := &Server{
		in:       bufio.NewReader(in),
		out:      bufio.NewWriter(out),
		openDocs: make(map[string]refresh.Document),
		logger:   logger,
		baseCtx:  context.Background(),
	}
	if opts.WatchConfig {
		w, err := newConfigWatcher(logger, s.refreshAll)
		if err != nil {
			logger.Warn("Config watcher unavailable", slog.String("error", err.Error()))
		} else {
			s.watcher = w
		}
	}
	s.source = refresh.NewLayeredSource(s.watchConfigFile)
	s.coll = publish.NewCollection(s, logger)
	s.trigger = refresh.New(s.coll, refresh.Options{
		Runner:      run,
		Command:     opts.Command,
		Config:      s.source,
		Notifier:    s,
		Logger:      logger,
		Debounce:    debounce,
		MaxParallel: opts.MaxParallel,
		Trace:       logger.Enabled(context.Background(), slog.LevelDebug),
	})
	return s
}

// Run serves LSP requests until exit or end of input. Pending refreshes are
// stopped and in-flight ones awaited before it returns.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	if s.watcher != nil {
		go s.watcher.Start(ctx)
	}
	defer s.stop()

	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logf("failed to parse message: %v", err)
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) stop() {
	s.trigger.Stop()
	s.trigger.Wait()
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.logf("failed to stop config watcher: %v", err)
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		s.trigger.Activate(s.baseCtx, s.activeDocument())
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		if s.isShutdown() {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	}

	if s.isShutdown() {
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeInvalidRequest, "server is shutting down")
		}
		return nil
	}

	switch msg.Method {
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case ActiveEditorMethod:
		return s.handleActiveEditor(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		root = uriToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = uriToPath(params.WorkspaceFolders[0].URI)
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	s.mu.Lock()
	s.workspaceRoot = root
	s.mu.Unlock()

	s.applySettings(params.InitializationOptions)
	s.logger.Debug("Initialized", slog.String("root", root))

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    1,
				Save:      saveOptions{IncludeText: false},
			},
		},
		ServerInfo: serverInfo{Name: "glitchls", Version: version.Version},
	}
	return s.sendResponse(msg.ID, result)
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	s.trigger.Stop()
	s.trigger.Wait()
	s.coll.ClearAll()
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	doc, ok := s.track(params.TextDocument.URI)
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.active = doc.URI
	s.mu.Unlock()
	if s.currentTrace() {
		s.logf("didOpen: uri=%s version=%d", doc.URI, params.TextDocument.Version)
	}
	s.trigger.ActiveChanged(s.baseCtx, doc)
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	doc, ok := s.lookup(params.TextDocument.URI)
	if !ok {
		return nil
	}
	if s.currentTrace() {
		s.logf("didChange: uri=%s version=%d", doc.URI, params.TextDocument.Version)
	}
	s.trigger.Changed(s.baseCtx, doc)
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	doc, ok := s.lookup(params.TextDocument.URI)
	if !ok {
		return nil
	}
	if s.currentTrace() {
		s.logf("didSave: uri=%s", doc.URI)
	}
	s.trigger.Saved(s.baseCtx, doc)
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	doc, ok := s.openDocs[uri]
	delete(s.openDocs, uri)
	if s.active == uri {
		s.active = ""
	}
	s.mu.Unlock()
	if !ok {
		doc = refresh.Document{URI: uri}
	}
	s.trigger.Closed(doc)
	return nil
}

func (s *Server) handleActiveEditor(msg *rpcMessage) error {
	var params activeEditorParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return nil
		}
	}
	uri := canonicalURI(params.URI)
	s.mu.Lock()
	doc, ok := s.openDocs[uri]
	if ok || uri == "" {
		s.active = uri
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	s.trigger.ActiveChanged(s.baseCtx, doc)
	return nil
}

// track registers uri as open. Only file URIs are analyzable since the
// analyzer reads from disk.
func (s *Server) track(rawURI string) (refresh.Document, bool) {
	uri := canonicalURI(rawURI)
	if uri == "" {
		return refresh.Document{}, false
	}
	path := uriToPath(uri)
	if path == "" {
		if s.currentTrace() {
			s.logf("ignoring non-file document %s", uri)
		}
		return refresh.Document{}, false
	}
	doc := refresh.Document{URI: uri, Path: path}
	s.mu.Lock()
	s.openDocs[uri] = doc
	s.mu.Unlock()
	return doc, true
}

func (s *Server) lookup(rawURI string) (refresh.Document, bool) {
	uri := canonicalURI(rawURI)
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.openDocs[uri]
	return doc, ok
}

func (s *Server) activeDocument() *refresh.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.openDocs[s.active]
	if !ok {
		return nil
	}
	return &doc
}

// openDocuments returns the open documents sorted by URI.
func (s *Server) openDocuments() []refresh.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]refresh.Document, 0, len(s.openDocs))
	for _, doc := range s.openDocs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs
}

func (s *Server) refreshAll() {
	if s.isShutdown() {
		return
	}
	s.trigger.ConfigurationChanged(s.baseCtx, s.openDocuments())
}

func (s *Server) watchConfigFile(path string) {
	if s.watcher != nil {
		s.watcher.Watch(path)
	}
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdownRequested
}

// PublishDiagnostics sends a document's full diagnostic set to the client.
func (s *Server) PublishDiagnostics(uri string, list []publish.Diagnostic) error {
	out := make([]lspDiagnostic, 0, len(list))
	for _, d := range list {
		rng, err := toLSPRange(d.Range)
		if err != nil {
			s.logf("dropping diagnostic %s: %v", d.Code, err)
			continue
		}
		out = append(out, lspDiagnostic{
			Range:    rng,
			Severity: int(d.Severity),
			Code:     d.Code,
			Source:   d.Source,
			Message:  d.Message,
		})
	}
	if s.currentTrace() {
		s.logf("publish: uri=%s count=%d", uri, len(out))
	}
	return s.sendPublish(uri, out)
}

// ShowError shows message as an error notification in the client.
func (s *Server) ShowError(message string) error {
	return s.sendNotification("window/showMessage", showMessageParams{
		Type:    messageError,
		Message: message,
	})
}

func toLSPRange(r publish.Range) (lspRange, error) {
	start, err := toLSPPosition(r.Start)
	if err != nil {
		return lspRange{}, err
	}
	end, err := toLSPPosition(r.End)
	if err != nil {
		return lspRange{}, err
	}
	return lspRange{Start: start, End: end}, nil
}

func toLSPPosition(p publish.Position) (position, error) {
	line, err := safecast.Conv[uint32](p.Line)
	if err != nil {
		return position{}, fmt.Errorf("line %d: %w", p.Line, err)
	}
	char, err := safecast.Conv[uint32](p.Column)
	if err != nil {
		return position{}, fmt.Errorf("column %d: %w", p.Column, err)
	}
	return position{Line: line, Character: char}, nil
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) sendPublish(uri string, list []lspDiagnostic) error {
	if list == nil {
		list = []lspDiagnostic{}
	}
	return s.sendNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Diagnostics: list,
	})
}

func (s *Server) sendNotification(method string, params any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	}
	return s.send(msg)
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) logf(format string, args ...any) {
	s.logger.Info(fmt.Sprintf(format, args...), slog.String("component", "lsp"))
}
