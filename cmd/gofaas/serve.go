package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/caffeineduck/gofaas/engine"
	"github.com/caffeineduck/gofaas/executor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// maxBodySize caps request bodies: handler sources and request JSON.
const maxBodySize = 10 * 1024 * 1024

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for handler invocation",
	Long: `Start an HTTP server that deploys and invokes handler functions.

Endpoints:
  PUT    /functions/{name}         Deploy handler source (request body)
  DELETE /functions/{name}         Undeploy a function
  GET    /functions                List deployed functions
  POST   /functions/{name}/invoke  Invoke with the body as request JSON
  POST   /invoke                   Run {"code":"...","request":{...}} once
  GET    /health                   Health check

With --functions, every .js file in the directory is deployed under its base
name at startup; --watch redeploys on changes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", DefaultConfig().Server.Port, "Port to listen on")
	serveCmd.Flags().String("functions", "", "Directory of handler files to deploy")
	serveCmd.Flags().Bool("watch", false, "Redeploy when the functions directory changes")
	addExecutorFlags(serveCmd)

	rootCmd.AddCommand(serveCmd)
}

type invokeRequest struct {
	Code    string          `json:"code"`
	Request json.RawMessage `json:"request,omitempty"`
	Timeout string          `json:"timeout,omitempty"`
}

type invokeResponse struct {
	Response   json.RawMessage `json:"response,omitempty"`
	Output     string          `json:"output"`
	ID         string          `json:"id,omitempty"`
	Ops        int             `json:"ops"`
	DurationMs int64           `json:"duration_ms"`
	Error      string          `json:"error,omitempty"`
	Kind       string          `json:"kind,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type functionsResponse struct {
	Functions []string `json:"functions"`
}

// server exposes an Executor over HTTP.
type server struct {
	exec *executor.Executor
	log  *zap.Logger
}

func newServer(exec *executor.Executor, log *zap.Logger) *server {
	return &server{exec: exec, log: log}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /functions", s.listFunctions)
	mux.HandleFunc("PUT /functions/{name}", s.deploy)
	mux.HandleFunc("DELETE /functions/{name}", s.undeploy)
	mux.HandleFunc("POST /functions/{name}/invoke", s.invokeFunction)
	mux.HandleFunc("POST /invoke", s.invoke)
	return mux
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *server) listFunctions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, functionsResponse{Functions: s.exec.Functions()})
}

func (s *server) deploy(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	src, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	if err := s.exec.Deploy(name, string(src)); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) undeploy(w http.ResponseWriter, r *http.Request) {
	if err := s.exec.Undeploy(r.PathValue("name")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// invokeFunction answers with the handler's response as the body. Errors
// use the errorResponse shape.
func (s *server) invokeFunction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	if len(body) == 0 {
		body = []byte("null")
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, errors.New("request body is not valid JSON"))
		return
	}

	var opts []executor.Option
	if t := r.URL.Query().Get("timeout"); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid timeout: %w", err))
			return
		}
		opts = append(opts, executor.WithTimeout(d))
	}

	result := s.exec.Invoke(r.Context(), r.PathValue("name"), body, opts...)
	w.Header().Set("X-Invocation-Id", result.ID)
	w.Header().Set("X-Duration-Ms", strconv.FormatInt(result.Duration.Milliseconds(), 10))
	if result.Error != nil {
		writeError(w, statusFor(result.Error), result.Error)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(result.JSON)
}

func (s *server) invoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid json"))
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, errors.New("code required"))
		return
	}
	if len(req.Request) == 0 {
		req.Request = json.RawMessage("null")
	}

	var opts []executor.Option
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid timeout: %w", err))
			return
		}
		opts = append(opts, executor.WithTimeout(d))
	}

	result := s.exec.Run(r.Context(), req.Code, req.Request, opts...)

	resp := invokeResponse{
		Response:   result.JSON,
		Output:     result.Output,
		ID:         result.ID,
		Ops:        result.Ops,
		DurationMs: result.Duration.Milliseconds(),
	}
	status := http.StatusOK
	if result.Error != nil {
		resp.Response = nil
		resp.Error = result.Error.Error()
		resp.Kind = errorKind(result.Error)
		status = statusFor(result.Error)
	}
	writeJSON(w, status, resp)
}

// statusFor maps an executor error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, executor.ErrFunctionNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, executor.ErrInvalidName), errors.Is(err, engine.ErrLoad):
		return http.StatusBadRequest
	case errors.Is(err, executor.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrInvoke):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	if ie, ok := engine.AsInvokeError(err); ok {
		return string(ie.Kind)
	}
	if errors.Is(err, engine.ErrLoad) {
		return "load"
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: errorKind(err)})
}

func runServe(cmd *cobra.Command, args []string) error {
	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port, _ = cmd.Flags().GetInt("port")
	}
	dir := cfg.Server.Functions
	if cmd.Flags().Changed("functions") {
		dir, _ = cmd.Flags().GetString("functions")
	}
	watch := cfg.Server.Watch
	if cmd.Flags().Changed("watch") {
		watch, _ = cmd.Flags().GetBool("watch")
	}

	exec, err := newExecutor(cmd)
	if err != nil {
		return err
	}
	defer exec.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if dir != "" {
		fns := newFunctionsDir(dir, exec, logger)
		if err := fns.reload(); err != nil {
			logger.Warn("some functions failed to deploy", zap.Error(err))
		}
		if watch {
			if err := fns.watch(ctx); err != nil {
				return err
			}
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newServer(exec, logger).handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.ErrOrStderr(), "gofaas server listening on %s (%d functions)\n", srv.Addr, len(exec.Functions()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
