package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/socialhub/internal/middleware"
	"github.com/hitoshi/socialhub/internal/model"
)

// Path はRPCエンドポイントのマウント位置。
const Path = "/api/trpc"

// maxBodyBytes はミューテーションのリクエストボディ上限。
const maxBodyBytes = 1 << 20

// ProcedureType はプロシージャの種別。
type ProcedureType string

const (
	// Query は読み取り専用のプロシージャ。GETで呼び出す。
	Query ProcedureType = "query"
	// Mutation は状態を変更するプロシージャ。POSTで呼び出す。
	Mutation ProcedureType = "mutation"
)

func (t ProcedureType) method() string {
	if t == Mutation {
		return http.MethodPost
	}
	return http.MethodGet
}

// Input はプロシージャへの入力。Decodeで任意の型に復元する。
type Input struct {
	env         Envelope
	transformer Transformer
}

// Empty は入力が省略されたかどうかを返す。
func (in Input) Empty() bool {
	s := strings.TrimSpace(string(in.env.JSON))
	return s == "" || s == "null"
}

// Decode は入力をvへ復元する。
func (in Input) Decode(v any) error {
	if in.Empty() {
		return nil
	}
	if err := in.transformer.Deserialize(in.env, v); err != nil {
		return model.NewInvalidInputError(err.Error())
	}
	return nil
}

// HandlerFunc はプロシージャの実装。戻り値はTransformerで直列化される。
// *model.APIErrorを返すとコードに応じたHTTPステータスで応答する。
type HandlerFunc func(ctx context.Context, input Input) (any, error)

type procedure struct {
	typ     ProcedureType
	handler HandlerFunc
}

// Server はプロシージャのレジストリ兼HTTPハンドラー。
type Server struct {
	transformer Transformer
	procedures  map[string]procedure
}

// NewServer はServerを生成する。
func NewServer(transformer Transformer) *Server {
	if transformer == nil {
		transformer = DateTransformer{}
	}
	return &Server{
		transformer: transformer,
		procedures:  make(map[string]procedure),
	}
}

// Query はクエリプロシージャを登録する。
func (s *Server) Query(path string, h HandlerFunc) {
	s.register(path, Query, h)
}

// Mutation はミューテーションプロシージャを登録する。
func (s *Server) Mutation(path string, h HandlerFunc) {
	s.register(path, Mutation, h)
}

func (s *Server) register(path string, typ ProcedureType, h HandlerFunc) {
	if _, exists := s.procedures[path]; exists {
		panic(fmt.Sprintf("rpc: procedure %q registered twice", path))
	}
	s.procedures[path] = procedure{typ: typ, handler: h}
}

// Procedures は登録済みのプロシージャ名と種別を返す。
func (s *Server) Procedures() map[string]ProcedureType {
	out := make(map[string]ProcedureType, len(s.procedures))
	for path, p := range s.procedures {
		out[path] = p.typ
	}
	return out
}

// ServeHTTP は /api/trpc/{procedure} へのリクエストを処理する。
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "procedure")
	if path == "" {
		path = strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, Path), "/")
	}

	proc, ok := s.procedures[path]
	if !ok {
		s.writeError(w, path, model.NewProcedureNotFoundError(path))
		return
	}
	if r.Method != proc.typ.method() {
		w.Header().Set("Allow", proc.typ.method())
		s.writeError(w, path, model.NewMethodNotAllowedError(path, r.Method))
		return
	}

	env, err := readEnvelope(r, proc.typ)
	if err != nil {
		s.writeError(w, path, model.NewInvalidInputError(err.Error()))
		return
	}

	result, err := proc.handler(r.Context(), Input{env: env, transformer: s.transformer})
	if err != nil {
		s.writeError(w, path, err)
		return
	}

	out, err := s.transformer.Serialize(result)
	if err != nil {
		slog.Error("failed to serialize procedure result",
			slog.String("procedure", path),
			slog.String("error", err.Error()),
		)
		s.writeError(w, path, model.NewInternalError())
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Result: successResult{Data: out}})
}

// readEnvelope はクエリでは?input=、ミューテーションではボディから入力を読む。
func readEnvelope(r *http.Request, typ ProcedureType) (Envelope, error) {
	var raw []byte
	if typ == Query {
		raw = []byte(r.URL.Query().Get("input"))
	} else {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			return Envelope{}, fmt.Errorf("failed to read body: %w", err)
		}
		if len(body) > maxBodyBytes {
			return Envelope{}, errors.New("request body too large")
		}
		raw = body
	}

	var env Envelope
	if len(strings.TrimSpace(string(raw))) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed envelope: %w", err)
	}
	return env, nil
}

type successResponse struct {
	Result successResult `json:"result"`
}

type successResult struct {
	Data Envelope `json:"data"`
}

// errorResponse はエラー時のボディ。codeはJSON-RPC互換の数値コード。
type errorResponse struct {
	Error errorShape `json:"error"`
}

type errorShape struct {
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Data    errorData `json:"data"`
}

type errorData struct {
	Code       string `json:"code"`
	HTTPStatus int    `json:"httpStatus"`
	Path       string `json:"path,omitempty"`
	APICode    string `json:"apiCode"`
	Category   string `json:"category"`
	Action     string `json:"action"`
}

// rpcCodes はHTTPステータスとエラーコード名・JSON-RPC数値コードの対応。
var rpcCodes = map[int]struct {
	name    string
	jsonRPC int
}{
	http.StatusBadRequest:          {"BAD_REQUEST", -32600},
	http.StatusUnauthorized:        {"UNAUTHORIZED", -32001},
	http.StatusForbidden:           {"FORBIDDEN", -32003},
	http.StatusNotFound:            {"NOT_FOUND", -32004},
	http.StatusMethodNotAllowed:    {"METHOD_NOT_SUPPORTED", -32005},
	http.StatusTooManyRequests:     {"TOO_MANY_REQUESTS", -32029},
	http.StatusInternalServerError: {"INTERNAL_SERVER_ERROR", -32603},
}

func (s *Server) writeError(w http.ResponseWriter, path string, err error) {
	apiErr := middleware.AsAPIError(err)
	status := middleware.StatusForCode(apiErr.Code)
	code, ok := rpcCodes[status]
	if !ok {
		code = rpcCodes[http.StatusInternalServerError]
	}

	writeJSON(w, status, errorResponse{Error: errorShape{
		Message: apiErr.Message,
		Code:    code.jsonRPC,
		Data: errorData{
			Code:       code.name,
			HTTPStatus: status,
			Path:       path,
			APICode:    apiErr.Code,
			Category:   apiErr.Category,
			Action:     apiErr.Action,
		},
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write rpc response", slog.String("error", err.Error()))
	}
}
