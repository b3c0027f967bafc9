package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// MaxUpload bounds the body of POST /v1/images.
const MaxUpload = 64 << 20

// NewGateway returns an HTTP/JSON mux that calls svc in-process. The
// Authorization header is forwarded as gRPC metadata, so svc's token check
// applies unchanged.
//
//	GET    /v1/images               list
//	POST   /v1/images               save raw body
//	DELETE /v1/images               clear
//	DELETE /v1/images/{id}          delete
//	POST   /v1/images/{id}/ocr      attach OCR text {"text": "..."}
//	POST   /v1/images/cleanup?hours=N
//	POST   /v1/poller/reset         reset last hash
//	GET    /v1/file?path=P          raw bytes of a stored file
//	POST   /v1/clipboard/file?path=P
//	GET    /v1/status
func NewGateway(svc ImageServiceServer) (*gwruntime.ServeMux, error) {
	g := &gateway{svc: svc}
	mux := gwruntime.NewServeMux()
	for _, r := range []struct {
		method, pattern string
		h               gwruntime.HandlerFunc
	}{
		{http.MethodGet, "/v1/images", g.list},
		{http.MethodPost, "/v1/images", g.save},
		{http.MethodDelete, "/v1/images", g.clear},
		{http.MethodDelete, "/v1/images/{id}", g.delete},
		{http.MethodPost, "/v1/images/{id}/ocr", g.setOCR},
		{http.MethodPost, "/v1/images/cleanup", g.cleanup},
		{http.MethodPost, "/v1/poller/reset", g.resetHash},
		{http.MethodGet, "/v1/file", g.readFile},
		{http.MethodPost, "/v1/clipboard/file", g.copyFile},
		{http.MethodGet, "/v1/status", g.status},
	} {
		if err := mux.HandlePath(r.method, r.pattern, r.h); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

type gateway struct {
	svc ImageServiceServer
}

func (g *gateway) list(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.svc.List(incoming(r), &Empty{})
	reply(w, http.StatusOK, resp, err)
}

func (g *gateway) save(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUpload))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Code: "OutOfRange", Message: err.Error()})
			return
		}
		writeError(w, status.Errorf(codes.InvalidArgument, "read body: %v", err))
		return
	}
	resp, err := g.svc.Save(incoming(r), &SaveRequest{Data: data})
	code := http.StatusCreated
	if resp != nil && resp.Duplicate {
		code = http.StatusOK
	}
	reply(w, code, resp, err)
}

func (g *gateway) clear(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.svc.Clear(incoming(r), &Empty{})
	reply(w, http.StatusOK, resp, err)
}

func (g *gateway) delete(w http.ResponseWriter, r *http.Request, p map[string]string) {
	resp, err := g.svc.Delete(incoming(r), &DeleteRequest{ID: p["id"]})
	reply(w, http.StatusOK, resp, err)
}

func (g *gateway) setOCR(w http.ResponseWriter, r *http.Request, p map[string]string) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, status.Errorf(codes.InvalidArgument, "decode body: %v", err))
		return
	}
	resp, err := g.svc.SetOCR(incoming(r), &SetOCRRequest{ID: p["id"], Text: body.Text})
	reply(w, http.StatusOK, resp, err)
}

func (g *gateway) cleanup(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	hours, err := strconv.ParseInt(r.URL.Query().Get("hours"), 10, 64)
	if err != nil {
		writeError(w, status.Errorf(codes.InvalidArgument, "hours: %v", err))
		return
	}
	resp, err := g.svc.Cleanup(incoming(r), &CleanupRequest{Hours: hours})
	reply(w, http.StatusOK, resp, err)
}

func (g *gateway) resetHash(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.svc.ResetHash(incoming(r), &Empty{})
	reply(w, http.StatusOK, resp, err)
}

func (g *gateway) readFile(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.svc.ReadFile(incoming(r), &FileRequest{Path: r.URL.Query().Get("path")})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", mimetype.Detect(resp.Data).String())
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Data)
}

func (g *gateway) copyFile(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.svc.CopyFile(incoming(r), &FileRequest{Path: r.URL.Query().Get("path")})
	reply(w, http.StatusOK, resp, err)
}

func (g *gateway) status(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.svc.Status(incoming(r), &Empty{})
	reply(w, http.StatusOK, resp, err)
}

// incoming carries the HTTP Authorization header into gRPC metadata.
func incoming(r *http.Request) context.Context {
	md := metadata.MD{}
	if a := r.Header.Get("Authorization"); a != "" {
		md.Set("authorization", a)
	}
	return metadata.NewIncomingContext(r.Context(), md)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func reply(w http.ResponseWriter, code int, v any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, code, v)
}

func writeError(w http.ResponseWriter, err error) {
	st := status.Convert(err)
	writeJSON(w, gwruntime.HTTPStatusFromCode(st.Code()), errorBody{Code: st.Code().String(), Message: st.Message()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("gateway: write response", "err", err)
	}
}
