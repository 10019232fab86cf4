package errors

import (
	"errors"
	"log"
	"net/http"

	rpccode "google.golang.org/genproto/googleapis/rpc/code"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var envelopeMarshal = protojson.MarshalOptions{UseProtoNames: true}

// WriteHTTP renders err as an AIP-193 JSON envelope {"error": {...}} where
// the inner object is the google.rpc.Status of the error.
func WriteHTTP(w http.ResponseWriter, err error, locale string) {
	if err == nil {
		return
	}
	if locale == "" {
		locale = DefaultLocale
	}

	var (
		st         *status.Status
		httpStatus int
	)
	var appErr *Error
	if errors.As(err, &appErr) {
		resolved, userMsg := appErr.Localize(locale)
		st = appErr.ToStatus(resolved, userMsg)
		httpStatus = appErr.Code.HTTPStatus()
	} else {
		log.Printf("http: unexpected error: %v", err)
		st = status.New(codes.Internal, "an unexpected error occurred")
		httpStatus = http.StatusInternalServerError
	}

	body, marshalErr := envelope(st, httpStatus)
	if marshalErr != nil {
		http.Error(w, http.StatusText(httpStatus), httpStatus)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(httpStatus)
	_, _ = w.Write(body)
}

func envelope(st *status.Status, httpStatus int) ([]byte, error) {
	raw, err := envelopeMarshal.Marshal(st.Proto())
	if err != nil {
		return nil, err
	}
	inner := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, inner); err != nil {
		return nil, err
	}
	// AIP-193 keeps the HTTP code in "code" and the canonical name in "status".
	inner.Fields["status"] = structpb.NewStringValue(rpccode.Code(st.Code()).String())
	inner.Fields["code"] = structpb.NewNumberValue(float64(httpStatus))
	outer := &structpb.Struct{Fields: map[string]*structpb.Value{
		"error": structpb.NewStructValue(inner),
	}}
	return envelopeMarshal.Marshal(outer)
}
