package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gymgate/server/internal/gymgate/types"
)

// maxRequestBody caps the request body for protobuf and JSON payloads. An
// access request is a single short identifier.
const maxRequestBody = 4096

const protobufContentType = "application/x-protobuf"

// isProtobuf returns true if the request's Content-Type indicates a
// protobuf payload.
func isProtobuf(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == protobufContentType || ct == "application/protobuf"
}

func wantsProtobuf(r *http.Request) bool {
	if isProtobuf(r) {
		return true
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, _ := mime.ParseMediaType(strings.TrimSpace(part))
		if mt == protobufContentType || mt == "application/protobuf" {
			return true
		}
	}
	return false
}

// readProto reads the request body and unmarshals it into msg.
func readProto(r *http.Request, msg proto.Message) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	return proto.Unmarshal(body, msg)
}

// writeProto marshals msg and writes it with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		// Fall back to a plain-text error if marshalling fails.
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

var errMissingIdentifier = errors.New("identifier field missing")

// readAccessRequest decodes {identifier} from a google.protobuf.Struct or a
// JSON body. An empty identifier is left to the service to reject.
func readAccessRequest(r *http.Request) (types.AccessRequest, error) {
	if isProtobuf(r) {
		var st structpb.Struct
		if err := readProto(r, &st); err != nil {
			return types.AccessRequest{}, err
		}
		return accessRequestFromStruct(&st)
	}

	var req types.AccessRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return types.AccessRequest{}, err
	}
	return req, nil
}
