package httpapi

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gymgate/server/internal/gymgate/types"
)

func accessRequestFromStruct(st *structpb.Struct) (types.AccessRequest, error) {
	v, ok := st.GetFields()["identifier"]
	if !ok {
		return types.AccessRequest{}, errMissingIdentifier
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return types.AccessRequest{}, fmt.Errorf("identifier must be a string")
	}
	return types.AccessRequest{Identifier: s.StringValue}, nil
}

// toStruct maps a response through its JSON form so both encodings carry the
// same field names. Nil pointers become null values.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
