package handlers

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	jsoncodec "github.com/drblury/topicflow/internal/runtime/jsoncodec"
)

var protoJSONMarshalOptions = protojson.MarshalOptions{
	EmitUnpopulated: true,
}

var protoJSONUnmarshalOptions = protojson.UnmarshalOptions{
	DiscardUnknown: true,
}

// Marshal encodes msg as the payload of a bus message. Protobuf messages use
// protojson; everything else is plain JSON.
func Marshal(msg contracts.Message) ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	if pm, ok := msg.(proto.Message); ok {
		payload, err = protoJSONMarshalOptions.Marshal(pm)
	} else {
		payload, err = jsoncodec.Marshal(msg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msg.MessageFullName(), err)
	}
	return payload, nil
}

// Unmarshal decodes payload into msg.
func Unmarshal(payload []byte, msg contracts.Message) error {
	var err error
	if pm, ok := msg.(proto.Message); ok {
		err = protoJSONUnmarshalOptions.Unmarshal(payload, pm)
	} else {
		err = jsoncodec.Unmarshal(payload, msg)
	}
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", msg.MessageFullName(), err)
	}
	return nil
}
