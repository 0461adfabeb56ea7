package rhal

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Request is the envelope sent from a client to the server.
type Request struct {
	// ID correlates the request with its response. It is chosen by the sender.
	ID uint64
	// Device is the path of the peripheral instance the request targets.
	Device string
	// Kind is the requested operation.
	Kind RequestKind
}

// NewRequest creates a request for device with a freshly generated correlation id.
func NewRequest(device string, kind RequestKind) *Request {
	return &Request{ID: GenerateID(), Device: device, Kind: kind}
}

// Response is the envelope sent from the server back to a client.
type Response struct {
	// ID echoes the ID of the request that triggered this response.
	ID uint64
	// Kind is the outcome of the request.
	Kind ResponseKind
}

// NewResponse creates the response to req.
func NewResponse(req *Request, kind ResponseKind) *Response {
	return &Response{ID: req.ID, Kind: kind}
}

type requestEnvelope struct {
	ID     uint64          `json:"id"`
	Device string          `json:"device"`
	Kind   json.RawMessage `json:"kind"`
}

type responseEnvelope struct {
	ID   uint64          `json:"id"`
	Kind json.RawMessage `json:"kind"`
}

type kindTag struct {
	Type string `json:"type"`
}

// MarshalJSON implements json.Marshaler.
func (r Request) MarshalJSON() ([]byte, error) {
	if r.Kind == nil {
		return nil, fmt.Errorf("%w: request %d has no kind", ErrMalformedMessage, r.ID)
	}
	kind, err := encodeKind(string(r.Kind.Type()), r.Kind)
	if err != nil {
		return nil, err
	}
	return json.Marshal(requestEnvelope{ID: r.ID, Device: r.Device, Kind: kind})
}

// UnmarshalJSON implements json.Unmarshaler.
//
// A kind with an unrecognized type tag decodes to UnknownReq rather than failing,
// so the server can still answer it.
func (r *Request) UnmarshalJSON(data []byte) error {
	var env requestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	tag, err := decodeTag(env.Kind)
	if err != nil {
		return err
	}

	r.ID = env.ID
	r.Device = env.Device

	decode, ok := requestDecoders[RequestType(tag)]
	if !ok {
		r.Kind = UnknownReq{Tag: RequestType(tag)}
		return nil
	}
	kind, err := decode(env.Kind)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedMessage, tag, err)
	}
	r.Kind = kind

	return nil
}

// MarshalJSON implements json.Marshaler.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Kind == nil {
		return nil, fmt.Errorf("%w: response %d has no kind", ErrMalformedMessage, r.ID)
	}
	kind, err := encodeKind(string(r.Kind.Type()), r.Kind)
	if err != nil {
		return nil, err
	}
	return json.Marshal(responseEnvelope{ID: r.ID, Kind: kind})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Response) UnmarshalJSON(data []byte) error {
	var env responseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	tag, err := decodeTag(env.Kind)
	if err != nil {
		return err
	}

	decode, ok := responseDecoders[ResponseType(tag)]
	if !ok {
		return fmt.Errorf("%w: unknown response type %q", ErrMalformedMessage, tag)
	}
	kind, err := decode(env.Kind)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedMessage, tag, err)
	}

	r.ID = env.ID
	r.Kind = kind

	return nil
}

// encodeKind renders v as a JSON object with an extra "type" member holding tag.
func encodeKind(tag string, v any) (json.RawMessage, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%w: kind %s is not an object", ErrMalformedMessage, tag)
	}

	typ, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(typ) + 9)
	buf.WriteString(`{"type":`)
	buf.Write(typ)
	if rest := body[1:]; !bytes.Equal(rest, []byte("}")) {
		buf.WriteByte(',')
		buf.Write(rest)
	} else {
		buf.WriteByte('}')
	}

	return buf.Bytes(), nil
}

func decodeTag(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: missing kind", ErrMalformedMessage)
	}
	var tag kindTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if tag.Type == "" {
		return "", fmt.Errorf("%w: missing kind type", ErrMalformedMessage)
	}
	return tag.Type, nil
}

// decodeKind decodes raw into a T and returns it as the kind interface K.
func decodeKind[K any, T any](raw []byte) (K, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero K
		return zero, err
	}
	k, _ := any(v).(K)
	return k, nil
}

// String returns a compact human readable form of the request, used in log records.
func (r *Request) String() string {
	return fmt.Sprintf("Request{id: %d, device: %q, kind: %s}", r.ID, r.Device, KindString(r.Kind))
}

// String returns a compact human readable form of the response, used in log records.
func (r *Response) String() string {
	return fmt.Sprintf("Response{id: %d, kind: %s}", r.ID, KindString(r.Kind))
}

// KindString formats a request or response kind, rendering Data fields as hex lists.
func KindString(kind any) string {
	switch k := kind.(type) {
	case nil:
		return "<nil>"
	case SpiTransferReq:
		return fmt.Sprintf("%s{write_data: %s}", k.Type(), k.WriteData)
	case SpiWriteReq:
		return fmt.Sprintf("%s{write_data: %s}", k.Type(), k.WriteData)
	case I2cWriteReq:
		return fmt.Sprintf("%s{addr: 0x%02x, write_data: %s}", k.Type(), k.Addr, k.WriteData)
	case I2cWriteReadReq:
		return fmt.Sprintf("%s{addr: 0x%02x, write_data: %s, read_len: %d}", k.Type(), k.Addr, k.WriteData, k.ReadLen)
	case SpiTransferRsp:
		return fmt.Sprintf("%s{data: %s}", k.Type(), k.Data)
	case I2cReadRsp:
		return fmt.Sprintf("%s{data: %s}", k.Type(), k.Data)
	case RequestKind:
		return fmt.Sprintf("%s%+v", k.Type(), k)
	case ResponseKind:
		return fmt.Sprintf("%s%+v", k.Type(), k)
	default:
		return fmt.Sprintf("%v", k)
	}
}
