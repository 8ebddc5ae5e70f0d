package oplog

import (
	"github.com/abhissng/conduit/blame"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// FormatVersion is written into every encoded record. Decoders refuse any
// other version.
const FormatVersion = 1

// Field numbers of the binary record. They are the compatibility contract
// between writers and every read service and must never be reused.
const (
	fieldID         protowire.Number = 1
	fieldSequence   protowire.Number = 2
	fieldOperation  protowire.Number = 3
	fieldCollection protowire.Number = 4
	fieldIdentifier protowire.Number = 5
	fieldData       protowire.Number = 6
	fieldOccurredAt protowire.Number = 7
	fieldVersion    protowire.Number = 15
)

// Marshal encodes rec in protobuf wire format. Data is carried as a
// google.protobuf.Struct, so numbers decode as float64.
func Marshal(rec *Record) ([]byte, error) {
	if !rec.Operation.Valid() {
		return nil, blame.UnknownOperation(rec.Operation.String())
	}

	var b []byte
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, FormatVersion)
	b = appendString(b, fieldID, rec.ID)
	if rec.Sequence != 0 {
		b = protowire.AppendTag(b, fieldSequence, protowire.VarintType)
		b = protowire.AppendVarint(b, rec.Sequence)
	}
	b = appendString(b, fieldOperation, rec.Operation.String())
	b = appendString(b, fieldCollection, rec.Collection)
	b = appendString(b, fieldIdentifier, rec.Identifier)

	if rec.Data != nil {
		data, err := normalizeData(rec.Data)
		if err != nil {
			return nil, blame.MarshalFailed(err)
		}
		s, err := structpb.NewStruct(data)
		if err != nil {
			return nil, blame.MarshalFailed(err)
		}
		raw, err := proto.MarshalOptions{Deterministic: true}.Marshal(s)
		if err != nil {
			return nil, blame.MarshalFailed(err)
		}
		b = protowire.AppendTag(b, fieldData, protowire.BytesType)
		b = protowire.AppendBytes(b, raw)
	}

	if !rec.OccurredAt.IsZero() {
		raw, err := proto.Marshal(timestamppb.New(rec.OccurredAt))
		if err != nil {
			return nil, blame.MarshalFailed(err)
		}
		b = protowire.AppendTag(b, fieldOccurredAt, protowire.BytesType)
		b = protowire.AppendBytes(b, raw)
	}
	return b, nil
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// Unmarshal decodes a record produced by Marshal. Unknown fields are
// skipped; a missing or different format version and an unknown operation
// are errors.
func Unmarshal(b []byte) (*Record, error) {
	rec := &Record{}
	var (
		version   uint64
		operation string
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, blame.RecordMalformed(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			version, n = protowire.ConsumeVarint(b)
		case num == fieldSequence && typ == protowire.VarintType:
			rec.Sequence, n = protowire.ConsumeVarint(b)
		case num == fieldID && typ == protowire.BytesType:
			rec.ID, n = protowire.ConsumeString(b)
		case num == fieldOperation && typ == protowire.BytesType:
			operation, n = protowire.ConsumeString(b)
		case num == fieldCollection && typ == protowire.BytesType:
			rec.Collection, n = protowire.ConsumeString(b)
		case num == fieldIdentifier && typ == protowire.BytesType:
			rec.Identifier, n = protowire.ConsumeString(b)
		case num == fieldData && typ == protowire.BytesType:
			var raw []byte
			if raw, n = protowire.ConsumeBytes(b); n >= 0 {
				s := &structpb.Struct{}
				if err := proto.Unmarshal(raw, s); err != nil {
					return nil, blame.RecordMalformed(err)
				}
				rec.Data = s.AsMap()
			}
		case num == fieldOccurredAt && typ == protowire.BytesType:
			var raw []byte
			if raw, n = protowire.ConsumeBytes(b); n >= 0 {
				ts := &timestamppb.Timestamp{}
				if err := proto.Unmarshal(raw, ts); err != nil {
					return nil, blame.RecordMalformed(err)
				}
				rec.OccurredAt = ts.AsTime()
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, blame.RecordMalformed(protowire.ParseError(n))
		}
		b = b[n:]
	}

	if version != FormatVersion {
		return nil, blame.RecordVersion(version)
	}
	kind, err := ParseKind(operation)
	if err != nil {
		return nil, err
	}
	rec.Operation = kind
	return rec, nil
}
