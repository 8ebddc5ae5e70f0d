package oplog_test

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/oplog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestFieldLayoutIsStable(t *testing.T) {
	b, err := oplog.Marshal(&oplog.Record{
		ID:         "a",
		Sequence:   1,
		Operation:  oplog.KindCreate,
		Collection: "c",
	})
	require.NoError(t, err)
	// 15:varint=1, 1:"a", 2:varint=1, 3:"create", 4:"c"
	assert.Equal(t, "7801"+"0a0161"+"1001"+"1a06637265617465"+"220163", hex.EncodeToString(b))
}

func TestRecordRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC)
	in := &oplog.Record{
		ID:         "0190f0e2-7c1a-7000-8000-000000000001",
		Sequence:   42,
		Operation:  oplog.KindUpdate,
		Collection: "entity",
		Identifier: "42",
		Data: map[string]any{
			"name":  "X",
			"count": 3,
			"tags":  []string{"a", "b"},
			"geo":   map[string]any{"lat": 1.5},
		},
		OccurredAt: at,
	}

	b, err := oplog.Marshal(in)
	require.NoError(t, err)
	out, err := oplog.Unmarshal(b)
	require.NoError(t, err)

	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Sequence, out.Sequence)
	assert.Equal(t, oplog.KindUpdate, out.Operation)
	assert.Equal(t, in.Collection, out.Collection)
	assert.Equal(t, in.Identifier, out.Identifier)
	assert.True(t, at.Equal(out.OccurredAt))
	assert.Equal(t, map[string]any{
		"name":  "X",
		"count": float64(3),
		"tags":  []any{"a", "b"},
		"geo":   map[string]any{"lat": 1.5},
	}, out.Data)
}

func TestMarshalIsDeterministic(t *testing.T) {
	rec := &oplog.Record{
		ID:        "r",
		Operation: oplog.KindCreate,
		Data:      map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": 1, "y": 2}},
	}
	first, err := oplog.Marshal(rec)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := oplog.Marshal(rec)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	b, err := oplog.Marshal(&oplog.Record{ID: "r", Operation: oplog.KindDelete, Collection: "event", Identifier: "7"})
	require.NoError(t, err)

	// a newer producer added fields 9 and 10
	b = protowire.AppendTag(b, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, 99)
	b = protowire.AppendTag(b, 10, protowire.BytesType)
	b = protowire.AppendString(b, "ignored")

	out, err := oplog.Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, oplog.KindDelete, out.Operation)
	assert.Equal(t, "7", out.Identifier)
}

func TestUnmarshalRejects(t *testing.T) {
	valid, err := oplog.Marshal(&oplog.Record{ID: "r", Operation: oplog.KindCreate, Collection: "event"})
	require.NoError(t, err)

	t.Run("other version", func(t *testing.T) {
		var b []byte
		b = protowire.AppendTag(b, 15, protowire.VarintType)
		b = protowire.AppendVarint(b, 2)
		b = append(b, valid[2:]...)
		_, err := oplog.Unmarshal(b)
		assert.True(t, blame.IsCode(err, blame.ErrorRecordVersion))
	})

	t.Run("missing version", func(t *testing.T) {
		_, err := oplog.Unmarshal(valid[2:])
		assert.True(t, blame.IsCode(err, blame.ErrorRecordVersion))
	})

	t.Run("unknown operation", func(t *testing.T) {
		var b []byte
		b = protowire.AppendTag(b, 15, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, "upsert")
		_, err := oplog.Unmarshal(b)
		assert.True(t, blame.IsCode(err, blame.ErrorUnknownOperation))
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := oplog.Unmarshal(valid[:len(valid)-3])
		assert.True(t, blame.IsCode(err, blame.ErrorRecordMalformed))
	})
}

func TestParseKind(t *testing.T) {
	for _, k := range []oplog.Kind{oplog.KindCreate, oplog.KindUpdate, oplog.KindDelete, oplog.KindRelationAdd, oplog.KindRelationRemove} {
		parsed, err := oplog.ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := oplog.ParseKind("merge")
	assert.True(t, blame.IsCode(err, blame.ErrorUnknownOperation))

	_, err = oplog.Marshal(&oplog.Record{ID: "r", Operation: oplog.Kind(42)})
	assert.True(t, blame.IsCode(err, blame.ErrorUnknownOperation))
}
