package oplog

import "github.com/abhissng/conduit/blame"

// Kind enumerates the operations a Record can describe. The set is closed:
// an operation name outside it is a producer/consumer mismatch.
type Kind uint8

const (
	KindCreate Kind = iota + 1
	KindUpdate
	KindDelete
	KindRelationAdd
	KindRelationRemove
)

var kindNames = map[Kind]string{
	KindCreate:         "create",
	KindUpdate:         "update",
	KindDelete:         "delete",
	KindRelationAdd:    "relation-add",
	KindRelationRemove: "relation-remove",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind maps a wire name back to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, blame.UnknownOperation(name)
}

// MarshalText lets Kind travel as its name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, blame.UnknownOperation(k.String())
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
