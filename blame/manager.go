package blame

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/helpers"
	"github.com/abhissng/conduit/utils/types"
)

//go:embed error_definition.json
var embeddedBlameData []byte

// BlameDefinition represents a blame definition.
type BlameDefinition struct {
	ReasonCode   string `json:"ReasonCode"`
	Code         string `json:"Code"`
	Message      string `json:"Message"`
	Description  string `json:"Description"`
	Component    string `json:"Component"`
	ResponseType string `json:"ResponseType"`
}

// BlameManager resolves error codes to their registered definitions.
type BlameManager struct {
	mu          sync.RWMutex
	definitions map[types.ErrorCode]*Error
}

var localBlameManager = loadLocalBlameManager()

func loadLocalBlameManager() *BlameManager {
	bm := &BlameManager{definitions: map[types.ErrorCode]*Error{}}

	var defs []BlameDefinition
	if err := json.Unmarshal(embeddedBlameData, &defs); err != nil {
		helpers.Println(constant.ERROR, "Error initialising local blame definitions: ", err)
		return bm
	}
	bm.Register(defs...)
	return bm
}

// NewBlameManager returns a manager seeded with the library definitions plus defs.
func NewBlameManager(defs ...BlameDefinition) *BlameManager {
	bm := &BlameManager{definitions: map[types.ErrorCode]*Error{}}

	localBlameManager.mu.RLock()
	for code, def := range localBlameManager.definitions {
		bm.definitions[code] = def
	}
	localBlameManager.mu.RUnlock()

	bm.Register(defs...)
	return bm
}

// Register adds or replaces definitions.
func (bm *BlameManager) Register(defs ...BlameDefinition) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	for _, def := range defs {
		if helpers.IsEmpty(def.ReasonCode) {
			def.ReasonCode = generateReasonCode(ReasonCodeNameSpace, ReasonCodeBase+len(bm.definitions))
		}
		bm.definitions[types.ErrorCode(def.Code)] = &Error{
			reasonCode:   def.ReasonCode,
			errCode:      types.ErrorCode(def.Code),
			component:    types.ComponentErrorType(def.Component),
			responseType: types.ResponseErrorType(def.ResponseType),
			message:      def.Message,
			description:  def.Description,
		}
	}
}

// FetchBlameForError returns a fresh error for errorCode with opts applied.
// Unregistered codes yield a basic error carrying just the code.
func (bm *BlameManager) FetchBlameForError(errorCode types.ErrorCode, opts ...BlameOption) *Error {
	bm.mu.RLock()
	def, ok := bm.definitions[errorCode]
	bm.mu.RUnlock()

	var e *Error
	if ok {
		e = def.clone()
	} else {
		e = &Error{reasonCode: errorCode.String(), errCode: errorCode, fields: map[string]any{}}
	}
	e.source = findSource(3)

	options := NewBlameOptions()
	for _, opt := range opts {
		opt(options)
	}
	_ = e.WithFields(options.Fields)
	for _, cause := range options.Causes {
		_ = e.WithCause(cause)
	}
	return e
}

// Register adds definitions to the process-wide manager used by the constructors in this package.
func Register(defs ...BlameDefinition) {
	localBlameManager.Register(defs...)
}

// Fetch builds an error from the process-wide manager.
func Fetch(errorCode types.ErrorCode, opts ...BlameOption) *Error {
	return localBlameManager.FetchBlameForError(errorCode, opts...)
}

// BlameOption defines an option for modifying Blame creation.
type BlameOption func(*BlameOptions)

// BlameOptions holds options for creating Blame instances.
type BlameOptions struct {
	Fields map[string]any
	Causes []error
}

// NewBlameOptions creates a new BlameOptions instance.
func NewBlameOptions() *BlameOptions {
	return &BlameOptions{
		Fields: make(map[string]any),
	}
}

// WithCauses attaches underlying errors.
func WithCauses(causes ...error) BlameOption {
	return func(o *BlameOptions) {
		o.Causes = append(o.Causes, causes...)
	}
}

// WithFields attaches structured fields, also used to fill message placeholders.
func WithFields(fields map[string]any) BlameOption {
	return func(o *BlameOptions) {
		for k, v := range fields {
			o.Fields[k] = v
		}
	}
}

func generateReasonCode(namespace string, code int) string {
	return fmt.Sprintf("%s-%d", strings.ToUpper(namespace), code)
}
