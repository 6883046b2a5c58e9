package container

// The persisted form. Definitions inside the assembly are referenced by
// their position in a flat table built in declaration order: types as
// returned by il.Assembly.AllTypes, then the fields and methods of each
// type in that order. Everything outside the assembly is referenced by
// scope and name.

const (
	// Magic starts every container.
	Magic = "WVC"

	// SchemaVersion is the version written by this package. Read rejects
	// any other version.
	SchemaVersion = 1
)

type fileDTO struct {
	Magic    string      `msgpack:"magic"`
	Version  int         `msgpack:"version"`
	Assembly assemblyDTO `msgpack:"assembly"`
	Symbols  []symbolDTO `msgpack:"symbols,omitempty"`
}

type assemblyDTO struct {
	Name       string         `msgpack:"name"`
	Version    string         `msgpack:"version"`
	Attributes []attributeDTO `msgpack:"attributes,omitempty"`
	Security   []securityDTO  `msgpack:"security,omitempty"`
	Modules    []moduleDTO    `msgpack:"modules"`
	Types      []typeDTO      `msgpack:"types"`
	Exported   []exportedDTO  `msgpack:"exported,omitempty"`
	Resources  []resourceDTO  `msgpack:"resources,omitempty"`
}

type moduleDTO struct {
	Name       string         `msgpack:"name"`
	Attributes []attributeDTO `msgpack:"attributes,omitempty"`
}

type exportedDTO struct {
	Module    int    `msgpack:"module"`
	Namespace string `msgpack:"namespace"`
	Name      string `msgpack:"name"`
	Scope     string `msgpack:"scope"`
}

type resourceDTO struct {
	Module int    `msgpack:"module"`
	Name   string `msgpack:"name"`
	Public bool   `msgpack:"public"`
	Data   []byte `msgpack:"data"`
}

// typeDTO is a type definition. Module is -1 for nested types, Outer is
// -1 for top-level ones.
type typeDTO struct {
	Module     int               `msgpack:"module"`
	Outer      int               `msgpack:"outer"`
	Namespace  string            `msgpack:"namespace"`
	Name       string            `msgpack:"name"`
	Flags      uint32            `msgpack:"flags"`
	Base       *typeRefDTO       `msgpack:"base,omitempty"`
	Interfaces []typeRefDTO      `msgpack:"interfaces,omitempty"`
	Generics   []genericParamDTO `msgpack:"generics,omitempty"`
	Fields     []fieldDTO        `msgpack:"fields,omitempty"`
	Methods    []methodDTO       `msgpack:"methods,omitempty"`
	Properties []propertyDTO     `msgpack:"properties,omitempty"`
	Events     []eventDTO        `msgpack:"events,omitempty"`
	Attributes []attributeDTO    `msgpack:"attributes,omitempty"`
	Security   []securityDTO     `msgpack:"security,omitempty"`
}

type genericParamDTO struct {
	Name        string         `msgpack:"name"`
	Flags       uint16         `msgpack:"flags"`
	Constraints []typeRefDTO   `msgpack:"constraints,omitempty"`
	Attributes  []attributeDTO `msgpack:"attributes,omitempty"`
}

type fieldDTO struct {
	Name       string         `msgpack:"name"`
	Flags      uint16         `msgpack:"flags"`
	Type       *typeRefDTO    `msgpack:"type"`
	Constant   *valueDTO      `msgpack:"constant,omitempty"`
	Attributes []attributeDTO `msgpack:"attributes,omitempty"`
}

type methodDTO struct {
	Name             string            `msgpack:"name"`
	Flags            uint32            `msgpack:"flags"`
	Return           *typeRefDTO       `msgpack:"return"`
	ReturnAttributes []attributeDTO    `msgpack:"return_attributes,omitempty"`
	Params           []paramDTO        `msgpack:"params,omitempty"`
	Generics         []genericParamDTO `msgpack:"generics,omitempty"`
	Overrides        []methodRefDTO    `msgpack:"overrides,omitempty"`
	Body             *bodyDTO          `msgpack:"body,omitempty"`
	Attributes       []attributeDTO    `msgpack:"attributes,omitempty"`
	Security         []securityDTO     `msgpack:"security,omitempty"`
}

type paramDTO struct {
	Name       string         `msgpack:"name"`
	Flags      uint16         `msgpack:"flags"`
	Type       *typeRefDTO    `msgpack:"type"`
	Attributes []attributeDTO `msgpack:"attributes,omitempty"`
}

type propertyDTO struct {
	Name       string         `msgpack:"name"`
	Type       *typeRefDTO    `msgpack:"type"`
	Getter     int            `msgpack:"getter"`
	Setter     int            `msgpack:"setter"`
	Attributes []attributeDTO `msgpack:"attributes,omitempty"`
}

type eventDTO struct {
	Name       string         `msgpack:"name"`
	Type       *typeRefDTO    `msgpack:"type"`
	Add        int            `msgpack:"add"`
	Remove     int            `msgpack:"remove"`
	Invoke     int            `msgpack:"invoke"`
	Attributes []attributeDTO `msgpack:"attributes,omitempty"`
}

type bodyDTO struct {
	MaxStack     int              `msgpack:"max_stack"`
	InitLocals   bool             `msgpack:"init_locals"`
	Variables    []variableDTO    `msgpack:"variables,omitempty"`
	Instructions []instructionDTO `msgpack:"instructions"`
	Handlers     []handlerDTO     `msgpack:"handlers,omitempty"`
}

type variableDTO struct {
	Name   string      `msgpack:"name,omitempty"`
	Type   *typeRefDTO `msgpack:"type"`
	Pinned bool        `msgpack:"pinned,omitempty"`
}

type instructionDTO struct {
	OpCode  uint16      `msgpack:"op"`
	Operand *operandDTO `msgpack:"operand,omitempty"`
}

type handlerDTO struct {
	Type         int         `msgpack:"type"`
	TryStart     int         `msgpack:"try_start"`
	TryEnd       int         `msgpack:"try_end"`
	HandlerStart int         `msgpack:"handler_start"`
	HandlerEnd   int         `msgpack:"handler_end"`
	FilterStart  int         `msgpack:"filter_start"`
	CatchType    *typeRefDTO `msgpack:"catch_type,omitempty"`
}

// symbolDTO holds the sequence points of one method body.
type symbolDTO struct {
	Method int                `msgpack:"method"`
	Points []sequencePointDTO `msgpack:"points"`
}

type sequencePointDTO struct {
	Instruction int    `msgpack:"instruction"`
	Document    string `msgpack:"document"`
	StartLine   int    `msgpack:"start_line"`
	StartColumn int    `msgpack:"start_column"`
	EndLine     int    `msgpack:"end_line"`
	EndColumn   int    `msgpack:"end_column"`
}

type typeRefKind uint8

const (
	typeDefinition typeRefKind = iota + 1
	typeReference
	typeArray
	typeByRef
	typePointer
	typeGenericInstance
	typeGenericParam
	methodGenericParam
)

// typeRefDTO is a type signature. Generic parameters declared outside the
// assembly carry Index -1 and are read back detached, keeping only their
// name and position.
type typeRefDTO struct {
	Kind      typeRefKind  `msgpack:"kind"`
	Index     int          `msgpack:"index,omitempty"`
	Position  int          `msgpack:"position,omitempty"`
	Scope     string       `msgpack:"scope,omitempty"`
	Namespace string       `msgpack:"namespace,omitempty"`
	Name      string       `msgpack:"name,omitempty"`
	Outer     *typeRefDTO  `msgpack:"outer,omitempty"`
	ValueType bool         `msgpack:"value_type,omitempty"`
	Element   *typeRefDTO  `msgpack:"element,omitempty"`
	Rank      int          `msgpack:"rank,omitempty"`
	Arguments []typeRefDTO `msgpack:"arguments,omitempty"`
}

type memberKind uint8

const (
	memberDefinition memberKind = iota + 1
	memberReference
	memberGenericInstance
)

type methodRefDTO struct {
	Kind          memberKind    `msgpack:"kind"`
	Index         int           `msgpack:"index,omitempty"`
	DeclaringType *typeRefDTO   `msgpack:"declaring_type,omitempty"`
	Name          string        `msgpack:"name,omitempty"`
	Return        *typeRefDTO   `msgpack:"return,omitempty"`
	Params        []typeRefDTO  `msgpack:"params,omitempty"`
	This          bool          `msgpack:"this,omitempty"`
	Arity         int           `msgpack:"arity,omitempty"`
	Method        *methodRefDTO `msgpack:"method,omitempty"`
	Arguments     []typeRefDTO  `msgpack:"arguments,omitempty"`
}

type fieldRefDTO struct {
	Kind          memberKind  `msgpack:"kind"`
	Index         int         `msgpack:"index,omitempty"`
	DeclaringType *typeRefDTO `msgpack:"declaring_type,omitempty"`
	Name          string      `msgpack:"name,omitempty"`
	Type          *typeRefDTO `msgpack:"type,omitempty"`
}

type operandKind uint8

const (
	operandNone operandKind = iota
	operandType
	operandField
	operandMethod
	operandBranch
	operandSwitch
	operandParam
	operandVar
	operandUint8
	operandInt8
	operandFloat32
	operandFloat64
	operandInt32
	operandInt64
	operandString
)

type operandDTO struct {
	Kind    operandKind   `msgpack:"kind"`
	Type    *typeRefDTO   `msgpack:"type,omitempty"`
	Field   *fieldRefDTO  `msgpack:"field,omitempty"`
	Method  *methodRefDTO `msgpack:"method,omitempty"`
	Targets []int         `msgpack:"targets,omitempty"`
	Index   int           `msgpack:"index,omitempty"`
	Int     int64         `msgpack:"int,omitempty"`
	Float   float64       `msgpack:"float,omitempty"`
	String  string        `msgpack:"string,omitempty"`
}

type valueKind uint8

const (
	valueNull valueKind = iota
	valueBool
	valueInt8
	valueInt16
	valueInt32
	valueInt64
	valueUint8
	valueUint16
	valueUint32
	valueUint64
	valueFloat32
	valueFloat64
	valueString
	valueType
	valueArray
)

// valueDTO is a constant or attribute argument value.
type valueDTO struct {
	Kind     valueKind     `msgpack:"kind"`
	Bool     bool          `msgpack:"bool,omitempty"`
	Int      int64         `msgpack:"int,omitempty"`
	Uint     uint64        `msgpack:"uint,omitempty"`
	Float    float64       `msgpack:"float,omitempty"`
	String   string        `msgpack:"string,omitempty"`
	Type     *typeRefDTO   `msgpack:"type,omitempty"`
	Elements []argumentDTO `msgpack:"elements,omitempty"`
}

type argumentDTO struct {
	Type  *typeRefDTO `msgpack:"type,omitempty"`
	Value valueDTO    `msgpack:"value"`
}

type namedArgumentDTO struct {
	Name     string      `msgpack:"name"`
	Argument argumentDTO `msgpack:"argument"`
}

type attributeDTO struct {
	Constructor methodRefDTO       `msgpack:"constructor"`
	Arguments   []argumentDTO      `msgpack:"arguments,omitempty"`
	Fields      []namedArgumentDTO `msgpack:"fields,omitempty"`
	Properties  []namedArgumentDTO `msgpack:"properties,omitempty"`
}

type securityDTO struct {
	Action     uint16                 `msgpack:"action"`
	Attributes []securityAttributeDTO `msgpack:"attributes,omitempty"`
}

type securityAttributeDTO struct {
	Type       *typeRefDTO        `msgpack:"type"`
	Properties []namedArgumentDTO `msgpack:"properties,omitempty"`
}
