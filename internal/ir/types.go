package ir

import (
	"fmt"
	"slices"
	"strings"
)

// AttributeType selects the value representation and equality semantics of
// an attribute.
type AttributeType string

const (
	AttrString     AttributeType = "STRING"
	AttrMultiLine  AttributeType = "MULTILINE"
	AttrLong       AttributeType = "LONG"
	AttrDate       AttributeType = "DATE"
	AttrBoolean    AttributeType = "BOOLEAN"
	AttrIdentity   AttributeType = "IDENTITY"
	AttrEnum       AttributeType = "ENUM"
	AttrMultiValue AttributeType = "MULTIVALUE"
	AttrUnknown    AttributeType = "UNKNOWN"
)

// AttributeTypes lists every valid AttributeType.
var AttributeTypes = []AttributeType{
	AttrString, AttrMultiLine, AttrLong, AttrDate, AttrBoolean,
	AttrIdentity, AttrEnum, AttrMultiValue, AttrUnknown,
}

// OrUnknown returns t, or AttrUnknown when t is unset.
func (t AttributeType) OrUnknown() AttributeType {
	if t == "" {
		return AttrUnknown
	}
	return t
}

// ResourceSide names one end of a route.
type ResourceSide string

const (
	SideSource ResourceSide = "SOURCE"
	SideTarget ResourceSide = "TARGET"
)

// ResourceSides lists every valid ResourceSide.
var ResourceSides = []ResourceSide{SideSource, SideTarget}

// PredicateType selects where a rule condition reads its subject value.
type PredicateType string

const (
	PredicateAttribute      PredicateType = "ATTRIBUTE"
	PredicateExchangeHeader PredicateType = "EXCHANGEHEADER"
	PredicateClass          PredicateType = "CLASS"
)

// PredicateTypes lists every valid PredicateType.
var PredicateTypes = []PredicateType{PredicateAttribute, PredicateExchangeHeader, PredicateClass}

// Operator is a rule condition operator.
type Operator string

const (
	OpExists           Operator = "EXISTS"
	OpNotExists        Operator = "NOTEXISTS"
	OpEquals           Operator = "EQUALS"
	OpEqualsIgnoreCase Operator = "EQUALSIGNORECASE"
	OpNotEquals        Operator = "NOTEQUALS"
	OpContains         Operator = "CONTAINS"
	OpNotContains      Operator = "NOTCONTAINS"
	OpTrue             Operator = "TRUE"
	OpFalse            Operator = "FALSE"
	OpEmpty            Operator = "EMPTY"
	OpNotEmpty         Operator = "NOTEMPTY"
	OpMatchRegex       Operator = "MATCHREGEX"
)

// Operators lists every valid Operator.
var Operators = []Operator{
	OpExists, OpNotExists, OpEquals, OpEqualsIgnoreCase, OpNotEquals,
	OpContains, OpNotContains, OpTrue, OpFalse, OpEmpty, OpNotEmpty, OpMatchRegex,
}

// ActionCommand is the kind of work an Action performs on an endpoint.
type ActionCommand string

const (
	CmdCreateArtifact  ActionCommand = "CREATEARTIFACT"
	CmdChangeState     ActionCommand = "CHANGESTATE"
	CmdModifyAttribute ActionCommand = "MODIFYATTRIBUTE"
	CmdAddComment      ActionCommand = "ADDCOMMENT"
	CmdAddLink         ActionCommand = "ADDLINK"
	CmdRemoveLink      ActionCommand = "REMOVELINK"

	// CmdTransfer and CmdUndefined are recognized in configuration but are
	// not supported by the action generator.
	CmdTransfer  ActionCommand = "TRANSFER"
	CmdUndefined ActionCommand = "UNDEFINED"
)

// ActionCommands lists every ActionCommand accepted in configuration.
var ActionCommands = []ActionCommand{
	CmdCreateArtifact, CmdChangeState, CmdModifyAttribute, CmdAddComment,
	CmdAddLink, CmdRemoveLink, CmdTransfer, CmdUndefined,
}

// State is the lifecycle state of an ArtifactRelationship.
type State string

const (
	StateInitialized State = "INITIALIZED"
	StateActive      State = "ACTIVE"
	StateInactive    State = "INACTIVE"
	StateArchived    State = "ARCHIVED"
)

// States lists every valid State.
var States = []State{StateInitialized, StateActive, StateInactive, StateArchived}

// Status is the processing status of an ArtifactRelationship.
type Status string

const (
	StatusInitialized Status = "INITIALIZED"
	StatusQueued      Status = "QUEUED"
	StatusInProgress  Status = "INPROGRESS"
	StatusError       Status = "ERROR"
	StatusCompleted   Status = "COMPLETED"
)

// Statuses lists every valid Status.
var Statuses = []Status{StatusInitialized, StatusQueued, StatusInProgress, StatusError, StatusCompleted}

// SystemType tags the kind of external system behind an endpoint.
// The set is open; adapters register their own tags.
type SystemType string

// SystemSimpleEndpoint is the built-in reference system.
const SystemSimpleEndpoint SystemType = "SIMPLEEP"

// ArtifactType tags the kind of artifact within a system.
// The set is open; adapters register their own tags.
type ArtifactType string

const (
	ArtifactGeneric ArtifactType = "GENERIC"
	ArtifactSEIssue ArtifactType = "SEISSUE"
	ArtifactUnknown ArtifactType = "UNKNOWN"
)

// Trait names understood by the transform and engine packages.
const (
	TraitPattern      = "pattern"
	TraitClass        = "class"
	TraitMaxLen       = "maxlen"
	TraitRequired     = "required"
	TraitDefaultValue = "defaultValue"
	TraitCompose      = "compose"
	TraitGroup        = "group"
)

// ParseAttributeType parses an AttributeType case-insensitively.
func ParseAttributeType(s string) (AttributeType, error) {
	return parseEnum("attribute type", s, AttributeTypes)
}

// ParseResourceSide parses a ResourceSide case-insensitively.
func ParseResourceSide(s string) (ResourceSide, error) {
	return parseEnum("resource side", s, ResourceSides)
}

// ParsePredicateType parses a PredicateType case-insensitively.
func ParsePredicateType(s string) (PredicateType, error) {
	return parseEnum("predicate type", s, PredicateTypes)
}

// ParseOperator parses an Operator case-insensitively.
func ParseOperator(s string) (Operator, error) {
	return parseEnum("operator", s, Operators)
}

// ParseActionCommand parses an ActionCommand case-insensitively.
func ParseActionCommand(s string) (ActionCommand, error) {
	return parseEnum("action command", s, ActionCommands)
}

// ParseState parses a State case-insensitively.
func ParseState(s string) (State, error) {
	return parseEnum("state", s, States)
}

// ParseStatus parses a Status case-insensitively.
func ParseStatus(s string) (Status, error) {
	return parseEnum("status", s, Statuses)
}

func parseEnum[T ~string](kind, s string, valid []T) (T, error) {
	want := T(strings.ToUpper(strings.TrimSpace(s)))
	if slices.Contains(valid, want) {
		return want, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, s)
}
