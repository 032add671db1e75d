package snapshot

// FolderClass is the class produced by plain directories. It is the weakest
// class signal: inference and explicit class names both override it.
const FolderClass = "Folder"

// PathKind describes a node's path reference, if any.
type PathKind int

const (
	PathNone PathKind = iota
	PathRequired
	PathOptional
)

// String returns the string representation of the PathKind.
func (k PathKind) String() string {
	switch k {
	case PathRequired:
		return "required"
	case PathOptional:
		return "optional"
	default:
		return "none"
	}
}

// ClassCandidates are the inputs to DecideClassName. An empty string means
// the candidate is absent.
type ClassCandidates struct {
	Explicit string
	FromPath string
	Inferred string
	PathKind PathKind
}

// Outcome tags a ClassDecision.
type Outcome int

const (
	OutcomeResolved Outcome = iota
	OutcomeNoInstance
	OutcomeConflict
	OutcomeUnresolvedPath
	OutcomeMissingInformation
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeNoInstance:
		return "no-instance"
	case OutcomeConflict:
		return "conflict"
	case OutcomeUnresolvedPath:
		return "unresolved-path"
	case OutcomeMissingInformation:
		return "missing-information"
	default:
		return "unknown"
	}
}

// ClassDecision is the result of DecideClassName. ClassName is set only for
// OutcomeResolved; Explicit and FromPath echo the candidates for messages.
type ClassDecision struct {
	Outcome   Outcome
	ClassName string
	Explicit  string
	FromPath  string
}

// Presence bits for the candidate switch.
const (
	hasInferred = 1 << iota
	hasFromPath
	hasExplicit
)

// DecideClassName reconciles the class name candidates of one node.
func DecideClassName(c ClassCandidates) ClassDecision {
	d := ClassDecision{Explicit: c.Explicit, FromPath: c.FromPath}

	var present int
	if c.Explicit != "" {
		present |= hasExplicit
	}
	if c.FromPath != "" {
		present |= hasFromPath
	}
	if c.Inferred != "" {
		present |= hasInferred
	}

	switch present {
	case hasExplicit, hasExplicit | hasInferred:
		d.Outcome, d.ClassName = OutcomeResolved, c.Explicit

	case hasFromPath:
		d.Outcome, d.ClassName = OutcomeResolved, c.FromPath

	case hasInferred:
		d.Outcome, d.ClassName = OutcomeResolved, c.Inferred

	case hasFromPath | hasInferred:
		d.Outcome, d.ClassName = OutcomeResolved, c.FromPath
		if c.FromPath == FolderClass {
			d.ClassName = c.Inferred
		}

	case hasExplicit | hasFromPath, hasExplicit | hasFromPath | hasInferred:
		if c.FromPath == FolderClass {
			d.Outcome, d.ClassName = OutcomeResolved, c.Explicit
		} else {
			d.Outcome = OutcomeConflict
		}

	case 0:
		switch c.PathKind {
		case PathOptional:
			d.Outcome = OutcomeNoInstance
		case PathRequired:
			d.Outcome = OutcomeUnresolvedPath
		default:
			d.Outcome = OutcomeMissingInformation
		}
	}

	return d
}
