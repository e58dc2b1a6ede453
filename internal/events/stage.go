package events

// Stage identifies one of the three subtitle tools.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTranslate Stage = "translate"
	StageSync      Stage = "sync"
)

// Stages returns every stage in pipeline order.
func Stages() []Stage {
	return []Stage{StageExtract, StageTranslate, StageSync}
}

// ParseStage maps a wire value to a Stage.
func ParseStage(value string) (Stage, bool) {
	stage := Stage(value)
	return stage, stage.Valid()
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageExtract, StageTranslate, StageSync:
		return true
	default:
		return false
	}
}

// Index returns the position of s in pipeline order, or -1.
func (s Stage) Index() int {
	for i, candidate := range Stages() {
		if candidate == s {
			return i
		}
	}
	return -1
}

func (s Stage) String() string { return string(s) }

// Kind classifies an event.
type Kind string

const (
	KindInfo     Kind = "info"
	KindProgress Kind = "progress"
	KindWarning  Kind = "warning"
	KindError    Kind = "error"
	KindResult   Kind = "result"
)

// Kinds returns every event kind.
func Kinds() []Kind {
	return []Kind{KindInfo, KindProgress, KindWarning, KindError, KindResult}
}

// ParseKind maps a wire value to a Kind.
func ParseKind(value string) (Kind, bool) {
	kind := Kind(value)
	return kind, kind.Valid()
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindInfo, KindProgress, KindWarning, KindError, KindResult:
		return true
	default:
		return false
	}
}

func (k Kind) String() string { return string(k) }
