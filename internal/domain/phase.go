package domain

import (
	"encoding/json"
	"fmt"
)

// Phase - фаза жизненного цикла хаба. Закрытое множество значений,
// нулевое значение невалидно.
type Phase uint8

const (
	phaseUnknown Phase = iota
	PhaseConcept
	PhaseCommittedConcept
	PhasePublished
	PhaseActive
	PhaseRetirementConcept
	PhaseCommittedRetirementConcept
)

var phaseNames = map[Phase]string{
	PhaseConcept:                    "concept",
	PhaseCommittedConcept:           "committed_concept",
	PhasePublished:                  "published",
	PhaseActive:                     "active",
	PhaseRetirementConcept:          "retirement_concept",
	PhaseCommittedRetirementConcept: "committed_retirement_concept",
}

// AllPhases возвращает все фазы в порядке жизненного цикла
func AllPhases() []Phase {
	return []Phase{
		PhaseConcept,
		PhaseCommittedConcept,
		PhasePublished,
		PhaseActive,
		PhaseRetirementConcept,
		PhaseCommittedRetirementConcept,
	}
}

// ParsePhase разбирает строковое представление фазы
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return phaseUnknown, fmt.Errorf("unknown phase %q", s)
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// Valid проверяет, что фаза принадлежит закрытому множеству
func (p Phase) Valid() bool {
	_, ok := phaseNames[p]
	return ok
}

// IsLive - published и active единственные операционно видимые фазы
func (p Phase) IsLive() bool {
	return p == PhasePublished || p == PhaseActive
}

// IsDraft - любая не-live фаза
func (p Phase) IsDraft() bool {
	return p.Valid() && !p.IsLive()
}

// CommitTarget возвращает фазу после Commit
func (p Phase) CommitTarget() (Phase, bool) {
	switch p {
	case PhaseConcept:
		return PhaseCommittedConcept, true
	case PhaseRetirementConcept:
		return PhaseCommittedRetirementConcept, true
	}
	return phaseUnknown, false
}

// RevertTarget возвращает фазу после возврата в концепт
func (p Phase) RevertTarget() (Phase, bool) {
	switch p {
	case PhaseCommittedConcept:
		return PhaseConcept, true
	case PhaseCommittedRetirementConcept:
		return PhaseRetirementConcept, true
	}
	return phaseUnknown, false
}

func (p Phase) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid phase %d", uint8(p))
	}
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("phase must be a string: %w", err)
	}
	parsed, err := ParsePhase(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Scan позволяет читать фазу напрямую из колонки БД
func (p *Phase) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("unsupported phase column type %T", src)
	}
	parsed, err := ParsePhase(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// GeographyType - тип зоны
type GeographyType string

const (
	GeographyTypeStop       GeographyType = "stop"
	GeographyTypeNoParking  GeographyType = "no_parking"
	GeographyTypeMonitoring GeographyType = "monitoring"
)

// ParseGeographyType разбирает тип зоны
func ParseGeographyType(s string) (GeographyType, error) {
	switch t := GeographyType(s); t {
	case GeographyTypeStop, GeographyTypeNoParking, GeographyTypeMonitoring:
		return t, nil
	}
	return "", fmt.Errorf("unknown geography type %q", s)
}

// InWorkflow - monitoring зоны никогда не участвуют в commit/retirement flow
func (t GeographyType) InWorkflow() bool {
	return t != GeographyTypeMonitoring
}
