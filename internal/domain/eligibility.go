package domain

import "fmt"

// Action - действие над выбором
type Action string

const (
	ActionCommit            Action = "commit"
	ActionRevert            Action = "revert"
	ActionDeriveNewConcept  Action = "derive_new_concept"
	ActionProposeRetirement Action = "propose_retirement"
	ActionAddPolygonPiece   Action = "add_polygon_piece"
	ActionSaveDrawing       Action = "save_drawing"
)

// ParseAction разбирает имя действия
func ParseAction(s string) (Action, error) {
	for _, r := range eligibilityRules {
		if string(r.action) == s {
			return r.action, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// RequiresConfirmation - действия, которые оператор подтверждает явно
func (a Action) RequiresConfirmation() bool {
	return a == ActionRevert || a == ActionProposeRetirement
}

// ActionSet - результат оценки допустимых действий
type ActionSet struct {
	HasSelection           bool `json:"has_selection"`
	HasExactlyOneSelection bool `json:"has_exactly_one_selection"`
	Commit                 bool `json:"commit"`
	Revert                 bool `json:"revert"`
	DeriveNewConcept       bool `json:"derive_new_concept"`
	ProposeRetirement      bool `json:"propose_retirement"`
	AddPolygonPiece        bool `json:"add_polygon_piece"`
	SaveDrawing            bool `json:"save_drawing"`
}

// Allows проверяет допустимость конкретного действия
func (s ActionSet) Allows(a Action) bool {
	if f := s.field(a); f != nil {
		return *f
	}
	return false
}

// Actions возвращает список допустимых действий в порядке таблицы правил
func (s ActionSet) Actions() []Action {
	out := make([]Action, 0, len(eligibilityRules))
	for _, r := range eligibilityRules {
		if s.Allows(r.action) {
			out = append(out, r.action)
		}
	}
	return out
}

func (s *ActionSet) field(a Action) *bool {
	switch a {
	case ActionCommit:
		return &s.Commit
	case ActionRevert:
		return &s.Revert
	case ActionDeriveNewConcept:
		return &s.DeriveNewConcept
	case ActionProposeRetirement:
		return &s.ProposeRetirement
	case ActionAddPolygonPiece:
		return &s.AddPolygonPiece
	case ActionSaveDrawing:
		return &s.SaveDrawing
	}
	return nil
}

type selectionGate int

const (
	gateAny selectionGate = iota
	gateExactlyOne
	gateDrawing
)

type eligibilityRule struct {
	action            Action
	gate              selectionGate
	phases            func(activePhase Phase) []Phase
	excludeMonitoring bool
}

func fixedPhases(phases ...Phase) func(Phase) []Phase {
	return func(Phase) []Phase { return phases }
}

func commitPhases(activePhase Phase) []Phase {
	if activePhase == PhaseActive {
		return []Phase{PhaseConcept}
	}
	return []Phase{PhaseConcept, PhaseRetirementConcept}
}

var eligibilityRules = []eligibilityRule{
	{action: ActionCommit, gate: gateAny, phases: commitPhases, excludeMonitoring: true},
	{action: ActionRevert, gate: gateAny, phases: fixedPhases(PhaseCommittedConcept, PhaseCommittedRetirementConcept)},
	{action: ActionDeriveNewConcept, gate: gateExactlyOne, phases: fixedPhases(PhasePublished, PhaseActive)},
	{action: ActionProposeRetirement, gate: gateAny, phases: fixedPhases(PhasePublished, PhaseActive), excludeMonitoring: true},
	{action: ActionAddPolygonPiece, gate: gateDrawing},
	{action: ActionSaveDrawing, gate: gateDrawing},
}

// EligibleActions - чистая функция: (выбор, хабы, активная фаза workflow, число
// нарисованных фич) -> допустимые действия. Пакетные действия допустимы только
// если допустим каждый выбранный хаб.
func EligibleActions(sel Selection, hubs []Hub, activePhase Phase, drawnFeatures int) ActionSet {
	set := ActionSet{
		HasSelection:           sel.HasSelection(),
		HasExactlyOneSelection: sel.HasExactlyOne(),
	}

	index := IndexHubs(hubs)
	selected, complete := resolveSelection(sel, index)

	for _, rule := range eligibilityRules {
		var ok bool
		switch rule.gate {
		case gateDrawing:
			ok = drawingEligible(rule.action, sel, selected, drawnFeatures)
		case gateExactlyOne:
			ok = sel.HasExactlyOne() && complete && rule.matches(selected, activePhase)
		default:
			ok = !sel.IsNew() && len(selected) > 0 && complete && rule.matches(selected, activePhase)
		}
		*set.field(rule.action) = ok
	}

	return set
}

func (r eligibilityRule) matches(hubs []*Hub, activePhase Phase) bool {
	allowed := r.phases(activePhase)
	for _, h := range hubs {
		if r.excludeMonitoring && !h.GeographyType.InWorkflow() {
			return false
		}
		if !containsPhase(allowed, h.Phase) {
			return false
		}
	}
	return true
}

func drawingEligible(a Action, sel Selection, selected []*Hub, drawnFeatures int) bool {
	if drawnFeatures < 1 {
		return false
	}
	if a == ActionAddPolygonPiece {
		return true
	}
	// Сохранение: новая зона либо замена геометрии одного концепта
	if sel.IsNew() {
		return true
	}
	return sel.HasExactlyOne() && len(selected) == 1 && selected[0].Phase == PhaseConcept
}

// resolveSelection возвращает выбранные хабы; complete=false если часть id
// отсутствует в справочнике
func resolveSelection(sel Selection, index HubIndex) ([]*Hub, bool) {
	ids := sel.IDs()
	out := make([]*Hub, 0, len(ids))
	for _, id := range ids {
		h, ok := index[id]
		if !ok {
			return out, false
		}
		out = append(out, h)
	}
	return out, true
}

func containsPhase(phases []Phase, p Phase) bool {
	for _, candidate := range phases {
		if candidate == p {
			return true
		}
	}
	return false
}
