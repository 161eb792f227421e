// Package intervention implements the ordered deployment of timed and
// continuous interventions acting on per-host transmission state, human
// state, and the EIR engines (spec.md section 4.13).
package intervention

import (
	"bytes"
	"encoding/gob"
	"sort"

	"github.com/pkg/errors"

	"github.com/kentwait/malariasim/internal/human"
	"github.com/segmentio/ksuid"
)

// ComponentType enumerates the intervention component kinds of spec.md
// section 4.13. Numeric order is the primary key of the stable
// (component-type, component-id) deployment ordering of spec.md
// section 4.13/5.
type ComponentType int

const (
	CaseManagementChange ComponentType = iota
	EIRChange
	VaccinePEV
	VaccineBSV
	VaccineTBV
	ITN
	IRS
	GVI
	MDA
	Larviciding
	ImportedInfections
	CohortRecruitment
	CaseManagementDispatcher
)

// Timing selects whether a deployment fires once at a fixed step/date
// (Timed) or for each human as their age crosses a target (Continuous).
type Timing int

const (
	Timed Timing = iota
	Continuous
)

// Deployment is one configured intervention deployment.
type Deployment struct {
	ID            ksuid.KSUID
	ComponentType ComponentType
	ComponentID   int
	Timing        Timing

	// FireStep is the absolute step a Timed deployment fires at.
	FireStep int

	// TargetAgeSteps is the age (in steps) a Continuous deployment fires
	// at for each human, the first step the human's age is >= this value
	// (spec.md's ADDED supplement to section 4.13).
	TargetAgeSteps int

	// Apply is invoked once per human per firing, for Continuous and Timed
	// deployments alike; only human-agnostic component types (EIRChange,
	// Larviciding) get a single call with h == nil.
	Apply func(h *human.Human, step int)

	// CohortRecruit, if non-nil, marks humans as recruited into the named
	// cohort on firing instead of mutating transmission/pathogenesis
	// state.
	CohortRecruit *int
}

// RemovalRule revokes a deployment's active membership for a human once a
// trigger condition is met (spec.md ADDED supplement to section 4.13:
// first bout / first infection / first treatment / after N years).
type RemovalRuleKind int

const (
	RemoveOnFirstBout RemovalRuleKind = iota
	RemoveOnFirstInfection
	RemoveOnFirstTreatment
	RemoveAfterYears
)

// RemovalRule ties a removal trigger to the component it revokes.
type RemovalRule struct {
	Kind          RemovalRuleKind
	ComponentID   int
	AfterSteps    int // for RemoveAfterYears, in steps
	Revoke        func(h *human.Human)
}

// Manager holds the scenario's deployments and removal rules, sorted at
// load time for stable dispatch.
type Manager struct {
	deployments []*Deployment
	removalRules []*RemovalRule

	// recruited tracks cohort membership: cohortID -> set of human hid.
	recruited map[int]map[int]bool
}

// NewManager sorts deployments by (ComponentType, ComponentID) per
// spec.md section 4.13/5 ("not XML order") and returns a Manager.
func NewManager(deployments []*Deployment, rules []*RemovalRule) *Manager {
	sorted := append([]*Deployment(nil), deployments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ComponentType != sorted[j].ComponentType {
			return sorted[i].ComponentType < sorted[j].ComponentType
		}
		return sorted[i].ComponentID < sorted[j].ComponentID
	})
	return &Manager{deployments: sorted, removalRules: rules, recruited: make(map[int]map[int]bool)}
}

// DispatchTimed applies every Timed deployment whose FireStep equals
// step, in the Manager's stable sort order, to every human in pop, unless
// Apply targets a human-agnostic effect (Apply called once with h=nil).
func (m *Manager) DispatchTimed(step int, humans []*human.Human) {
	for _, d := range m.deployments {
		if d.Timing != Timed || d.FireStep != step {
			continue
		}
		if d.Apply == nil {
			continue
		}
		if humanAgnostic(d) {
			d.Apply(nil, step)
			continue
		}
		for _, h := range humans {
			d.Apply(h, step)
			h.RecordDeployment(d.ComponentID, step)
			m.recruit(d, h)
		}
	}
}

// DispatchContinuous applies every Continuous deployment to h if h's age
// has just reached (or passed, on the step it is first observed) the
// deployment's TargetAgeSteps, and it has not already fired for h
// (spec.md ADDED supplement: "the first step its age... is >= target, and
// never again").
func (m *Manager) DispatchContinuous(h *human.Human, step int) {
	age := h.AgeSteps(step)
	for _, d := range m.deployments {
		if d.Timing != Continuous {
			continue
		}
		if age < d.TargetAgeSteps {
			continue
		}
		if _, already := h.LastDeploymentStep(d.ComponentID); already {
			continue
		}
		if d.Apply != nil {
			d.Apply(h, step)
		}
		h.RecordDeployment(d.ComponentID, step)
		m.recruit(d, h)
	}
}

func humanAgnostic(d *Deployment) bool {
	switch d.ComponentType {
	case EIRChange, Larviciding:
		return true
	default:
		return false
	}
}

func (m *Manager) recruit(d *Deployment, h *human.Human) {
	if d.CohortRecruit == nil {
		return
	}
	cid := *d.CohortRecruit
	if m.recruited[cid] == nil {
		m.recruited[cid] = make(map[int]bool)
	}
	m.recruited[cid][h.HID()] = true
}

// InCohort reports whether human hid is a member of cohort cid.
func (m *Manager) InCohort(cid, hid int) bool {
	return m.recruited[cid] != nil && m.recruited[cid][hid]
}

// ApplyRemovalRules evaluates every RemovalRule against h's current event
// state and revokes the targeted component's effect if triggered. The
// caller supplies which triggers fired for h this step.
func (m *Manager) ApplyRemovalRules(h *human.Human, birthStep, step int, firstBout, firstInfection, firstTreatment bool) {
	for _, rule := range m.removalRules {
		var trigger bool
		switch rule.Kind {
		case RemoveOnFirstBout:
			trigger = firstBout
		case RemoveOnFirstInfection:
			trigger = firstInfection
		case RemoveOnFirstTreatment:
			trigger = firstTreatment
		case RemoveAfterYears:
			trigger = step-birthStep >= rule.AfterSteps
		}
		if trigger && rule.Revoke != nil {
			rule.Revoke(h)
		}
	}
}

// MarshalBinary implements encoding.BinaryMarshaler for checkpointing.
// Deployments and removal rules carry func fields (Apply, Revoke) that
// cannot be gob-encoded; only cohort-recruitment membership, which is
// pure runtime state, is checkpointed here. On restore, the caller
// reconstructs a Manager from the scenario's deployments/rules and then
// applies UnmarshalBinary to restore recruited membership onto it.
func (m *Manager) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m.recruited); err != nil {
		return nil, errors.Wrap(err, "intervention: encode recruited")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for checkpoint
// restore.
func (m *Manager) UnmarshalBinary(data []byte) error {
	var recruited map[int]map[int]bool
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&recruited); err != nil {
		return errors.Wrap(err, "intervention: decode recruited")
	}
	m.recruited = recruited
	return nil
}
