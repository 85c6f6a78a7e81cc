package memstore

import (
	"github.com/railops/fleetcrisis/dataobjects"
)

// state holds copies of every entity. Stored values are never modified in place:
// writes replace them with fresh copies, reads return copies
type state struct {
	trains       map[string]dataobjects.Train
	certificates map[string]dataobjects.FitnessCertificate
	jobCards     map[string]dataobjects.JobCard
	stabling     []dataobjects.StablingPosition
	logs         map[string]dataobjects.EmergencyLog
	plans        map[string]dataobjects.EmergencyPlan
	crises       map[string]dataobjects.CrisisState
	assignments  map[string]dataobjects.RouteAssignment
	adjustments  map[string]dataobjects.FrequencyAdjustment
}

func newState() *state {
	return &state{
		trains:       make(map[string]dataobjects.Train),
		certificates: make(map[string]dataobjects.FitnessCertificate),
		jobCards:     make(map[string]dataobjects.JobCard),
		logs:         make(map[string]dataobjects.EmergencyLog),
		plans:        make(map[string]dataobjects.EmergencyPlan),
		crises:       make(map[string]dataobjects.CrisisState),
		assignments:  make(map[string]dataobjects.RouteAssignment),
		adjustments:  make(map[string]dataobjects.FrequencyAdjustment),
	}
}

func (st *state) clone() *state {
	c := &state{
		trains:       make(map[string]dataobjects.Train, len(st.trains)),
		certificates: make(map[string]dataobjects.FitnessCertificate, len(st.certificates)),
		jobCards:     make(map[string]dataobjects.JobCard, len(st.jobCards)),
		stabling:     append([]dataobjects.StablingPosition(nil), st.stabling...),
		logs:         make(map[string]dataobjects.EmergencyLog, len(st.logs)),
		plans:        make(map[string]dataobjects.EmergencyPlan, len(st.plans)),
		crises:       make(map[string]dataobjects.CrisisState, len(st.crises)),
		assignments:  make(map[string]dataobjects.RouteAssignment, len(st.assignments)),
		adjustments:  make(map[string]dataobjects.FrequencyAdjustment, len(st.adjustments)),
	}
	for k, v := range st.trains {
		c.trains[k] = v
	}
	for k, v := range st.certificates {
		c.certificates[k] = v
	}
	for k, v := range st.jobCards {
		c.jobCards[k] = v
	}
	for k, v := range st.logs {
		c.logs[k] = v
	}
	for k, v := range st.plans {
		c.plans[k] = v
	}
	for k, v := range st.crises {
		c.crises[k] = v
	}
	for k, v := range st.assignments {
		c.assignments[k] = v
	}
	for k, v := range st.adjustments {
		c.adjustments[k] = v
	}
	return c
}

// activeAssignment returns the active assignment of the train, if any
func (st *state) activeAssignment(trainID string) (dataobjects.RouteAssignment, bool) {
	for _, a := range st.assignments {
		if a.TrainID == trainID && a.Status == dataobjects.AssignmentActive {
			return a, true
		}
	}
	return dataobjects.RouteAssignment{}, false
}

func (st *state) activeCrisis() (dataobjects.CrisisState, bool) {
	for _, c := range st.crises {
		if c.Status == dataobjects.CrisisActive {
			return c, true
		}
	}
	return dataobjects.CrisisState{}, false
}

// train returns a copy of the train with its current route filled in
func (st *state) train(id string) (*dataobjects.Train, bool) {
	t, ok := st.trains[id]
	if !ok {
		return nil, false
	}
	if a, ok := st.activeAssignment(id); ok {
		t.CurrentRoute = a.RouteID
	} else {
		t.CurrentRoute = ""
	}
	return &t, true
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

func copyPlan(p dataobjects.EmergencyPlan) *dataobjects.EmergencyPlan {
	p.Reasoning = copyStrings(p.Reasoning)
	p.Steps = append(dataobjects.ExecutionSteps(nil), p.Steps...)
	fallbacks := make(dataobjects.FallbackOptions, len(p.Fallbacks))
	for i, f := range p.Fallbacks {
		f.Reasons = copyStrings(f.Reasons)
		fallbacks[i] = f
	}
	p.Fallbacks = fallbacks
	return &p
}

func copyCrisis(c dataobjects.CrisisState) *dataobjects.CrisisState {
	c.TriggeringTrains = copyStrings(c.TriggeringTrains)
	actions := make(dataobjects.CrisisActions, len(c.Actions))
	for i, a := range c.Actions {
		a.TrainIDs = copyStrings(a.TrainIDs)
		a.Routes = copyStrings(a.Routes)
		actions[i] = a
	}
	c.Actions = actions
	return &c
}
