package memstore

import (
	"sort"
	"time"

	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/thoas/go-funk"
)

// GetTrain returns the train with the given ID
func (s *Store) GetTrain(id string) (*dataobjects.Train, error) {
	var train *dataobjects.Train
	err := s.view(func(st *state) error {
		t, ok := st.train(id)
		if !ok {
			return notFound("train", id)
		}
		train = t
		return nil
	})
	return train, err
}

// GetTrains returns all trains, by ID
func (s *Store) GetTrains() ([]*dataobjects.Train, error) {
	return s.GetTrainsWithStatus()
}

// GetTrainsWithStatus returns the trains with one of the given statuses, or all trains if none is given
func (s *Store) GetTrainsWithStatus(statuses ...dataobjects.TrainStatus) ([]*dataobjects.Train, error) {
	trains := []*dataobjects.Train{}
	err := s.view(func(st *state) error {
		for id, t := range st.trains {
			if len(statuses) > 0 && !funk.Contains(statuses, t.Status) {
				continue
			}
			train, _ := st.train(id)
			trains = append(trains, train)
		}
		return nil
	})
	sort.Slice(trains, func(i, j int) bool {
		return trains[i].ID < trains[j].ID
	})
	return trains, err
}

// UpdateTrainStatus sets the status of a train
func (s *Store) UpdateTrainStatus(id string, status dataobjects.TrainStatus) error {
	if !status.Valid() {
		return constraint("invalid train status %q", status)
	}
	return s.update(func(st *state) error {
		t, ok := st.trains[id]
		if !ok {
			return notFound("train", id)
		}
		t.Status = status
		t.UpdatedAt = time.Now()
		st.trains[id] = t
		return nil
	})
}

// PutTrain adds or replaces a train. Its CurrentRoute is ignored, being derived from route assignments
func (s *Store) PutTrain(train *dataobjects.Train) error {
	if !train.Status.Valid() {
		return constraint("invalid train status %q", train.Status)
	}
	return s.update(func(st *state) error {
		t := *train
		t.CurrentRoute = ""
		st.trains[t.ID] = t
		return nil
	})
}

// GetFitnessCertificates returns the certificates of a train, the first to expire first
func (s *Store) GetFitnessCertificates(trainID string) ([]*dataobjects.FitnessCertificate, error) {
	certs := []*dataobjects.FitnessCertificate{}
	err := s.view(func(st *state) error {
		for _, c := range st.certificates {
			if c.TrainID == trainID {
				c := c
				certs = append(certs, &c)
			}
		}
		return nil
	})
	sort.Slice(certs, func(i, j int) bool {
		if certs[i].ExpiresAt.Equal(certs[j].ExpiresAt) {
			return certs[i].ID < certs[j].ID
		}
		return certs[i].ExpiresAt.Before(certs[j].ExpiresAt)
	})
	return certs, err
}

// PutFitnessCertificate adds or replaces a certificate
func (s *Store) PutFitnessCertificate(cert *dataobjects.FitnessCertificate) error {
	return s.update(func(st *state) error {
		st.certificates[cert.ID] = *cert
		return nil
	})
}

// GetOpenJobCards returns the job cards of a train that are not closed
func (s *Store) GetOpenJobCards(trainID string) ([]*dataobjects.JobCard, error) {
	cards := []*dataobjects.JobCard{}
	err := s.view(func(st *state) error {
		for _, c := range st.jobCards {
			if c.TrainID == trainID && c.IsOpen() {
				c := c
				cards = append(cards, &c)
			}
		}
		return nil
	})
	sortJobCards(cards)
	return cards, err
}

// GetJobCards returns all job cards of a train
func (s *Store) GetJobCards(trainID string) ([]*dataobjects.JobCard, error) {
	cards := []*dataobjects.JobCard{}
	err := s.view(func(st *state) error {
		for _, c := range st.jobCards {
			if c.TrainID == trainID {
				c := c
				cards = append(cards, &c)
			}
		}
		return nil
	})
	sortJobCards(cards)
	return cards, err
}

func sortJobCards(cards []*dataobjects.JobCard) {
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].ID < cards[j].ID
		}
		return cards[i].CreatedAt.Before(cards[j].CreatedAt)
	})
}

// CreateJobCard adds or replaces a job card
func (s *Store) CreateJobCard(card *dataobjects.JobCard) error {
	return s.update(func(st *state) error {
		st.jobCards[card.ID] = *card
		return nil
	})
}

// GetStablingPosition returns the most recent stabling record of a train
func (s *Store) GetStablingPosition(trainID string) (*dataobjects.StablingPosition, error) {
	var position *dataobjects.StablingPosition
	err := s.view(func(st *state) error {
		for _, p := range st.stabling {
			if p.TrainID == trainID && (position == nil || p.RecordedAt.After(position.RecordedAt)) {
				p := p
				position = &p
			}
		}
		if position == nil {
			return notFound("stabling position for train", trainID)
		}
		return nil
	})
	return position, err
}

// PutStablingPosition adds a stabling record
func (s *Store) PutStablingPosition(position *dataobjects.StablingPosition) error {
	return s.update(func(st *state) error {
		for i, p := range st.stabling {
			if p.TrainID == position.TrainID && p.RecordedAt.Equal(position.RecordedAt) {
				st.stabling[i] = *position
				return nil
			}
		}
		st.stabling = append(st.stabling, *position)
		return nil
	})
}

// CreateEmergencyLog adds or replaces an emergency log
func (s *Store) CreateEmergencyLog(log *dataobjects.EmergencyLog) error {
	return s.update(func(st *state) error {
		st.logs[log.ID] = *log
		return nil
	})
}

// UpdateEmergencyLog adds or replaces an emergency log
func (s *Store) UpdateEmergencyLog(log *dataobjects.EmergencyLog) error {
	return s.CreateEmergencyLog(log)
}

// GetEmergencyLog returns the emergency log with the given ID
func (s *Store) GetEmergencyLog(id string) (*dataobjects.EmergencyLog, error) {
	var log *dataobjects.EmergencyLog
	err := s.view(func(st *state) error {
		l, ok := st.logs[id]
		if !ok {
			return notFound("emergency log", id)
		}
		log = &l
		return nil
	})
	return log, err
}

func (s *Store) filterLogs(keep func(l *dataobjects.EmergencyLog) bool) ([]*dataobjects.EmergencyLog, error) {
	logs := []*dataobjects.EmergencyLog{}
	err := s.view(func(st *state) error {
		for _, l := range st.logs {
			l := l
			if keep(&l) {
				logs = append(logs, &l)
			}
		}
		return nil
	})
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].Time.Equal(logs[j].Time) {
			return logs[i].ID > logs[j].ID
		}
		return logs[i].Time.After(logs[j].Time)
	})
	return logs, err
}

// GetEmergencyLogs returns all emergency logs, most recent first
func (s *Store) GetEmergencyLogs() ([]*dataobjects.EmergencyLog, error) {
	return s.filterLogs(func(*dataobjects.EmergencyLog) bool { return true })
}

// GetActiveEmergencyLogs returns the emergency logs that are not resolved, most recent first
func (s *Store) GetActiveEmergencyLogs() ([]*dataobjects.EmergencyLog, error) {
	return s.filterLogs(func(l *dataobjects.EmergencyLog) bool {
		return l.Status == dataobjects.EmergencyActive
	})
}

// GetActiveBreakdownsSince returns the active emergency logs timestamped at or after since
func (s *Store) GetActiveBreakdownsSince(since time.Time) ([]*dataobjects.EmergencyLog, error) {
	return s.filterLogs(func(l *dataobjects.EmergencyLog) bool {
		return l.Status == dataobjects.EmergencyActive && !l.Time.Before(since)
	})
}

// CountActiveBreakdownsSince counts the active emergency logs timestamped at or after since
func (s *Store) CountActiveBreakdownsSince(since time.Time) (int, error) {
	logs, err := s.GetActiveBreakdownsSince(since)
	return len(logs), err
}

// CreateEmergencyPlan adds or replaces a plan.
// An emergency log can only have one plan that is not rejected
func (s *Store) CreateEmergencyPlan(plan *dataobjects.EmergencyPlan) error {
	return s.update(func(st *state) error {
		if plan.Status.Active() {
			for _, p := range st.plans {
				if p.ID != plan.ID && p.EmergencyLogID == plan.EmergencyLogID && p.Status.Active() {
					return constraint("emergency log %s already has active plan %s", plan.EmergencyLogID, p.ID)
				}
			}
		}
		st.plans[plan.ID] = *copyPlan(*plan)
		return nil
	})
}

// UpdateEmergencyPlan adds or replaces a plan
func (s *Store) UpdateEmergencyPlan(plan *dataobjects.EmergencyPlan) error {
	return s.CreateEmergencyPlan(plan)
}

// GetEmergencyPlan returns the plan with the given ID
func (s *Store) GetEmergencyPlan(id string) (*dataobjects.EmergencyPlan, error) {
	var plan *dataobjects.EmergencyPlan
	err := s.view(func(st *state) error {
		p, ok := st.plans[id]
		if !ok {
			return notFound("emergency plan", id)
		}
		plan = copyPlan(p)
		return nil
	})
	return plan, err
}

// GetEmergencyPlansForLog returns the plans made for an emergency log, oldest first
func (s *Store) GetEmergencyPlansForLog(logID string) ([]*dataobjects.EmergencyPlan, error) {
	plans := []*dataobjects.EmergencyPlan{}
	err := s.view(func(st *state) error {
		for _, p := range st.plans {
			if p.EmergencyLogID == logID {
				plans = append(plans, copyPlan(p))
			}
		}
		return nil
	})
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].CreatedAt.Equal(plans[j].CreatedAt) {
			return plans[i].ID < plans[j].ID
		}
		return plans[i].CreatedAt.Before(plans[j].CreatedAt)
	})
	return plans, err
}

// GetActiveCrisisState returns the active crisis
func (s *Store) GetActiveCrisisState() (*dataobjects.CrisisState, error) {
	var crisis *dataobjects.CrisisState
	err := s.view(func(st *state) error {
		c, ok := st.activeCrisis()
		if !ok {
			return notFound("crisis state", "active")
		}
		crisis = copyCrisis(c)
		return nil
	})
	return crisis, err
}

// GetCrisisStates returns every crisis, most recent first
func (s *Store) GetCrisisStates() ([]*dataobjects.CrisisState, error) {
	crises := []*dataobjects.CrisisState{}
	err := s.view(func(st *state) error {
		for _, c := range st.crises {
			crises = append(crises, copyCrisis(c))
		}
		return nil
	})
	sort.Slice(crises, func(i, j int) bool {
		return crises[i].ActivatedAt.After(crises[j].ActivatedAt)
	})
	return crises, err
}

// MergeCrisisState creates the crisis or merges it into the active one
func (s *Store) MergeCrisisState(crisis *dataobjects.CrisisState) (*dataobjects.CrisisState, bool, error) {
	var result *dataobjects.CrisisState
	var created bool
	err := s.update(func(st *state) error {
		active, ok := st.activeCrisis()
		if ok {
			active.WithdrawalCount += crisis.WithdrawalCount
			active.TriggeringTrains = append(copyStrings(active.TriggeringTrains), crisis.TriggeringTrains...)
			active.UpdatedAt = crisis.UpdatedAt
			st.crises[active.ID] = active
			result = copyCrisis(active)
			return nil
		}
		c := *copyCrisis(*crisis)
		c.Status = dataobjects.CrisisActive
		c.Resolved = false
		st.crises[c.ID] = c
		result = copyCrisis(c)
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// UpdateCrisisState adds or replaces a crisis. The withdrawal count and triggering trains of an
// existing crisis are kept, they are only changed by MergeCrisisState
func (s *Store) UpdateCrisisState(crisis *dataobjects.CrisisState) error {
	return s.update(func(st *state) error {
		if crisis.Status == dataobjects.CrisisActive {
			if active, ok := st.activeCrisis(); ok && active.ID != crisis.ID {
				return constraint("crisis %s is already active", active.ID)
			}
		}
		c := *copyCrisis(*crisis)
		if existing, ok := st.crises[c.ID]; ok {
			c.WithdrawalCount = existing.WithdrawalCount
			c.TriggeringTrains = copyStrings(existing.TriggeringTrains)
		}
		st.crises[c.ID] = c
		return nil
	})
}

// GetActiveRouteAssignment returns the active assignment of a train
func (s *Store) GetActiveRouteAssignment(trainID string) (*dataobjects.RouteAssignment, error) {
	var assignment *dataobjects.RouteAssignment
	err := s.view(func(st *state) error {
		a, ok := st.activeAssignment(trainID)
		if !ok {
			return notFound("active route assignment for train", trainID)
		}
		assignment = &a
		return nil
	})
	return assignment, err
}

// GetActiveRouteAssignments returns the active assignments, optionally only those on the given routes
func (s *Store) GetActiveRouteAssignments(routeIDs ...string) ([]*dataobjects.RouteAssignment, error) {
	return s.filterAssignments(func(a *dataobjects.RouteAssignment) bool {
		return a.Status == dataobjects.AssignmentActive && (len(routeIDs) == 0 || funk.ContainsString(routeIDs, a.RouteID))
	})
}

// GetRouteAssignments returns the assignment history of a train
func (s *Store) GetRouteAssignments(trainID string) ([]*dataobjects.RouteAssignment, error) {
	return s.filterAssignments(func(a *dataobjects.RouteAssignment) bool {
		return a.TrainID == trainID
	})
}

func (s *Store) filterAssignments(keep func(a *dataobjects.RouteAssignment) bool) ([]*dataobjects.RouteAssignment, error) {
	assignments := []*dataobjects.RouteAssignment{}
	err := s.view(func(st *state) error {
		for _, a := range st.assignments {
			a := a
			if keep(&a) {
				assignments = append(assignments, &a)
			}
		}
		return nil
	})
	sort.Slice(assignments, func(i, j int) bool {
		if assignments[i].StartTime.Equal(assignments[j].StartTime) {
			if assignments[i].TrainID == assignments[j].TrainID {
				// a completed assignment precedes the one that replaced it
				return assignments[i].Status == dataobjects.AssignmentCompleted
			}
			return assignments[i].TrainID < assignments[j].TrainID
		}
		return assignments[i].StartTime.Before(assignments[j].StartTime)
	})
	return assignments, err
}

// CloseActiveRouteAssignment completes the active assignment of a train, if any
func (s *Store) CloseActiveRouteAssignment(trainID string, at time.Time) (bool, error) {
	closed := false
	err := s.update(func(st *state) error {
		a, ok := st.activeAssignment(trainID)
		if !ok {
			return nil
		}
		a.Status = dataobjects.AssignmentCompleted
		a.EndTime = at
		a.Ended = true
		st.assignments[a.ID] = a
		closed = true
		return nil
	})
	return closed, err
}

// CreateRouteAssignment adds or replaces an assignment.
// A train can only have one active assignment
func (s *Store) CreateRouteAssignment(assignment *dataobjects.RouteAssignment) error {
	return s.update(func(st *state) error {
		if assignment.Status == dataobjects.AssignmentActive {
			if a, ok := st.activeAssignment(assignment.TrainID); ok && a.ID != assignment.ID {
				return constraint("train %s already has active route assignment %s", assignment.TrainID, a.ID)
			}
		}
		st.assignments[assignment.ID] = *assignment
		return nil
	})
}

// CreateFrequencyAdjustment adds or replaces a frequency adjustment
func (s *Store) CreateFrequencyAdjustment(adjustment *dataobjects.FrequencyAdjustment) error {
	return s.update(func(st *state) error {
		st.adjustments[adjustment.ID] = *adjustment
		return nil
	})
}

// GetFrequencyAdjustments returns the adjustments made to a route, most recent first
func (s *Store) GetFrequencyAdjustments(routeID string) ([]*dataobjects.FrequencyAdjustment, error) {
	adjustments := []*dataobjects.FrequencyAdjustment{}
	err := s.view(func(st *state) error {
		for _, a := range st.adjustments {
			if a.RouteID == routeID {
				a := a
				adjustments = append(adjustments, &a)
			}
		}
		return nil
	})
	sort.Slice(adjustments, func(i, j int) bool {
		return adjustments[i].Time.After(adjustments[j].Time)
	})
	return adjustments, err
}
