package emergency

import (
	"github.com/railops/fleetcrisis/dataobjects"
)

// TrainSnapshot is the state of a train needed to decide its eligibility
type TrainSnapshot struct {
	Train        *dataobjects.Train
	Certificates []*dataobjects.FitnessCertificate
	OpenJobCards []*dataobjects.JobCard
	// Stabling is the last known stabling record, nil if there is none
	Stabling *dataobjects.StablingPosition
}

// ReadSnapshot reads the certificates, open job cards and stabling position of train
func ReadSnapshot(store Store, train *dataobjects.Train) (*TrainSnapshot, error) {
	tx, err := store.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Commit() // read-only tx

	snapshot := &TrainSnapshot{Train: train}
	snapshot.Certificates, err = tx.GetFitnessCertificates(train.ID)
	if err != nil {
		return nil, err
	}
	snapshot.OpenJobCards, err = tx.GetOpenJobCards(train.ID)
	if err != nil {
		return nil, err
	}
	snapshot.Stabling, err = tx.GetStablingPosition(train.ID)
	if err != nil {
		if !dataobjects.IsNotFound(err) {
			return nil, err
		}
		snapshot.Stabling = nil
	}
	return snapshot, nil
}

// ReadSnapshots reads the snapshots of all the given trains in a single transaction
func ReadSnapshots(store Store, trains []*dataobjects.Train) ([]*TrainSnapshot, error) {
	tx, err := store.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Commit() // read-only tx

	snapshots := make([]*TrainSnapshot, len(trains))
	for i, train := range trains {
		snapshots[i], err = ReadSnapshot(tx, train)
		if err != nil {
			return nil, err
		}
	}
	return snapshots, nil
}
