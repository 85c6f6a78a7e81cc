package main

import (
	"fmt"
	"time"

	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/memstore"
	uuid "github.com/satori/go.uuid"
)

var demoRoutes = []string{"R-BLUE", "R-GREEN", "R-YELLOW", "R-RED"}

// seedDemoFleet fills store with a small fleet for development: eight trains in service,
// three on standby (one of them with an expired certificate) and one under maintenance
func seedDemoFleet(store *memstore.Store) error {
	now := time.Now()
	for i := 1; i <= 12; i++ {
		train := &dataobjects.Train{
			ID:        fmt.Sprintf("T-%02d", i),
			Mileage:   float64(40000 + 1750*i),
			UpdatedAt: now,
		}
		switch {
		case i <= 8:
			train.Status = dataobjects.TrainInService
		case i <= 10:
			train.Status = dataobjects.TrainStandby
		case i == 11:
			train.Status = dataobjects.TrainDepotReady
		default:
			train.Status = dataobjects.TrainUnderMaintenance
		}
		if err := store.PutTrain(train); err != nil {
			return err
		}

		for _, department := range []dataobjects.Department{dataobjects.DepartmentRollingStock,
			dataobjects.DepartmentSignalling, dataobjects.DepartmentTelecom} {
			expires := now.AddDate(0, 0, 30+i)
			if i == 10 && department == dataobjects.DepartmentSignalling {
				expires = now.AddDate(0, 0, -2)
			}
			id, err := uuid.NewV4()
			if err != nil {
				return err
			}
			err = store.PutFitnessCertificate(&dataobjects.FitnessCertificate{
				ID:         id.String(),
				TrainID:    train.ID,
				Department: department,
				IssuedAt:   expires.AddDate(-1, 0, 0),
				ExpiresAt:  expires,
			})
			if err != nil {
				return err
			}
		}

		if train.Status.InStandbyPool() {
			err := store.PutStablingPosition(&dataobjects.StablingPosition{
				TrainID:         train.ID,
				Bay:             fmt.Sprintf("SB-%d", i),
				ShuntingMinutes: 4 + 2*(i-9),
				RecordedAt:      now,
			})
			if err != nil {
				return err
			}
		}

		if train.Status == dataobjects.TrainInService {
			id, err := uuid.NewV4()
			if err != nil {
				return err
			}
			err = store.CreateRouteAssignment(&dataobjects.RouteAssignment{
				ID:        id.String(),
				TrainID:   train.ID,
				RouteID:   demoRoutes[(i-1)%len(demoRoutes)],
				Type:      dataobjects.AssignmentRevenue,
				StartTime: now,
				Status:    dataobjects.AssignmentActive,
			})
			if err != nil {
				return err
			}
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	return store.CreateJobCard(&dataobjects.JobCard{
		ID:        id.String(),
		Number:    "JC-1042",
		TrainID:   "T-12",
		Priority:  dataobjects.JobPriorityCritical,
		Status:    dataobjects.JobInProgress,
		Title:     "Bogie inspection",
		CreatedAt: now,
	})
}
