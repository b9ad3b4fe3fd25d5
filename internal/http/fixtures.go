package httpapi

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/example/carpool-driver/internal/models"
)

// Demo account created by Seed.
const (
	DemoPhone    = "0812345678"
	DemoPassword = "password123"
)

func hashPassword(pw string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
}

func checkPassword(hash []byte, pw string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(pw)) == nil
}

type seedTrip struct {
	from, to  string
	dayOffset int
	hour, min int
	seats     int
	price     int64
	status    models.TripStatus
	riders    []int // index into riders, one seat each
}

// Seed loads two drivers, a few passengers and trips in every status so a
// fresh backend has something to show.
func Seed(s *Store, now time.Time) error {
	hash, err := hashPassword(DemoPassword)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}
	jean, err := s.AddDriver(models.Profile{
		Name:          "Jean Mukendi",
		Phone:         DemoPhone,
		Email:         "jean.mukendi@example.com",
		VehicleModel:  "Toyota Corolla",
		VehicleNumber: "KN-1234-AB",
		LicenseNumber: "DL-0042",
	}, hash)
	if err != nil {
		return err
	}
	marie, err := s.AddDriver(models.Profile{
		Name:          "Marie Kabila",
		Phone:         "0898765432",
		VehicleModel:  "Nissan X-Trail",
		VehicleNumber: "KN-9876-ZX",
		LicenseNumber: "DL-0107",
	}, hash)
	if err != nil {
		return err
	}

	riders := []models.Rider{
		s.AddRider("Amani Tshibanda", "0811111111"),
		s.AddRider("Grace Mbuyi", "0822222222"),
		s.AddRider("Patrick Ilunga", "0833333333"),
	}

	plan := map[int64][]seedTrip{
		jean.ID: {
			{"Kinshasa", "Matadi", 1, 8, 0, 4, 15000, models.TripScheduled, []int{0, 0}},
			{"Kinshasa", "Kikwit", 0, 6, 30, 3, 20000, models.TripOngoing, []int{1}},
			{"Matadi", "Kinshasa", -3, 7, 0, 4, 15000, models.TripCompleted, []int{0, 0, 2}},
			{"Kinshasa", "Mbanza-Ngungu", -7, 9, 15, 4, 8000, models.TripCancelled, nil},
		},
		marie.ID: {
			{"Kinshasa", "Matadi", 2, 7, 30, 3, 14000, models.TripScheduled, []int{2}},
			{"Kinshasa", "Matadi", -1, 7, 30, 3, 14000, models.TripCompleted, []int{1}},
		},
	}
	for _, driverID := range []int64{jean.ID, marie.ID} {
		for _, st := range plan[driverID] {
			dep := day(now, st.dayOffset).Add(time.Duration(st.hour)*time.Hour + time.Duration(st.min)*time.Minute)
			t := s.CreateTrip(driverID, models.NewTrip{
				FromCity:       st.from,
				ToCity:         st.to,
				DepartureTime:  models.Timestamp{Time: dep},
				AvailableSeats: st.seats,
				PricePerSeat:   st.price,
			})
			seats := map[int]int{}
			for _, r := range st.riders {
				seats[r]++
			}
			for r := range riders {
				if seats[r] == 0 {
					continue
				}
				if _, _, err := s.Book(t.ID, riders[r].ID, seats[r], st.from+" centre"); err != nil {
					return err
				}
			}
			s.forceStatus(t.ID, st.status)
		}
	}
	return nil
}

func (s *Store) forceStatus(id int64, status models.TripStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.trips[id]; ok {
		rec.trip.Status = status
	}
}
