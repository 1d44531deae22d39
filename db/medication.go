package db

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/google/uuid"
)

// Schedule types
const (
	ScheduleDaily    = "daily"
	ScheduleWeekly   = "weekly"
	ScheduleAsNeeded = "as_needed"
)

// Palette of UI color tokens handed out to new medications
var Palette = []string{
	"med-blue",
	"med-green",
	"med-orange",
	"med-purple",
	"med-pink",
	"med-yellow",
}

// Schedule for taking a medication. Type selects which of the other fields
// apply: daily uses Times, weekly uses Day and Time (or Times), as_needed uses
// MaxPerDay.
type Schedule struct {
	Type      string   `json:"type,omitempty"`
	Times     []string `json:"times,omitempty"`
	Day       string   `json:"day,omitempty"`
	Time      string   `json:"time,omitempty"`
	MaxPerDay int      `json:"max_per_day,omitempty"`
}

// Medication information for a user
type Medication struct {
	IDUser          uuid.UUID `json:"id_user"`
	ID              uuid.UUID `json:"id"`
	DrugName        string    `json:"drug_name"`
	Strength        string    `json:"strength"`
	QuantityLeft    float64   `json:"quantity_left"`
	DosePerIntake   float64   `json:"dose_per_intake"`
	Schedule        Schedule  `json:"schedule"`
	StartDate       string    `json:"start_date"`
	Color           string    `json:"color,omitempty"`
	PushoverDevices []string  `json:"pushover_devices,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DisplayName is the drug name followed by its strength, if any
func (m *Medication) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(m.DrugName) + " " + strings.TrimSpace(m.Strength))
	if name == "" {
		return "Medication"
	}

	return name
}

// NormalizedName identifies a medication by name and strength regardless of case
func (m *Medication) NormalizedName() string {
	return strings.ToLower(strings.TrimSpace(m.DrugName)) + "|" + strings.ToLower(strings.TrimSpace(m.Strength))
}

func (m *Medication) badgerKey() []byte {
	return append(append([]byte("medication:"), m.IDUser[:]...), m.ID[:]...)
}

func badgerPrefixKeyForMedicationUser(userID uuid.UUID) []byte {
	return append([]byte("medication:"), userID[:]...)
}

// AddMedication to the database for the medication's user. A medication
// matching an existing one by name and strength renews it: its quantity is
// added to the stored stock and the stored record is returned. Otherwise the
// medication is inserted with defaults filled in.
func (b *Badger) AddMedication(medication *Medication) (stored *Medication, renewed bool, err error) {
	if medication.IDUser == uuid.Nil {
		return nil, false, fmt.Errorf("medication %s has no user", medication.DrugName)
	}

	err = b.db.Update(func(tx *badger.Txn) error {
		existing, err := txMedicationsForUser(tx, medication.IDUser, nil)
		if err != nil {
			return err
		}

		norm := medication.NormalizedName()
		for _, m := range existing {
			if m.NormalizedName() != norm {
				continue
			}

			m.QuantityLeft += medication.QuantityLeft
			m.UpdatedAt = time.Now()
			stored, renewed = m, true

			return txSetMedication(tx, m)
		}

		if medication.ID == uuid.Nil {
			medication.ID = uuid.New()
		}

		if medication.DosePerIntake <= 0 {
			medication.DosePerIntake = 1
		}

		if medication.Color == "" {
			medication.Color = assignColor(existing, norm)
		}

		now := time.Now()
		if medication.CreatedAt.IsZero() {
			medication.CreatedAt = now
		}
		medication.UpdatedAt = now
		stored = medication

		return txSetMedication(tx, medication)
	})

	return
}

// ListMedicationsForUser from the database
func (b *Badger) ListMedicationsForUser(userID uuid.UUID) (medications []*Medication, err error) {
	err = b.db.View(func(tx *badger.Txn) error {
		medications, err = txMedicationsForUser(tx, userID, func(key []byte, err error) {
			b.log.Warnw("skipping unreadable medication record", "user", userID, "key", fmt.Sprintf("%x", key), "error", err)
		})

		return err
	})

	return
}

func txMedicationsForUser(tx *badger.Txn, userID uuid.UUID, onCorrupt func([]byte, error)) (medications []*Medication, err error) {
	err = txEachJSON(tx, badgerPrefixKeyForMedicationUser(userID),
		func() interface{} { return &Medication{} },
		func(_ []byte, value interface{}) error {
			medications = append(medications, value.(*Medication))
			return nil
		},
		onCorrupt,
	)

	return
}

func txSetMedication(tx *badger.Txn, medication *Medication) error {
	data, err := json.Marshal(medication)
	if err != nil {
		return fmt.Errorf("failed to JSON marshal medication: %w", err)
	}

	return tx.Set(medication.badgerKey(), data)
}

func assignColor(existing []*Medication, norm string) string {
	for _, m := range existing {
		if m.NormalizedName() == norm && m.Color != "" {
			return m.Color
		}
	}

	used := make(map[string]bool, len(existing))
	for _, m := range existing {
		if m.Color != "" {
			used[m.Color] = true
		}
	}

	for _, c := range Palette {
		if !used[c] {
			return c
		}
	}

	return Palette[len(existing)%len(Palette)]
}
