package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AlisiaBaielli/TirAImisu/db"
	"github.com/AlisiaBaielli/TirAImisu/interaction"
	"github.com/AlisiaBaielli/TirAImisu/llm"
)

// maxScanBytes bounds an uploaded package photo
const maxScanBytes = 10 << 20

// MedicationStore reads and upserts a user's medications
type MedicationStore interface {
	Users
	ListMedicationsForUser(userID uuid.UUID) ([]*db.Medication, error)
	AddMedication(medication *db.Medication) (*db.Medication, bool, error)
}

// LabelScanner reads a medication package photo
type LabelScanner interface {
	Scan(ctx context.Context, img llm.Image) (*llm.Label, error)
}

// InteractionChecker compares a new drug with a user's existing drugs
type InteractionChecker interface {
	Check(ctx context.Context, existing []string, newDrug string) []interaction.Finding
}

// Medications handler
type Medications struct {
	DB           MedicationStore
	Scanner      LabelScanner
	Interactions InteractionChecker
	Log          *zap.SugaredLogger
}

// MedicationSummary is the list view of a medication
type MedicationSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Frequency string    `json:"frequency"`
	PillsLeft float64   `json:"pillsLeft"`
	Color     string    `json:"color"`
}

// MedicationRequest is the body of an add request
type MedicationRequest struct {
	DrugName        string      `json:"drug_name"`
	Strength        string      `json:"strength"`
	QuantityLeft    float64     `json:"quantity_left"`
	DosePerIntake   float64     `json:"dose_per_intake"`
	Schedule        db.Schedule `json:"schedule"`
	StartDate       string      `json:"start_date"`
	PushoverDevices []string    `json:"pushover_devices"`
}

type medicationResponse struct {
	Medication   *db.Medication        `json:"medication"`
	Renewed      bool                  `json:"renewed"`
	Interactions []interaction.Finding `json:"interactions"`
}

func (h *Medications) log() *zap.SugaredLogger {
	if h.Log == nil {
		return zap.NewNop().Sugar()
	}

	return h.Log
}

// ListHandler returns the user's medications
func (h *Medications) ListHandler(w http.ResponseWriter, r *http.Request) {
	log := h.log()
	user, ok := lookupUser(w, r, h.DB, log)
	if !ok {
		return
	}

	medications, err := h.DB.ListMedicationsForUser(user.ID)
	if err != nil {
		errorStatus(w, log, "failed to list medications", http.StatusInternalServerError, err)
		return
	}

	summaries := make([]MedicationSummary, 0, len(medications))
	for _, m := range medications {
		summaries = append(summaries, MedicationSummary{
			ID:        m.ID,
			Name:      m.DisplayName(),
			Frequency: Frequency(m.Schedule),
			PillsLeft: m.QuantityLeft,
			Color:     m.Color,
		})
	}

	writeJSON(w, log, http.StatusOK, map[string]interface{}{"medications": summaries})
}

// AddHandler inserts a medication or renews a matching one
func (h *Medications) AddHandler(w http.ResponseWriter, r *http.Request) {
	log := h.log()
	user, ok := lookupUser(w, r, h.DB, log)
	if !ok {
		return
	}

	var req MedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorStatus(w, log, "invalid medication body", http.StatusBadRequest, err)
		return
	}

	if strings.TrimSpace(req.DrugName) == "" {
		errorStatus(w, log, "drug_name is required", http.StatusBadRequest, nil)
		return
	}

	if req.QuantityLeft < 0 || req.DosePerIntake < 0 {
		errorStatus(w, log, "quantities must not be negative", http.StatusBadRequest, nil)
		return
	}

	if missing := user.MissingDevices(req.PushoverDevices); len(missing) > 0 {
		errorStatus(w, log, "unknown pushover devices: "+strings.Join(missing, ", "), http.StatusBadRequest, nil)
		return
	}

	h.upsert(r.Context(), w, user, &db.Medication{
		IDUser:          user.ID,
		DrugName:        strings.TrimSpace(req.DrugName),
		Strength:        strings.TrimSpace(req.Strength),
		QuantityLeft:    req.QuantityLeft,
		DosePerIntake:   req.DosePerIntake,
		Schedule:        req.Schedule,
		StartDate:       req.StartDate,
		PushoverDevices: req.PushoverDevices,
	})
}

// ScanHandler reads a package photo from the body and upserts what it shows
func (h *Medications) ScanHandler(w http.ResponseWriter, r *http.Request) {
	log := h.log()
	if h.Scanner == nil {
		errorStatus(w, log, "label scanning is not configured", http.StatusServiceUnavailable, nil)
		return
	}

	user, ok := lookupUser(w, r, h.DB, log)
	if !ok {
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxScanBytes))
	if err != nil {
		errorStatus(w, log, "failed to read image", http.StatusRequestEntityTooLarge, err)
		return
	}

	if len(data) == 0 {
		errorStatus(w, log, "image body is empty", http.StatusBadRequest, nil)
		return
	}

	mediaType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(mediaType, "image/") {
		mediaType = http.DetectContentType(data)
	}

	if !strings.HasPrefix(mediaType, "image/") {
		errorStatus(w, log, "body is not an image", http.StatusUnsupportedMediaType, fmt.Errorf("media type %s", mediaType))
		return
	}

	label, err := h.Scanner.Scan(r.Context(), llm.Image{Data: data, MediaType: mediaType})
	if errors.Is(err, llm.ErrUnreadableLabel) {
		errorStatus(w, log, "could not read the medication label", http.StatusUnprocessableEntity, err)
		return
	}

	if err != nil {
		errorStatus(w, log, "label scan failed", http.StatusBadGateway, err)
		return
	}

	h.upsert(r.Context(), w, user, &db.Medication{
		IDUser:       user.ID,
		DrugName:     label.MedicationName,
		Strength:     label.Dosage,
		QuantityLeft: label.NumPills,
	})
}

// upsert saves the medication and, for a new one, checks it against the
// user's other medications. The check is best-effort and never fails the
// request.
func (h *Medications) upsert(ctx context.Context, w http.ResponseWriter, user *db.User, medication *db.Medication) {
	log := h.log()

	var existing []string
	if h.Interactions != nil {
		meds, err := h.DB.ListMedicationsForUser(user.ID)
		if err != nil {
			log.Warnw("failed to list medications for interaction check", "user", user.Name, "error", err)
		}

		for _, m := range meds {
			existing = append(existing, m.DrugName)
		}
	}

	stored, renewed, err := h.DB.AddMedication(medication)
	if err != nil {
		errorStatus(w, log, "failed to save medication", http.StatusInternalServerError, err)
		return
	}

	log.Infow("medication saved", "user", user.Name, "medication", stored.DisplayName(), "renewed", renewed)

	findings := []interaction.Finding{}
	if h.Interactions != nil && !renewed && len(existing) > 0 {
		findings = append(findings, h.Interactions.Check(ctx, existing, stored.DrugName)...)
	}

	if len(findings) > 0 {
		log.Warnw("medication interactions found", "user", user.Name, "medication", stored.DisplayName(), "count", len(findings))
	}

	writeJSON(w, log, http.StatusCreated, medicationResponse{Medication: stored, Renewed: renewed, Interactions: findings})
}
