package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"chain-audit/backend/internal/municipality/domain"
	recorddomain "chain-audit/backend/internal/record/domain"
	"chain-audit/backend/internal/security"
)

var ErrMunicipalityNotFound = errors.New("municipality not found")

// MunicipalityRepo is the municipality repository contract for this service.
type MunicipalityRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Municipality, error)
	FindActiveByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Municipality, error)
	List(ctx context.Context) ([]*domain.Municipality, error)
	Create(ctx context.Context, m *domain.Municipality) error
}

// RecordRepo provides the per-municipality record slice the stats are built
// from.
type RecordRepo interface {
	ListByMunicipality(ctx context.Context, municipalityID string) ([]*recorddomain.Record, error)
}

// Overview is one row of the public municipality listing. API key material
// never leaves the service.
type Overview struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Wallet      string    `json:"wallet"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	RecordCount int       `json:"record_count"`
	TotalAmount string    `json:"total_amount"`
}

// StatusBreakdown counts a municipality's records per approval status.
type StatusBreakdown struct {
	Pendiente int `json:"PENDIENTE"`
	Validado  int `json:"VALIDADO"`
	Observado int `json:"OBSERVADO"`
}

// TypeBreakdown aggregates spending for one spend type.
type TypeBreakdown struct {
	SpendType string `json:"spend_type"`
	Count     int    `json:"count"`
	Amount    string `json:"amount"`
}

// MonthlyPoint aggregates spending for one calendar month of expense dates.
type MonthlyPoint struct {
	Month  string `json:"month"` // YYYY-MM
	Count  int    `json:"count"`
	Amount string `json:"amount"`
}

// Stats is the transparency dashboard for a single municipality.
type Stats struct {
	Municipality *Overview       `json:"municipality"`
	ByStatus     StatusBreakdown `json:"by_status"`
	BySpendType  []TypeBreakdown `json:"by_spend_type"`
	Monthly      []MonthlyPoint  `json:"monthly"`
}

// MunicipalityService serves the public municipality surface: listing,
// spending stats, and API-key authentication of the submitter.
type MunicipalityService struct {
	municipalities MunicipalityRepo
	records        RecordRepo
}

func NewMunicipalityService(municipalities MunicipalityRepo, records RecordRepo) *MunicipalityService {
	return &MunicipalityService{municipalities: municipalities, records: records}
}

// Authenticate resolves a raw API key to its active municipality, or nil
// when the key matches no active row. Keys are compared by SHA-256 digest;
// the plaintext is never stored.
func (s *MunicipalityService) Authenticate(ctx context.Context, apiKey string) (*domain.Municipality, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, nil
	}
	return s.municipalities.FindActiveByAPIKeyHash(ctx, security.HashAPIKey(apiKey))
}

// Register creates a municipality and returns it with the freshly generated
// plaintext API key, which is shown exactly once.
func (s *MunicipalityService) Register(ctx context.Context, name, wallet string) (*domain.Municipality, string, error) {
	apiKey, err := security.NewAPIKey()
	if err != nil {
		return nil, "", err
	}
	m := &domain.Municipality{
		ID:         uuid.New().String(),
		Name:       strings.TrimSpace(name),
		Wallet:     strings.TrimSpace(wallet),
		APIKeyHash: security.HashAPIKey(apiKey),
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.municipalities.Create(ctx, m); err != nil {
		return nil, "", err
	}
	return m, apiKey, nil
}

// List returns the public overview of every municipality with record counts
// and total recorded spend.
func (s *MunicipalityService) List(ctx context.Context) ([]*Overview, error) {
	munis, err := s.municipalities.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Overview, 0, len(munis))
	for _, m := range munis {
		recs, err := s.records.ListByMunicipality(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		var total float64
		for _, rec := range recs {
			total += parseAmount(rec.Amount)
		}
		out = append(out, &Overview{
			ID:          m.ID,
			Name:        m.Name,
			Wallet:      m.Wallet,
			Active:      m.Active,
			CreatedAt:   m.CreatedAt,
			RecordCount: len(recs),
			TotalAmount: formatAmount(total),
		})
	}
	return out, nil
}

// GetStats builds the per-municipality spending breakdown: totals by
// approval status, by spend type, and by expense month.
func (s *MunicipalityService) GetStats(ctx context.Context, municipalityID string) (*Stats, error) {
	m, err := s.municipalities.GetByID(ctx, municipalityID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMunicipalityNotFound
	}
	recs, err := s.records.ListByMunicipality(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	var total float64
	var byStatus StatusBreakdown
	typeCount := map[recorddomain.SpendType]int{}
	typeAmount := map[recorddomain.SpendType]float64{}
	monthCount := map[string]int{}
	monthAmount := map[string]float64{}
	for _, rec := range recs {
		amount := parseAmount(rec.Amount)
		total += amount
		switch rec.Status {
		case recorddomain.StatusPendiente:
			byStatus.Pendiente++
		case recorddomain.StatusValidado:
			byStatus.Validado++
		case recorddomain.StatusObservado:
			byStatus.Observado++
		}
		typeCount[rec.SpendType]++
		typeAmount[rec.SpendType] += amount
		if len(rec.ExpenseDate) >= 7 {
			month := rec.ExpenseDate[:7]
			monthCount[month]++
			monthAmount[month] += amount
		}
	}

	byType := make([]TypeBreakdown, 0, len(typeCount))
	for _, st := range recorddomain.SpendTypes {
		if typeCount[st] == 0 {
			continue
		}
		byType = append(byType, TypeBreakdown{
			SpendType: string(st),
			Count:     typeCount[st],
			Amount:    formatAmount(typeAmount[st]),
		})
	}

	monthly := make([]MonthlyPoint, 0, len(monthCount))
	for month := range monthCount {
		monthly = append(monthly, MonthlyPoint{
			Month:  month,
			Count:  monthCount[month],
			Amount: formatAmount(monthAmount[month]),
		})
	}
	sort.Slice(monthly, func(i, j int) bool { return monthly[i].Month < monthly[j].Month })

	return &Stats{
		Municipality: &Overview{
			ID:          m.ID,
			Name:        m.Name,
			Wallet:      m.Wallet,
			Active:      m.Active,
			CreatedAt:   m.CreatedAt,
			RecordCount: len(recs),
			TotalAmount: formatAmount(total),
		},
		ByStatus:    byStatus,
		BySpendType: byType,
		Monthly:     monthly,
	}, nil
}

func parseAmount(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
