package carbon

import (
	"context"
	"time"

	"ecoStepAPI/internal/ledger"
	"ecoStepAPI/internal/metrics"
	"ecoStepAPI/pkg/logger"
)

// kg CO2 per 10 km of daily travel.
var modeFactors = map[string]float64{
	ModeCar:             2.3,
	ModePublicTransport: 0.6,
	ModeBicycle:         0,
	ModeWalking:         0,
	ModeMotorcycle:      1.8,
	ModeElectricCar:     0.5,
}

// kg CO2 per day.
var dietFactors = map[string]float64{
	DietVegan:       2.5,
	DietVegetarian:  3.8,
	DietPescatarian: 4.6,
	DietOmnivore:    7.2,
	DietHighMeat:    10.5,
}

const (
	electricityFactor = 0.5
	gasFactor         = 2.5
	renewableDiscount = 0.3
	clothingFactor    = 15.0
	electronicsFactor = 100.0

	fallbackNote = "AI service temporarily unavailable, using simplified calculation"
)

type Breakdown struct {
	Transportation float64 `json:"transportation"`
	Energy         float64 `json:"energy"`
	Diet           float64 `json:"diet"`
	Shopping       float64 `json:"shopping"`
}

func (b Breakdown) Sum() float64 {
	return b.Transportation + b.Energy + b.Diet + b.Shopping
}

// Ledger converts b into a ledger breakdown with a derived total.
func (b Breakdown) Ledger() ledger.Breakdown {
	lb := ledger.Breakdown{
		Transportation: b.Transportation,
		Energy:         b.Energy,
		Diet:           b.Diet,
		Shopping:       b.Shopping,
	}
	lb.Total = lb.Sum()
	return lb
}

type Estimate struct {
	Daily           float64                 `json:"daily"`
	Weekly          float64                 `json:"weekly"`
	Monthly         float64                 `json:"monthly"`
	Breakdown       Breakdown               `json:"breakdown"`
	Recommendations []ledger.Recommendation `json:"recommendations"`
	Degraded        bool                    `json:"degraded"`
	Note            string                  `json:"note,omitempty"`
}

// Remote is the external estimation service.
type Remote interface {
	Calculate(ctx context.Context, l Lifestyle) (*RemoteEstimate, error)
	Insights(ctx context.Context, req InsightRequest) (*InsightReport, error)
}

type Estimator struct {
	remote  Remote
	timeout time.Duration
	now     func() time.Time
}

// NewEstimator wraps remote with the local fallback. A nil remote makes
// every estimate degraded.
func NewEstimator(remote Remote, timeout time.Duration) *Estimator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Estimator{remote: remote, timeout: timeout, now: time.Now}
}

// Estimate never fails. Any remote failure yields the fallback result
// with Degraded set.
func (e *Estimator) Estimate(ctx context.Context, l Lifestyle) Estimate {
	if e.remote == nil {
		metrics.EstimatorRequests.WithLabelValues("calculate", "fallback").Inc()
		return Fallback(l)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.remote.Calculate(callCtx, l)
	if err != nil {
		logger.Warn().Err(err).Str("event", "estimator_fallback").Msg("remote carbon estimator failed, using fallback")
		metrics.EstimatorRequests.WithLabelValues("calculate", "fallback").Inc()
		return Fallback(l)
	}

	metrics.EstimatorRequests.WithLabelValues("calculate", "remote").Inc()
	return res.toEstimate(e.now())
}

// Fallback is the deterministic local formula.
func Fallback(l Lifestyle) Estimate {
	modeFactor, ok := modeFactors[l.Transportation.PrimaryMode]
	if !ok {
		modeFactor = modeFactors[ModeCar]
	}

	renewable := 1.0
	if l.Energy.RenewableEnergy {
		renewable = renewableDiscount
	}

	diet, ok := dietFactors[l.Diet]
	if !ok {
		diet = dietFactors[DietOmnivore]
	}

	b := Breakdown{
		Transportation: modeFactor * (l.Transportation.DistancePerDay / 10),
		Energy:         (l.Energy.ElectricityUsage*electricityFactor + l.Energy.GasUsage*gasFactor) * renewable,
		Diet:           diet,
		Shopping:       (l.Shopping.ClothesPerMonth * clothingFactor / 30) + (l.Shopping.ElectronicsPerYear * electronicsFactor / 365),
	}

	daily := b.Sum()
	return Estimate{
		Daily:           daily,
		Weekly:          daily * 7,
		Monthly:         daily * 30,
		Breakdown:       b,
		Recommendations: []ledger.Recommendation{},
		Degraded:        true,
		Note:            fallbackNote,
	}
}
