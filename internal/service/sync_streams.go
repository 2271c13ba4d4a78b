package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/internal/provider/whoop"
)

const kilojoulesPerKilocalorie = 4.184

// Metric categories
const (
	categoryRecovery = "recovery"
	categorySleep    = "sleep"
	categoryActivity = "activity"
	categoryBody     = "body"
)

// Metric units
const (
	unitPercent = "%"
	unitBPM     = "bpm"
	unitMillis  = "ms"
	unitCelsius = "°C"
	unitHours   = "hours"
	unitBreaths = "breaths/min"
	unitStrain  = "strain"
	unitKcal    = "kcal"
	unitKg      = "kg"
	unitMeters  = "m"
)

func (o *SyncOrchestrator) syncRecovery(ctx context.Context, userID, accessToken string, window domain.TimeWindow) (domain.StreamResult, error) {
	records, err := o.client.Recoveries(ctx, accessToken, window)
	if err != nil {
		return domain.StreamResult{}, fmt.Errorf("fetch recovery: %w", err)
	}

	res := domain.StreamResult{Fetched: len(records)}
	for _, r := range records {
		if r.ScoreState != whoop.ScoreStateScored || r.Score == nil {
			res.Skipped++
			continue
		}
		if err := o.writePoints(ctx, userID, recoveryPoints(r), &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (o *SyncOrchestrator) syncSleep(ctx context.Context, userID, accessToken string, window domain.TimeWindow) (domain.StreamResult, error) {
	records, err := o.client.Sleeps(ctx, accessToken, window)
	if err != nil {
		return domain.StreamResult{}, fmt.Errorf("fetch sleep: %w", err)
	}

	res := domain.StreamResult{Fetched: len(records)}
	for _, s := range records {
		if s.Nap || s.ScoreState != whoop.ScoreStateScored || s.Score == nil {
			res.Skipped++
			continue
		}
		if err := o.writePoints(ctx, userID, sleepPoints(s), &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (o *SyncOrchestrator) syncWorkouts(ctx context.Context, userID, accessToken string, window domain.TimeWindow) (domain.StreamResult, error) {
	records, err := o.client.Workouts(ctx, accessToken, window)
	if err != nil {
		return domain.StreamResult{}, fmt.Errorf("fetch workouts: %w", err)
	}

	res := domain.StreamResult{Fetched: len(records)}
	for _, w := range records {
		if w.ScoreState != whoop.ScoreStateScored || w.Score == nil {
			res.Skipped++
			continue
		}
		if err := o.writePoints(ctx, userID, workoutPoints(w), &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (o *SyncOrchestrator) syncCycles(ctx context.Context, userID, accessToken string, window domain.TimeWindow) (domain.StreamResult, error) {
	records, err := o.client.Cycles(ctx, accessToken, window)
	if err != nil {
		return domain.StreamResult{}, fmt.Errorf("fetch cycles: %w", err)
	}

	res := domain.StreamResult{Fetched: len(records)}
	for _, c := range records {
		if c.ScoreState != whoop.ScoreStateScored || c.Score == nil {
			res.Skipped++
			continue
		}
		if err := o.writePoints(ctx, userID, cyclePoints(c), &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (o *SyncOrchestrator) syncBody(ctx context.Context, userID, accessToken string, window domain.TimeWindow) (domain.StreamResult, error) {
	m, err := o.client.BodyMeasurement(ctx, accessToken)
	if err != nil {
		return domain.StreamResult{}, fmt.Errorf("fetch body measurement: %w", err)
	}

	res := domain.StreamResult{Fetched: 1}
	if err := o.writePoints(ctx, userID, bodyPoints(*m, window), &res); err != nil {
		return res, err
	}
	return res, nil
}

func (o *SyncOrchestrator) writePoints(ctx context.Context, userID string, points []domain.MetricPoint, res *domain.StreamResult) error {
	for _, p := range points {
		if err := o.writer.Write(ctx, userID, p); err != nil {
			return fmt.Errorf("write %s: %w", p.Name, err)
		}
		res.Saved++
	}
	return nil
}

func recoveryPoints(r whoop.Recovery) []domain.MetricPoint {
	id := strconv.FormatInt(r.CycleID, 10)
	b := pointBuilder{category: categoryRecovery, date: r.CreatedAt, payload: payloadOf(r)}

	points := []domain.MetricPoint{
		b.point("Recovery Score", unitPercent, *r.Score.RecoveryScore, id),
		b.point("Resting Heart Rate", unitBPM, *r.Score.RestingHeartRate, id+"_rhr"),
		b.point("Heart Rate Variability", unitMillis, round2(*r.Score.HRVRMSSDMilli), id+"_hrv"),
	}
	if v := r.Score.SpO2Percentage; v != nil {
		points = append(points, b.point("Blood Oxygen", unitPercent, round2(*v), id+"_spo2"))
	}
	if v := r.Score.SkinTempCelsius; v != nil {
		points = append(points, b.point("Skin Temperature", unitCelsius, round2(*v), id+"_skin_temp"))
	}
	return points
}

func sleepPoints(s whoop.Sleep) []domain.MetricPoint {
	b := pointBuilder{category: categorySleep, date: s.End, payload: payloadOf(s)}
	hours := float64(s.Score.StageSummary.AsleepMilli()) / float64(3600*1000)

	points := []domain.MetricPoint{
		b.point("Sleep Duration", unitHours, round2(hours), s.ID),
	}
	if v := s.Score.SleepPerformancePercentage; v != nil {
		points = append(points, b.point("Sleep Performance", unitPercent, *v, s.ID+"_performance"))
	}
	if v := s.Score.SleepEfficiencyPercentage; v != nil {
		points = append(points, b.point("Sleep Efficiency", unitPercent, round2(*v), s.ID+"_efficiency"))
	}
	if v := s.Score.RespiratoryRate; v != nil {
		points = append(points, b.point("Respiratory Rate", unitBreaths, round2(*v), s.ID+"_resp"))
	}
	return points
}

func workoutPoints(w whoop.Workout) []domain.MetricPoint {
	b := pointBuilder{category: categoryActivity, date: w.Start, payload: payloadOf(w)}

	return []domain.MetricPoint{
		b.point("Workout Strain", unitStrain, round2(*w.Score.Strain), w.ID),
		b.point("Workout Average Heart Rate", unitBPM, float64(*w.Score.AverageHeartRate), w.ID+"_hr"),
		b.point("Workout Max Heart Rate", unitBPM, float64(*w.Score.MaxHeartRate), w.ID+"_max_hr"),
		b.point("Workout Calories", unitKcal, kilocalories(*w.Score.Kilojoule), w.ID+"_calories"),
	}
}

func cyclePoints(c whoop.Cycle) []domain.MetricPoint {
	id := strconv.FormatInt(c.ID, 10)
	b := pointBuilder{category: categoryActivity, date: c.Start, payload: payloadOf(c)}

	return []domain.MetricPoint{
		b.point("Day Strain", unitStrain, round2(*c.Score.Strain), id),
		b.point("Daily Calories", unitKcal, kilocalories(*c.Score.Kilojoule), id+"_calories"),
		b.point("Daily Average Heart Rate", unitBPM, float64(*c.Score.AverageHeartRate), id+"_hr"),
	}
}

// bodyPoints keys each facet by date, so a measurement is stored at most
// once per day and re-syncing the same day updates it.
func bodyPoints(m whoop.BodyMeasurement, window domain.TimeWindow) []domain.MetricPoint {
	date := domain.TruncateToDate(window.End)
	day := date.Format("2006-01-02")
	b := pointBuilder{category: categoryBody, date: date, payload: payloadOf(m)}

	return []domain.MetricPoint{
		b.point("Weight", unitKg, round2(*m.WeightKilogram), "body_weight_"+day),
		b.point("Height", unitMeters, round2(*m.HeightMeter), "body_height_"+day),
		b.point("Max Heart Rate", unitBPM, float64(*m.MaxHeartRate), "body_max_hr_"+day),
	}
}

type pointBuilder struct {
	category string
	date     time.Time
	payload  json.RawMessage
}

func (b pointBuilder) point(name, unit string, value float64, externalID string) domain.MetricPoint {
	return domain.MetricPoint{
		Name:       name,
		Category:   b.category,
		Unit:       unit,
		Value:      value,
		Date:       b.date,
		ExternalID: externalID,
		Payload:    b.payload,
	}
}

// kilocalories converts kJ to whole kcal
func kilocalories(kj float64) float64 {
	return math.Round(kj / kilojoulesPerKilocalorie)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// payloadOf returns the raw provider record kept alongside each value
func payloadOf(v any) json.RawMessage {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return payload
}
