package whoop

import "time"

// ScoreStateScored marks a record whose score has been computed. Records in
// any other state carry no score.
const ScoreStateScored = "SCORED"

// page is the envelope of every paginated collection endpoint
type page[T any] struct {
	Records   []T    `json:"records" validate:"dive"`
	NextToken string `json:"next_token"`
}

// scoredRecord is implemented by records whose score is required once scored
type scoredRecord interface {
	missingScore() bool
}

// Recovery is a daily recovery record, keyed by the physiological cycle
type Recovery struct {
	CycleID    int64          `json:"cycle_id" validate:"required"`
	SleepID    string         `json:"sleep_id"`
	UserID     int64          `json:"user_id"`
	CreatedAt  time.Time      `json:"created_at" validate:"required"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ScoreState string         `json:"score_state" validate:"required"`
	Score      *RecoveryScore `json:"score,omitempty"`
}

type RecoveryScore struct {
	UserCalibrating  bool     `json:"user_calibrating"`
	RecoveryScore    *float64 `json:"recovery_score" validate:"required"`
	RestingHeartRate *float64 `json:"resting_heart_rate" validate:"required"`
	HRVRMSSDMilli    *float64 `json:"hrv_rmssd_milli" validate:"required"`
	SpO2Percentage   *float64 `json:"spo2_percentage,omitempty"`
	SkinTempCelsius  *float64 `json:"skin_temp_celsius,omitempty"`
}

func (r Recovery) missingScore() bool {
	return r.ScoreState == ScoreStateScored && r.Score == nil
}

// Sleep is a sleep or nap activity
type Sleep struct {
	ID         string      `json:"id" validate:"required"`
	UserID     int64       `json:"user_id"`
	Start      time.Time   `json:"start" validate:"required"`
	End        time.Time   `json:"end" validate:"required"`
	Nap        bool        `json:"nap"`
	ScoreState string      `json:"score_state" validate:"required"`
	Score      *SleepScore `json:"score,omitempty"`
}

type SleepScore struct {
	StageSummary               *SleepStageSummary `json:"stage_summary" validate:"required"`
	RespiratoryRate            *float64           `json:"respiratory_rate,omitempty"`
	SleepPerformancePercentage *float64           `json:"sleep_performance_percentage,omitempty"`
	SleepConsistencyPercentage *float64           `json:"sleep_consistency_percentage,omitempty"`
	SleepEfficiencyPercentage  *float64           `json:"sleep_efficiency_percentage,omitempty"`
}

type SleepStageSummary struct {
	TotalInBedTimeMilli         int64 `json:"total_in_bed_time_milli"`
	TotalAwakeTimeMilli         int64 `json:"total_awake_time_milli"`
	TotalNoDataTimeMilli        int64 `json:"total_no_data_time_milli"`
	TotalLightSleepTimeMilli    int64 `json:"total_light_sleep_time_milli"`
	TotalSlowWaveSleepTimeMilli int64 `json:"total_slow_wave_sleep_time_milli"`
	TotalREMSleepTimeMilli      int64 `json:"total_rem_sleep_time_milli"`
	SleepCycleCount             int   `json:"sleep_cycle_count"`
	DisturbanceCount            int   `json:"disturbance_count"`
}

// AsleepMilli is the time spent in any sleep stage
func (s SleepStageSummary) AsleepMilli() int64 {
	return s.TotalLightSleepTimeMilli + s.TotalSlowWaveSleepTimeMilli + s.TotalREMSleepTimeMilli
}

func (s Sleep) missingScore() bool {
	return s.ScoreState == ScoreStateScored && s.Score == nil
}

// Workout is a single recorded activity
type Workout struct {
	ID         string        `json:"id" validate:"required"`
	UserID     int64         `json:"user_id"`
	Start      time.Time     `json:"start" validate:"required"`
	End        time.Time     `json:"end" validate:"required"`
	SportName  string        `json:"sport_name"`
	ScoreState string        `json:"score_state" validate:"required"`
	Score      *WorkoutScore `json:"score,omitempty"`
}

type WorkoutScore struct {
	Strain           *float64 `json:"strain" validate:"required"`
	AverageHeartRate *int     `json:"average_heart_rate" validate:"required"`
	MaxHeartRate     *int     `json:"max_heart_rate" validate:"required"`
	Kilojoule        *float64 `json:"kilojoule" validate:"required"`
	DistanceMeter    *float64 `json:"distance_meter,omitempty"`
}

func (w Workout) missingScore() bool {
	return w.ScoreState == ScoreStateScored && w.Score == nil
}

// Cycle is a physiological day
type Cycle struct {
	ID         int64       `json:"id" validate:"required"`
	UserID     int64       `json:"user_id"`
	Start      time.Time   `json:"start" validate:"required"`
	End        *time.Time  `json:"end,omitempty"`
	ScoreState string      `json:"score_state" validate:"required"`
	Score      *CycleScore `json:"score,omitempty"`
}

type CycleScore struct {
	Strain           *float64 `json:"strain" validate:"required"`
	Kilojoule        *float64 `json:"kilojoule" validate:"required"`
	AverageHeartRate *int     `json:"average_heart_rate" validate:"required"`
	MaxHeartRate     *int     `json:"max_heart_rate" validate:"required"`
}

func (c Cycle) missingScore() bool {
	return c.ScoreState == ScoreStateScored && c.Score == nil
}

// BodyMeasurement is the user's current body profile
type BodyMeasurement struct {
	HeightMeter    *float64 `json:"height_meter" validate:"required"`
	WeightKilogram *float64 `json:"weight_kilogram" validate:"required"`
	MaxHeartRate   *int     `json:"max_heart_rate" validate:"required"`
}
