package acceptance

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// fakeWhoop serves the WHOOP token endpoint and developer API
type fakeWhoop struct {
	*httptest.Server

	mu           sync.Mutex
	usedCodes    map[string]bool
	issued       int
	refreshCalls int
	revokeCalls  int
}

func newFakeWhoop() *fakeWhoop {
	f := &fakeWhoop{usedCodes: make(map[string]bool)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/oauth2/token", f.token)
	mux.HandleFunc("GET /developer/v2/recovery", f.authorized(f.recovery))
	mux.HandleFunc("GET /developer/v2/activity/sleep", f.authorized(f.sleep))
	mux.HandleFunc("GET /developer/v2/activity/workout", f.authorized(f.workout))
	mux.HandleFunc("GET /developer/v2/user/measurement/body", f.authorized(f.body))
	mux.HandleFunc("DELETE /developer/v2/user/access", f.authorized(f.revoke))

	f.Server = httptest.NewServer(mux)
	return f
}

func (f *fakeWhoop) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usedCodes = make(map[string]bool)
	f.refreshCalls = 0
	f.revokeCalls = 0
}

func (f *fakeWhoop) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *fakeWhoop) RevokeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revokeCalls
}

func (f *fakeWhoop) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Form.Get("grant_type") {
	case "authorization_code":
		code := r.Form.Get("code")
		if code == "" || f.usedCodes[code] || strings.HasPrefix(code, "bad") {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "The authorization code is invalid or has been used",
			})
			return
		}
		f.usedCodes[code] = true
	case "refresh_token":
		f.refreshCalls++
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	f.issued++
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  fmt.Sprintf("access-%d", f.issued),
		"refresh_token": fmt.Sprintf("refresh-%d", f.issued),
		"expires_in":    3600,
		"token_type":    "bearer",
	})
}

func (f *fakeWhoop) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer access-") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func day(offset int) string {
	return time.Now().UTC().AddDate(0, 0, offset).Truncate(time.Hour).Format(time.RFC3339)
}

func (f *fakeWhoop) recovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"records": []map[string]any{
			{
				"cycle_id":    1001,
				"created_at":  day(-1),
				"score_state": "SCORED",
				"score": map[string]any{
					"recovery_score":     66,
					"resting_heart_rate": 52,
					"hrv_rmssd_milli":    48.3,
					"spo2_percentage":    96.5,
				},
			},
			{
				"cycle_id":    1002,
				"created_at":  day(0),
				"score_state": "PENDING_SCORE",
			},
		},
	})
}

// sleep is served in two pages
func (f *fakeWhoop) sleep(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("nextToken") == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"records": []map[string]any{
				{
					"id":          "sleep-1",
					"start":       day(-2),
					"end":         day(-1),
					"nap":         false,
					"score_state": "SCORED",
					"score": map[string]any{
						"stage_summary": map[string]any{
							"total_light_sleep_time_milli":     3 * 3600 * 1000,
							"total_slow_wave_sleep_time_milli": 2 * 3600 * 1000,
							"total_rem_sleep_time_milli":       1800 * 1000,
						},
						"respiratory_rate":             15.2,
						"sleep_performance_percentage": 91,
						"sleep_efficiency_percentage":  88.4,
					},
				},
			},
			"next_token": "page-2",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": []map[string]any{
			{
				"id":          "nap-1",
				"start":       day(-1),
				"end":         day(-1),
				"nap":         true,
				"score_state": "SCORED",
				"score": map[string]any{
					"stage_summary": map[string]any{"total_light_sleep_time_milli": 1200000},
				},
			},
		},
	})
}

func (f *fakeWhoop) workout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"records": []map[string]any{
			{
				"id":          "workout-1",
				"start":       day(-3),
				"end":         day(-3),
				"sport_name":  "running",
				"score_state": "SCORED",
				"score": map[string]any{
					"strain":             12.4,
					"average_heart_rate": 141,
					"max_heart_rate":     178,
					"kilojoule":          2092,
				},
			},
		},
	})
}

func (f *fakeWhoop) body(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"height_meter":    1.8,
		"weight_kilogram": 78.5,
		"max_heart_rate":  192,
	})
}

func (f *fakeWhoop) revoke(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.revokeCalls++
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
