// internal/pkg/bootstrap/http.go
package bootstrap

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

// WriteJSON 写出 JSON 响应。
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// HealthResponse 是 /health 的响应体。
type HealthResponse struct {
	Status  string       `json:"status"`
	Service string       `json:"service"`
	Uptime  float64      `json:"uptime"`
	Memory  MemoryUsageM `json:"memory"`
}

// MemoryUsageM 以 MB 为单位。
type MemoryUsageM struct {
	HeapAlloc uint64 `json:"heapAlloc"`
	HeapSys   uint64 `json:"heapSys"`
	Sys       uint64 `json:"sys"`
}

func HealthHandler(serviceName string, startedAt time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "healthy",
			Service: serviceName,
			Uptime:  time.Since(startedAt).Seconds(),
			Memory: MemoryUsageM{
				HeapAlloc: m.HeapAlloc / 1024 / 1024,
				HeapSys:   m.HeapSys / 1024 / 1024,
				Sys:       m.Sys / 1024 / 1024,
			},
		})
	}
}
