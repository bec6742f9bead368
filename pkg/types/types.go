package types

import (
	"encoding/json"
	"time"
)

// Signal names used by the frame layout mapping.  The ingest loops look
// these up in the decoded frame; unmapped names read as 0.
const (
	SignalTime       = "time"
	SignalAnkle      = "ankle_angle"
	SignalTorque     = "actual_torque"
	SignalDemand     = "demand_torque"
	SignalGait       = "gait_percentage"
	SignalStatusword = "statusword"
)

// NumPressure and NumIMU fix the channel-group widths of the telemetry frame.
const (
	NumPressure = 8
	NumIMU      = 12
)

// Sample is one decoded observation.  Immutable after creation; owned
// transiently by the pipeline until delivered.
type Sample struct {
	T            float64   // simulation time, seconds
	ReceivedAt   time.Time // wall-clock receipt time
	Ankle        float64
	Torque       float64
	DemandTorque float64
	Gait         float64
	Press        [NumPressure]float64
	IMU          [NumIMU]float64
	Statusword   float64
	AvgDt        float64 // running mean of simulation-time deltas
}

// SampleFromSignals assembles a Sample from a decoded signal map.  Missing
// signals default to 0, so a frame is always complete once its length checks
// out.
func SampleFromSignals(sig map[string]float64, receivedAt time.Time, avgDt float64) Sample {
	s := Sample{
		T:            sig[SignalTime],
		ReceivedAt:   receivedAt,
		Ankle:        sig[SignalAnkle],
		Torque:       sig[SignalTorque],
		DemandTorque: sig[SignalDemand],
		Gait:         sig[SignalGait],
		Statusword:   sig[SignalStatusword],
		AvgDt:        avgDt,
	}
	for i := 0; i < NumPressure; i++ {
		s.Press[i] = sig[PressureSignal(i+1)]
	}
	for i := 0; i < NumIMU; i++ {
		s.IMU[i] = sig[IMUSignal(i+1)]
	}
	return s
}

// PressureSignal returns the layout name of the n-th pressure channel (1-based).
func PressureSignal(n int) string { return "pressure_" + itoa(n) }

// IMUSignal returns the layout name of the n-th inertial channel (1-based).
func IMUSignal(n int) string { return "imu_" + itoa(n) }

// itoa avoids strconv for the tiny channel indices on the hot path.
func itoa(n int) string {
	if n < 10 {
		return string([]byte{'0' + byte(n)})
	}
	return string([]byte{'0' + byte(n/10), '0' + byte(n%10)})
}

// Batch is the push-channel payload: parallel arrays index-aligned by
// arrival order, plus the newest statusword and avg_dt.  Field names match
// the browser client's expectations exactly.
type Batch struct {
	T            []float64   `json:"t"`
	Ankle        []float64   `json:"ankle"`
	Torque       []float64   `json:"torque"`
	DemandTorque []float64   `json:"demand_torque"`
	Gait         []float64   `json:"gait"`
	Press        [][]float64 `json:"press"`
	IMU          [][]float64 `json:"imu"`
	Statusword   float64     `json:"statusword"`
	AvgDt        float64     `json:"avg_dt"`
}

// BatchFrom folds samples into a Batch.  Samples must be in arrival order;
// the scalar fields come from the newest one.
func BatchFrom(samples []Sample) Batch {
	n := len(samples)
	b := Batch{
		T:            make([]float64, n),
		Ankle:        make([]float64, n),
		Torque:       make([]float64, n),
		DemandTorque: make([]float64, n),
		Gait:         make([]float64, n),
		Press:        make([][]float64, n),
		IMU:          make([][]float64, n),
	}
	for i, s := range samples {
		b.T[i] = s.T
		b.Ankle[i] = s.Ankle
		b.Torque[i] = s.Torque
		b.DemandTorque[i] = s.DemandTorque
		b.Gait[i] = s.Gait
		press := make([]float64, NumPressure)
		copy(press, s.Press[:])
		b.Press[i] = press
		imu := make([]float64, NumIMU)
		copy(imu, s.IMU[:])
		b.IMU[i] = imu
	}
	if n > 0 {
		b.Statusword = samples[n-1].Statusword
		b.AvgDt = samples[n-1].AvgDt
	}
	return b
}

// MarshalBatch serializes a Batch for the push channel.  Kept as a named
// helper so the SSE and WebSocket deliverers share one code path.
func MarshalBatch(b Batch) ([]byte, error) {
	return json.Marshal(b)
}

// ControlState is the four-value control frame content, constructed fresh
// per send.  Zero is a momentary trigger; the others are toggle-style gains.
type ControlState struct {
	Zero   float32 `json:"zero"`
	Motor  float32 `json:"motor"`
	Assist float32 `json:"assist"`
	K      float32 `json:"k"`
}
