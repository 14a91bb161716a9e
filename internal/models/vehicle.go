package models

import "time"

// LineSegment representa o vetor principal reportado pelo sensor de visão,
// em coordenadas de pixel
type LineSegment struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// LineObservation é a geometria derivada de um segmento em um único ciclo
type LineObservation struct {
	XStart    int `json:"xStart"`
	XEnd      int `json:"xEnd"`
	XMid      int `json:"xMid"`
	Deviation int `json:"deviation"`
}

// TrackingState indica se o ciclo teve uma observação válida
type TrackingState string

const (
	StateTracking TrackingState = "tracking"
	StateLost     TrackingState = "lost"
)

// Motivos de um ciclo sem observação
const (
	ReasonNoObservation      = "no_observation"
	ReasonDegenerateGeometry = "degenerate_geometry"
	ReasonSensorError        = "sensor_error"
	ReasonGrace              = "grace"
)

// PIDTerms registra a contribuição de cada termo do controlador no ciclo
type PIDTerms struct {
	P        float64 `json:"p"`
	I        float64 `json:"i"`
	D        float64 `json:"d"`
	Dt       float64 `json:"dt"`
	Integral float64 `json:"integral"`
}

// ControllerState é o estado persistente do controlador PID entre ciclos
type ControllerState struct {
	Integral      float64   `json:"integral"`
	PreviousError int       `json:"previousError"`
	LastUpdate    time.Time `json:"lastUpdate"`
}

// CycleRecord é o registro de diagnóstico de um ciclo de controle
type CycleRecord struct {
	RunID       string           `json:"runId"`
	Cycle       uint64           `json:"cycle"`
	Timestamp   time.Time        `json:"timestamp"`
	State       TrackingState    `json:"state"`
	Reason      string           `json:"reason,omitempty"`
	Segment     *LineSegment     `json:"segment,omitempty"`
	Observation *LineObservation `json:"observation,omitempty"`
	Steering    int              `json:"steering"`
	Drive       int              `json:"drive"`
	Terms       *PIDTerms        `json:"terms,omitempty"`
	LostCycles  int              `json:"lostCycles,omitempty"`
}

// LoopStatus representa o status atual do loop de controle
type LoopStatus struct {
	Status      string        `json:"status"`
	State       TrackingState `json:"state"`
	Timestamp   time.Time     `json:"timestamp"`
	LastError   string        `json:"lastError,omitempty"`
	ErrorCount  int           `json:"errorCount,omitempty"`
	TotalCycles uint64        `json:"totalCycles"`
	LostPolicy  string        `json:"lostPolicy,omitempty"`
}

// HistoryPoint representa um ponto de histórico de desvio ou direção
type HistoryPoint struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// LoopStats resume o tempo de execução dos ciclos
type LoopStats struct {
	TotalCycles uint64        `json:"totalCycles"`
	Mean        time.Duration `json:"mean"`
	StdDev      time.Duration `json:"stdDev"`
	Max         time.Duration `json:"max"`
}
