package models

// AuditEvent представляет событие управления логгером: старт сессии,
// пауза, смена триггера, сохранение данных.
type AuditEvent struct {
	Timestamp int64  `json:"ts"`
	Action    string `json:"action"`
	SessionID string `json:"session_id,omitempty"`
	Details   string `json:"details,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
}

// AuditObserver интерфейс наблюдателя для аудита
type AuditObserver interface {
	OnAuditEvent(event AuditEvent) error
}

// AuditSubject интерфейс субъекта, генерирующего события аудита
type AuditSubject interface {
	Attach(observer AuditObserver)
	Detach(observer AuditObserver)
	Notify(event AuditEvent)
}
