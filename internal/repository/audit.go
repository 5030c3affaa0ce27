package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	models "github.com/RoGogDBD/data-logger/internal/model"
)

// AuditRecorder хранит список наблюдателей и рассылает им события
// управления логгером.
type AuditRecorder struct {
	mu        sync.Mutex
	observers []models.AuditObserver
}

// NewAuditRecorder создаёт пустой рекордер аудита.
func NewAuditRecorder() *AuditRecorder {
	return &AuditRecorder{}
}

// Attach добавляет наблюдателя.
func (r *AuditRecorder) Attach(observer models.AuditObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, observer)
}

// Detach удаляет наблюдателя.
func (r *AuditRecorder) Detach(observer models.AuditObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, obs := range r.observers {
		if obs == observer {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

// Notify рассылает событие всем наблюдателям; ошибки наблюдателей
// логируются и не прерывают рассылку.
func (r *AuditRecorder) Notify(event models.AuditEvent) {
	r.mu.Lock()
	observers := append([]models.AuditObserver(nil), r.observers...)
	r.mu.Unlock()

	for _, obs := range observers {
		if err := obs.OnAuditEvent(event); err != nil {
			log.Printf("Audit observer failed: %v", err)
		}
	}
}

// FileAuditObserver записывает события аудита в файл.
//
// Поля:
//   - filePath: путь к файлу для записи событий
//   - mu: мьютекс для синхронизации доступа к файлу
type FileAuditObserver struct {
	filePath string
	mu       sync.Mutex
}

// NewFileAuditObserver создает новый экземпляр FileAuditObserver.
//
// filePath — путь к файлу аудита.
//
// Возвращает указатель на FileAuditObserver.
func NewFileAuditObserver(filePath string) *FileAuditObserver {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Failed to create audit directory: %v", err)
	}

	return &FileAuditObserver{filePath: filePath}
}

// OnAuditEvent обрабатывает событие аудита, записывая его в файл.
//
// event — событие аудита для записи.
//
// Возвращает ошибку при неудаче записи.
func (f *FileAuditObserver) OnAuditEvent(event models.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}

	return nil
}

// HTTPAuditObserver отправляет события аудита на удалённый сервер.
//
// Поля:
//   - url: адрес удалённого сервера
//   - client: HTTP-клиент для отправки запросов
type HTTPAuditObserver struct {
	url    string
	client *http.Client
}

// NewHTTPAuditObserver создает новый экземпляр HTTPAuditObserver.
//
// url — адрес удалённого сервера.
//
// Возвращает указатель на HTTPAuditObserver.
func NewHTTPAuditObserver(url string) *HTTPAuditObserver {
	return &HTTPAuditObserver{
		url:    url,
		client: &http.Client{},
	}
}

// OnAuditEvent обрабатывает событие аудита, отправляя его на удалённый сервер.
//
// event — событие аудита для отправки.
//
// Возвращает ошибку при неудаче отправки.
func (h *HTTPAuditObserver) OnAuditEvent(event models.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	resp, err := h.client.Post(h.url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to send audit event: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("audit server returned status %d", resp.StatusCode)
	}
	return nil
}
