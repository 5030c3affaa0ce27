package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RoGogDBD/data-logger/internal/config"
	"github.com/RoGogDBD/data-logger/internal/crypto"
	"github.com/RoGogDBD/data-logger/internal/datalog"
	models "github.com/RoGogDBD/data-logger/internal/model"
	"github.com/RoGogDBD/data-logger/internal/repository"
	"github.com/RoGogDBD/data-logger/pkg/pool"
)

// updateBatch — переиспользуемый буфер для декодирования пакета обновлений.
type updateBatch struct {
	Updates []models.Update
}

func (b *updateBatch) Reset() {
	b.Updates = b.Updates[:0]
}

type Handler struct {
	core       *datalog.Core
	db         *pgxpool.Pool
	storeDir   string
	key        string
	privateKey *rsa.PrivateKey
	audit      *repository.AuditRecorder
	lag        *datalog.LagMonitor
	batchPool  *pool.Pool[*updateBatch]
}

func NewHandler(core *datalog.Core, db *pgxpool.Pool, storeDir string) *Handler {
	return &Handler{
		core:     core,
		db:       db,
		storeDir: storeDir,
		batchPool: pool.New(func() *updateBatch {
			return &updateBatch{Updates: make([]models.Update, 0, 64)}
		}),
	}
}

func (h *Handler) SetKey(key string) {
	h.key = key
}

func (h *Handler) SetPrivateKey(key *rsa.PrivateKey) {
	h.privateKey = key
}

func (h *Handler) SetAudit(audit *repository.AuditRecorder) {
	h.audit = audit
}

func (h *Handler) SetLagMonitor(lag *datalog.LagMonitor) {
	h.lag = lag
}

func (h *Handler) computeHash(data []byte) string {
	hash := hmac.New(sha256.New, []byte(h.key))
	hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil))
}

func (h *Handler) verifyHash(body []byte, receivedHash string) bool {
	if h.key == "" {
		return true
	}
	if receivedHash == "" {
		return false
	}
	return receivedHash == h.computeHash(body)
}

func (h *Handler) writeJSONWithHash(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if h.key != "" {
		w.Header().Set("HashSHA256", h.computeHash(body))
	}

	w.WriteHeader(http.StatusOK)
	_, err = w.Write(body)
	return err
}

// decodePayload раскрывает тело запроса в обратном порядке упаковки
// агентом: RSA-расшифровка, затем gzip, затем JSON.
func (h *Handler) decodePayload(r *http.Request, body []byte, v interface{}) error {
	var err error
	if h.privateKey != nil && r.Header.Get("X-Content-Encrypted") == "rsa" {
		body, err = crypto.DecryptData(body, h.privateKey)
		if err != nil {
			return err
		}
	}
	if r.Header.Get("Content-Encoding") == "gzip" {
		body, err = config.GzipDecompress(bytes.NewReader(body))
		if err != nil {
			return err
		}
	}
	return json.Unmarshal(body, v)
}

func (h *Handler) readSignedBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := readAll(r)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return nil, false
	}
	if !h.verifyHash(body, r.Header.Get("HashSHA256")) {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func readAll(r *http.Request) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	return buf.Bytes(), err
}

func (h *Handler) recordAudit(r *http.Request, action, details string) {
	if h.audit == nil {
		return
	}
	h.audit.Notify(models.AuditEvent{
		Timestamp: time.Now().Unix(),
		Action:    action,
		SessionID: h.core.GetConfiguration().ID,
		Details:   details,
		IPAddress: r.RemoteAddr,
	})
}

func (h *Handler) touch() {
	if h.lag != nil {
		h.lag.Touch()
	}
}

// HandleUpdateJSON принимает одно обновление переменной.
func (h *Handler) HandleUpdateJSON(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readSignedBody(w, r)
	if !ok {
		return
	}

	var u models.Update
	if err := h.decodePayload(r, body, &u); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if u.Name == "" {
		http.Error(w, "missing variable name", http.StatusBadRequest)
		return
	}

	h.core.OnExternalUpdate(u.Name, u.Value)
	h.touch()

	if err := h.writeJSONWithHash(w, u); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// HandleUpdatesBatch принимает пакет обновлений переменных.
func (h *Handler) HandleUpdatesBatch(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readSignedBody(w, r)
	if !ok {
		return
	}

	batch := h.batchPool.Get()
	defer h.batchPool.Put(batch)

	if err := h.decodePayload(r, body, &batch.Updates); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	for _, u := range batch.Updates {
		if u.Name == "" {
			http.Error(w, "missing variable name", http.StatusBadRequest)
			return
		}
	}
	for _, u := range batch.Updates {
		h.core.OnExternalUpdate(u.Name, u.Value)
	}
	h.touch()

	if err := h.writeJSONWithHash(w, batch.Updates); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// HandleStart начинает новую сессию сбора с переданной конфигурацией.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readSignedBody(w, r)
	if !ok {
		return
	}

	var cfg models.SessionConfig
	if err := h.decodePayload(r, body, &cfg); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.core.StartCollecting(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.recordAudit(r, "start_collecting", strings.Join(cfg.Variables, ","))

	if err := h.writeJSONWithHash(w, h.core.GetConfiguration()); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// HandlePause приостанавливает или возобновляет сбор данных.
func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PauseEnabled bool `json:"pause_enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	h.core.Pause(req.PauseEnabled)
	h.recordAudit(r, "pause", "enabled="+strconv.FormatBool(req.PauseEnabled))
	w.WriteHeader(http.StatusOK)
}

// HandleTriggerType меняет тип триггера текущей сессии.
func (h *Handler) HandleTriggerType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TriggerType string `json:"trigger_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	tt, err := models.ParseTriggerType(req.TriggerType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.core.SetTriggerType(tt); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.recordAudit(r, "set_trigger_type", req.TriggerType)
	w.WriteHeader(http.StatusOK)
}

// HandleTriggerInterval меняет интервал таймерного триггера.
func (h *Handler) HandleTriggerInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Interval float64 `json:"interval"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.core.SetTriggerInterval(req.Interval); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.recordAudit(r, "set_trigger_interval", strconv.FormatFloat(req.Interval, 'g', -1, 64))
	w.WriteHeader(http.StatusOK)
}

// HandleTriggerVariable меняет триггерную переменную.
func (h *Handler) HandleTriggerVariable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Variable string `json:"variable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Variable == "" {
		http.Error(w, "missing variable name", http.StatusBadRequest)
		return
	}
	h.core.SetTriggerVariable(req.Variable)
	h.recordAudit(r, "set_trigger_variable", req.Variable)
	w.WriteHeader(http.StatusOK)
}

// HandleConfiguration возвращает конфигурацию текущей сессии.
func (h *Handler) HandleConfiguration(w http.ResponseWriter, r *http.Request) {
	if err := h.writeJSONWithHash(w, h.core.GetConfiguration()); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// HandleLength возвращает число собранных точек данных.
func (h *Handler) HandleLength(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Length int `json:"length"`
	}{Length: h.core.GetListLength()}
	if err := h.writeJSONWithHash(w, resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// HandleLast возвращает последнюю собранную точку данных.
func (h *Handler) HandleLast(w http.ResponseWriter, r *http.Request) {
	if err := h.writeJSONWithHash(w, h.core.LastDatapoint()); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func parseRange(r *http.Request) (start, stop int, err error) {
	start, stop = 0, datalog.End
	if s := r.URL.Query().Get("start"); s != "" {
		start, err = strconv.Atoi(s)
		if err != nil {
			return 0, 0, err
		}
	}
	if s := r.URL.Query().Get("stop"); s != "" {
		stop, err = strconv.Atoi(s)
		if err != nil {
			return 0, 0, err
		}
	}
	return start, stop, nil
}

func toValues(data []float64) []models.Value {
	out := make([]models.Value, len(data))
	for i, v := range data {
		out[i] = models.Value(v)
	}
	return out
}

// HandleData возвращает ряд значений одной переменной.
func (h *Handler) HandleData(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	start, stop, err := parseRange(r)
	if err != nil {
		http.Error(w, "invalid range", http.StatusBadRequest)
		return
	}

	data, err := h.core.Data(key, start, stop)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, datalog.ErrUnknownVariable) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	if err := h.writeJSONWithHash(w, toValues(data)); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// HandleDataXY возвращает пару рядов для построения зависимости y(x).
func (h *Handler) HandleDataXY(w http.ResponseWriter, r *http.Request) {
	yKey := chi.URLParam(r, "y")
	xKey := r.URL.Query().Get("x")
	if xKey == "" {
		http.Error(w, "missing x variable", http.StatusBadRequest)
		return
	}
	start, stop, err := parseRange(r)
	if err != nil {
		http.Error(w, "invalid range", http.StatusBadRequest)
		return
	}

	y, x, err := h.core.DataXY(yKey, xKey, start, stop)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, datalog.ErrUnknownVariable) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	resp := struct {
		Y []models.Value `json:"y"`
		X []models.Value `json:"x"`
	}{Y: toValues(y), X: toValues(x)}
	if err := h.writeJSONWithHash(w, resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// HandleSave сохраняет накопленные данные в файл в указанном формате.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Header string `json:"header"`
		Suffix string `json:"suffix"`
		Format string `json:"format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Format == "" {
		req.Format = repository.FormatJSON
	}

	snap := h.core.TakeSnapshot()
	filename, err := repository.SaveSnapshot(h.storeDir, snap, req.Header, req.Suffix, req.Format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.recordAudit(r, "save_data", filename)

	resp := struct {
		Filename string `json:"filename"`
	}{Filename: filename}
	if err := h.writeJSONWithHash(w, resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// HandleStatusPage отдаёт HTML-страницу с состоянием логгера.
func (h *Handler) HandleStatusPage(w http.ResponseWriter, r *http.Request) {
	cfg := h.core.GetConfiguration()
	last := h.core.LastDatapoint()

	names := make([]string, 0, len(last))
	for name := range last {
		names = append(names, name)
	}
	sort.Strings(names)

	builder := strings.Builder{}
	builder.WriteString("<html><body><h1>Data Logger</h1>")
	builder.WriteString("<p>Session: " + cfg.ID + "</p>")
	builder.WriteString("<p>Trigger: " + string(cfg.TriggerType) + "</p>")
	builder.WriteString("<p>Datapoints: " + strconv.Itoa(h.core.GetListLength()) + "</p>")
	builder.WriteString("<ul>")
	for _, name := range names {
		builder.WriteString("<li>" + name + ": " + strconv.FormatFloat(float64(last[name]), 'g', -1, 64) + "</li>")
	}
	builder.WriteString("</ul></body></html>")

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(builder.String()))
}

// HandlePing проверяет доступность базы данных.
func (h *Handler) HandlePing(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		http.Error(w, "database not configured", http.StatusInternalServerError)
		return
	}
	if err := h.db.Ping(r.Context()); err != nil {
		http.Error(w, "database not reachable: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
