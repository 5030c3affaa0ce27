package repository

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/RoGogDBD/data-logger/internal/datalog"
	models "github.com/RoGogDBD/data-logger/internal/model"
)

// Поддерживаемые форматы сохранения данных.
const (
	FormatJSON = "json"
	FormatMsgp = "msgp" // бинарный формат (msgpack)
	FormatText = "txt"  // текстовая таблица с заголовком
)

// SaveMeta — метаданные, сохраняемые вместе с данными.
type SaveMeta struct {
	Units         map[string]string    `json:"units,omitempty" msgpack:"units,omitempty"`
	Configuration models.SessionConfig `json:"configuration" msgpack:"configuration"`
	Today         string               `json:"today" msgpack:"today"`
	User          map[string]string    `json:"user,omitempty" msgpack:"user,omitempty"`
}

// SavedData — содержимое сохранённого файла: заголовок, последовательности
// значений всех переменных и метаданные.
type SavedData struct {
	Header string
	Keys   []string
	Data   map[string][]float64
	Meta   SaveMeta
}

type msgpackFile struct {
	Header string               `msgpack:"header"`
	Keys   []string             `msgpack:"keys"`
	Data   map[string][]float64 `msgpack:"data"`
	Meta   SaveMeta             `msgpack:"meta"`
}

// SaveSnapshot сохраняет снимок ядра в файл в каталоге dir.
//
// Имя файла образуется из момента сохранения и суффикса; формат
// определяет расширение и кодирование. Возвращает имя созданного файла.
func SaveSnapshot(dir string, snap datalog.Snapshot, header, suffix, format string) (string, error) {
	if format == "" {
		format = FormatJSON
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	name := time.Now().Format("2006_01_02T15_04_05") + suffix + "." + format
	path := filepath.Join(dir, name)

	saved := SavedData{
		Header: header,
		Keys:   snap.Keys,
		Data:   snap.Data,
		Meta: SaveMeta{
			Units:         snap.Config.Units,
			Configuration: snap.Config,
			Today:         snap.Started.UTC().Format("2006-01-02"),
		},
	}

	var err error
	switch format {
	case FormatJSON:
		err = writeJSON(path, saved)
	case FormatMsgp:
		err = writeMsgpack(path, saved)
	case FormatText:
		err = writeText(path, saved)
	default:
		return "", fmt.Errorf("unknown save format %q", format)
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// LoadSavedFile загружает файл, сохранённый логгером.
//
// Формат определяется по расширению; если у пути нет расширения,
// перебираются известные.
func LoadSavedFile(path string) (*SavedData, error) {
	full := path
	if _, err := os.Stat(full); err != nil {
		for _, ext := range []string{".json", ".msgp", ".txt"} {
			if _, err := os.Stat(path + ext); err == nil {
				full = path + ext
				break
			}
		}
	}
	switch strings.ToLower(filepath.Ext(full)) {
	case ".json":
		return readJSON(full)
	case ".msgp":
		return readMsgpack(full)
	case ".txt":
		return readText(full)
	}
	return nil, fmt.Errorf("invalid file name suffix %q", filepath.Ext(full))
}

// ConfigFileName — имя файла с последней конфигурацией сессии.
const ConfigFileName = "last_config.json"

// ConfigPath возвращает путь к файлу конфигурации в каталоге данных.
func ConfigPath(dir string) string {
	return filepath.Join(dir, ConfigFileName)
}

// SaveConfig сохраняет конфигурацию сессии для восстановления при рестарте.
func SaveConfig(path string, cfg models.SessionConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	return enc.Encode(cfg)
}

// LoadConfig загружает последнюю сохранённую конфигурацию сессии.
func LoadConfig(path string) (models.SessionConfig, error) {
	var cfg models.SessionConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// В JSON файл пишется массив [header, data, meta] — NaN кодируется
// как null через models.Value.
func writeJSON(path string, saved SavedData) error {
	data := make(map[string][]models.Value, len(saved.Data))
	for key, seq := range saved.Data {
		vals := make([]models.Value, len(seq))
		for i, v := range seq {
			vals[i] = models.Value(v)
		}
		data[key] = vals
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	return enc.Encode([]interface{}{saved.Header, data, saved.Meta})
}

func readJSON(path string) (*SavedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("failed to parse saved file: %w", err)
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("saved file has %d parts, want at least 2", len(parts))
	}

	saved := &SavedData{}
	if err := json.Unmarshal(parts[0], &saved.Header); err != nil {
		return nil, err
	}
	data := map[string][]models.Value{}
	if err := json.Unmarshal(parts[1], &data); err != nil {
		return nil, err
	}
	saved.Data = make(map[string][]float64, len(data))
	for key, vals := range data {
		seq := make([]float64, len(vals))
		for i, v := range vals {
			seq[i] = float64(v)
		}
		saved.Data[key] = seq
	}
	if len(parts) > 2 {
		if err := json.Unmarshal(parts[2], &saved.Meta); err != nil {
			return nil, err
		}
	}
	saved.Keys = saved.Meta.Configuration.Variables
	return saved, nil
}

func writeMsgpack(path string, saved SavedData) error {
	payload, err := msgpack.Marshal(msgpackFile{
		Header: saved.Header,
		Keys:   saved.Keys,
		Data:   saved.Data,
		Meta:   saved.Meta,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal msgpack: %w", err)
	}
	return os.WriteFile(path, payload, 0644)
}

func readMsgpack(path string) (*SavedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file msgpackFile
	if err := msgpack.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal msgpack: %w", err)
	}
	return &SavedData{
		Header: file.Header,
		Keys:   file.Keys,
		Data:   file.Data,
		Meta:   file.Meta,
	}, nil
}

// Текстовый формат: строки заголовка с префиксом "# ", последняя строка
// заголовка — имена переменных, далее таблица значений по столбцам.
func writeText(path string, saved SavedData) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	for _, line := range strings.Split(saved.Header, "\n") {
		if _, err := fmt.Fprintf(w, "# %s\n", line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "# %s\n", strings.Join(saved.Keys, "\t")); err != nil {
		return err
	}

	length := 0
	if len(saved.Keys) > 0 {
		length = len(saved.Data[saved.Keys[0]])
	}
	for i := 0; i < length; i++ {
		fields := make([]string, len(saved.Keys))
		for j, key := range saved.Keys {
			fields[j] = strconv.FormatFloat(saved.Data[key][i], 'g', -1, 64)
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}

func readText(path string) (*SavedData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	saved := &SavedData{Data: map[string][]float64{}}
	var headerLines []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "# ") {
			headerLines = append(headerLines, strings.TrimPrefix(line, "# "))
			continue
		}
		if line == "" {
			continue
		}
		if saved.Keys == nil {
			if len(headerLines) == 0 {
				return nil, fmt.Errorf("text file has no header line with variable names")
			}
			saved.Keys = strings.Fields(headerLines[len(headerLines)-1])
			saved.Header = strings.Join(headerLines[:len(headerLines)-1], "\n")
			for _, key := range saved.Keys {
				saved.Data[key] = []float64{}
			}
		}
		fields := strings.Fields(line)
		for j, key := range saved.Keys {
			value := math.NaN()
			if j < len(fields) {
				if v, err := strconv.ParseFloat(fields[j], 64); err == nil {
					value = v
				}
			}
			saved.Data[key] = append(saved.Data[key], value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	// Файл без единой строки данных: имена переменных всё же известны.
	if saved.Keys == nil && len(headerLines) > 0 {
		saved.Keys = strings.Fields(headerLines[len(headerLines)-1])
		saved.Header = strings.Join(headerLines[:len(headerLines)-1], "\n")
		for _, key := range saved.Keys {
			saved.Data[key] = []float64{}
		}
	}
	return saved, nil
}
