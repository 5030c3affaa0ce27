package service

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/RoGogDBD/data-logger/internal/config"
	"github.com/RoGogDBD/data-logger/internal/datalog"
	"github.com/RoGogDBD/data-logger/internal/handler"
	"github.com/RoGogDBD/data-logger/internal/repository"
)

// NewRouter создает и настраивает HTTP-роутер логгера данных.
// В зависимости от значения storeInterval, роутер либо сохраняет конфигурацию
// сессии после каждой управляющей команды, либо запускает отдельную горутину
// для периодического сохранения конфигурации и снимка данных.
//
// Параметры:
//   - h: обработчик запросов (handler.Handler)
//   - core: ядро сбора данных (datalog.Core)
//   - storeInterval: интервал автосохранения (в секундах); если 0 — сохраняет после каждой команды
//   - storeDir: каталог для сохранения данных и конфигурации
//   - logger: логгер для логирования запросов
//
// Возвращает:
//   - *chi.Mux: настроенный роутер
func NewRouter(h *handler.Handler, core *datalog.Core, storeInterval int, storeDir string, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)         // Добавляет уникальный идентификатор запроса
	r.Use(middleware.RealIP)            // Определяет реальный IP клиента
	r.Use(config.RequestLogger(logger)) // Логирует запросы с помощью zap
	r.Use(middleware.Recoverer)         // Восстанавливает после паники
	r.Use(middleware.Compress(5))       // Сжимает ответы

	saveConfig := func() {
		if err := repository.SaveConfig(repository.ConfigPath(storeDir), core.GetConfiguration()); err != nil {
			log.Printf("Failed to save configuration: %v", err)
		}
	}

	control := func(hf http.HandlerFunc) http.HandlerFunc {
		if storeInterval != 0 {
			return hf
		}
		// Если storeInterval == 0, сохраняет конфигурацию после каждой команды
		return func(w http.ResponseWriter, r *http.Request) {
			hf(w, r)
			saveConfig()
		}
	}

	if storeInterval > 0 {
		// Периодическое сохранение конфигурации и снимка данных в отдельной горутине
		go func() {
			ticker := time.NewTicker(time.Duration(storeInterval) * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				saveConfig()
				if core.GetListLength() == 0 {
					continue
				}
				snap := core.TakeSnapshot()
				if _, err := repository.SaveSnapshot(storeDir, snap, "", "_autosave", repository.FormatJSON); err != nil {
					log.Printf("Failed to autosave data: %v", err)
				}
			}
		}()
	}

	// Приём обновлений переменных
	r.Post("/update", h.HandleUpdateJSON)
	r.Post("/update/", h.HandleUpdateJSON)
	r.Post("/updates/", h.HandleUpdatesBatch)

	// Управление сессией сбора
	r.Post("/start/", control(h.HandleStart))
	r.Post("/pause/", control(h.HandlePause))
	r.Post("/trigger/type/", control(h.HandleTriggerType))
	r.Post("/trigger/interval/", control(h.HandleTriggerInterval))
	r.Post("/trigger/variable/", control(h.HandleTriggerVariable))

	// Запросы состояния и данных
	r.Get("/configuration/", h.HandleConfiguration)
	r.Get("/length/", h.HandleLength)
	r.Get("/last/", h.HandleLast)
	r.Get("/data/{y}/xy", h.HandleDataXY)
	r.Get("/data/{key}", h.HandleData)

	// Сохранение данных в файл
	r.Post("/save/", h.HandleSave)

	r.Get("/ping", h.HandlePing)
	r.Get("/", h.HandleStatusPage)

	return r
}
