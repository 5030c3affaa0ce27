// Package publisher отправляет готовые точки данных внешнему потребителю.
//
// Отправка выполняется в фоне по принципу fire-and-forget: сборка точек
// данных никогда не блокируется сетью, переполнение очереди приводит
// к отбрасыванию точки с записью в лог.
package publisher

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	models "github.com/RoGogDBD/data-logger/internal/model"
)

// Publisher публикует точки данных по HTTP и реализует
// datalog.DatapointObserver и datalog.ConfigObserver.
type Publisher struct {
	client *resty.Client
	log    *zap.Logger
	queue  chan models.Datapoint
	done   chan struct{}
}

// New создаёт публикатор, отправляющий точки данных POST-запросами на url.
func New(url string, log *zap.Logger) *Publisher {
	p := &Publisher{
		client: resty.New().
			SetBaseURL(url).
			SetTimeout(5 * time.Second).
			SetRetryCount(3).
			SetRetryWaitTime(500 * time.Millisecond),
		log:   log,
		queue: make(chan models.Datapoint, 256),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

// OnConfigurationChanged реализует datalog.ConfigObserver.
// Публикатору смена конфигурации не важна, состояние не накапливается.
func (p *Publisher) OnConfigurationChanged(_ models.SessionConfig) {}

// OnDatapointReady ставит точку данных в очередь на отправку.
// Не блокируется: при переполнении очереди точка отбрасывается.
func (p *Publisher) OnDatapointReady(dp models.Datapoint) {
	select {
	case p.queue <- dp:
	default:
		p.log.Warn("publisher queue is full, datapoint dropped")
	}
}

// Close останавливает фоновую отправку, дождавшись опустошения очереди.
func (p *Publisher) Close() {
	close(p.queue)
	<-p.done
}

func (p *Publisher) run() {
	defer close(p.done)
	for dp := range p.queue {
		if err := p.send(dp); err != nil {
			p.log.Warn("failed to publish datapoint", zap.Error(err))
		}
	}
}

func (p *Publisher) send(dp models.Datapoint) error {
	resp, err := p.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(dp).
		Post("")
	if err != nil {
		return fmt.Errorf("failed to POST datapoint: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode())
	}
	return nil
}
