package main

import (
	"context"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/RoGogDBD/data-logger/internal/config"
	"github.com/RoGogDBD/data-logger/internal/crypto"
	models "github.com/RoGogDBD/data-logger/internal/model"
)

// Имена переменных, публикуемых агентом.
var agentVariables = []string{"TotalMemory", "FreeMemory", "CPUutilization1", "RandomValue"}

type UpdateSender interface {
	SendBatch(updates []models.Update) error
	StartSession(cfg models.SessionConfig) error
}

type AgentState struct {
	PollInterval int
	Updates      []models.Update
	Rng          *rand.Rand
	Sender       UpdateSender
}

func fptr(v float64) *float64 { return &v }

// collectReadings снимает показания системы и случайное значение.
func collectReadings(state *AgentState) {
	state.Updates = state.Updates[:0]

	if vm, err := mem.VirtualMemory(); err != nil {
		log.Printf("Failed to read memory stats: %v", err)
	} else {
		state.Updates = append(state.Updates,
			models.Update{Name: "TotalMemory", Value: fptr(float64(vm.Total))},
			models.Update{Name: "FreeMemory", Value: fptr(float64(vm.Free))},
		)
	}

	if percents, err := cpu.Percent(0, false); err != nil {
		log.Printf("Failed to read cpu stats: %v", err)
	} else if len(percents) > 0 {
		state.Updates = append(state.Updates,
			models.Update{Name: "CPUutilization1", Value: fptr(percents[0])})
	}

	state.Updates = append(state.Updates,
		models.Update{Name: "RandomValue", Value: fptr(state.Rng.Float64() * 100)})
}

func sendReadings(state *AgentState) {
	if len(state.Updates) == 0 {
		return
	}
	if err := state.Sender.SendBatch(state.Updates); err != nil {
		log.Printf("Failed to send updates batch: %v", err)
	}
}

// RestySender отправляет обновления на сервер логгера: JSON пакуется
// в gzip, подписывается HMAC и при наличии публичного ключа шифруется.
type RestySender struct {
	Client    *resty.Client
	Key       string
	PublicKey *rsa.PublicKey
}

func (rs *RestySender) encode(v interface{}) ([]byte, bool, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, false, err
	}

	compressed, err := config.GzipCompress(body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to gzip payload: %w", err)
	}

	if rs.PublicKey == nil {
		return compressed, false, nil
	}
	encrypted, err := crypto.EncryptData(compressed, rs.PublicKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encrypt payload: %w", err)
	}
	return encrypted, true, nil
}

func (rs *RestySender) post(path string, payload interface{}) error {
	body, encrypted, err := rs.encode(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return config.RetryWithBackoff(ctx, func() error {
		req := rs.Client.R().
			SetHeader("Content-Type", "application/json").
			SetHeader("Content-Encoding", "gzip").
			SetBody(body)

		if encrypted {
			req.SetHeader("X-Content-Encrypted", "rsa")
		}
		if rs.Key != "" {
			req.SetHeader("HashSHA256", computeHash(body, rs.Key))
		}

		resp, err := req.Post(path)
		if err != nil {
			return fmt.Errorf("failed to POST %s: %w", path, err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("unexpected status: %d", resp.StatusCode())
		}
		return nil
	})
}

func (rs *RestySender) SendBatch(updates []models.Update) error {
	return rs.post("/updates/", updates)
}

func (rs *RestySender) StartSession(cfg models.SessionConfig) error {
	return rs.post("/start/", cfg)
}

func computeHash(data []byte, key string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
