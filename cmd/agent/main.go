package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/RoGogDBD/data-logger/internal/config"
	"github.com/RoGogDBD/data-logger/internal/crypto"
	models "github.com/RoGogDBD/data-logger/internal/model"
	"github.com/RoGogDBD/data-logger/internal/version"
)

func parseFlags() (*config.NetAddress, *AgentState, string, string) {
	addr := config.ParseAddressFlag()
	poll := flag.Int(config.FlagPollInterval, 2, "Poll interval in seconds")
	key := flag.String(config.FlagKey, "", "Key for signing requests")
	cryptoKey := flag.String(config.FlagCryptoKey, "", "Path to RSA public key for encrypting requests")
	configFlag := flag.String(config.FlagConfig, "", "Path to JSON config file")
	flag.Parse()

	jsonCfg, err := config.LoadAgentJSONConfig(config.GetConfigFilePathWithFlag(*configFlag))
	if err != nil {
		log.Printf("Failed to load json config: %v", err)
		jsonCfg = &config.AgentJSONConfig{}
	}
	if jsonCfg.Address != "" {
		if err := addr.Set(jsonCfg.Address); err != nil {
			log.Printf("Invalid address in json config: %v", err)
		}
	}

	if val, err := config.EnvInt(config.EnvPollInterval); err != nil {
		log.Printf("%v", err)
	} else if val != 0 {
		*poll = val
	} else if jsonCfg.PollInterval != "" && *poll == 2 {
		if secs, err := config.ParseDuration(jsonCfg.PollInterval); err == nil && secs > 0 {
			*poll = secs
		}
	}

	keyValue := config.EnvString(config.EnvKey)
	if keyValue == "" {
		keyValue = *key
	}
	if keyValue == "" {
		keyValue = jsonCfg.Key
	}

	cryptoKeyPath := config.EnvString(config.EnvCryptoKey)
	if cryptoKeyPath == "" {
		cryptoKeyPath = *cryptoKey
	}
	if cryptoKeyPath == "" {
		cryptoKeyPath = jsonCfg.CryptoKey
	}

	state := &AgentState{
		PollInterval: *poll,
		Updates:      make([]models.Update, 0, len(agentVariables)),
		Rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	return addr, state, keyValue, cryptoKeyPath
}

func main() {
	version.PrintBuildInfo()

	addr, state, key, cryptoKeyPath := parseFlags()

	if err := config.EnvServer(addr, config.EnvAddress); err != nil {
		log.Fatalf("failed to apply env override: %v", err)
	}

	fmt.Println("Server URL", addr.String())
	fmt.Println("Poll interval", state.PollInterval)

	restyClient := resty.New().
		SetBaseURL("http://" + addr.String()).
		SetTimeout(5 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond)

	sender := &RestySender{Client: restyClient, Key: key}
	if cryptoKeyPath != "" {
		publicKey, err := crypto.LoadPublicKey(cryptoKeyPath)
		if err != nil {
			log.Fatalf("failed to load public key: %v", err)
		}
		sender.PublicKey = publicKey
	}
	state.Sender = sender

	// Открывает на сервере сессию сбора для переменных агента.
	sessionCfg := models.SessionConfig{
		Variables:      agentVariables,
		TriggerType:    models.TriggerTimer,
		TriggerTimeout: float64(state.PollInterval),
		ValuingMode:    models.ValuingAverage,
	}
	if err := state.Sender.StartSession(sessionCfg); err != nil {
		log.Printf("Failed to start logging session: %v", err)
	}

	pollTicker := time.NewTicker(time.Duration(state.PollInterval) * time.Second)
	defer pollTicker.Stop()

	for range pollTicker.C {
		collectReadings(state)
		sendReadings(state)
	}
}
